// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"sync/atomic"

	"featidx/internal/buffer"
	applog "featidx/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Preview plays buf, or the current audio when buf is nil, on the
// configured output device and blocks until it finishes or ctx is done.
// Only one preview may run at a time.
func (e *Engine) Preview(ctx context.Context, buf *buffer.Buffer) error {
	if !atomic.CompareAndSwapInt32(&e.isPlaying, 0, 1) {
		return ErrAlreadyPlaying
	}
	defer atomic.StoreInt32(&e.isPlaying, 0)

	if buf == nil {
		var err error
		if buf, err = e.Buffer(); err != nil {
			return err
		}
	}
	sampleRate := e.SampleRate()
	if sampleRate == 0 {
		return ErrNoSampleLoaded
	}

	if err := Initialize(); err != nil {
		return err
	}
	defer Terminate()

	device, err := OutputDevice(e.config.Audio.OutputDevice)
	if err != nil {
		return err
	}

	channels := min(max(buf.NumChannels(), 1), device.MaxOutputChannels)
	latency := device.DefaultHighOutputLatency
	if e.config.Audio.LowLatency {
		latency = device.DefaultLowOutputLatency
	}
	framesPerBuffer := e.config.Audio.FramesPerBuffer

	// Pre-allocate the interleaved output buffer sized for frames × channels.
	out := make([]float32, framesPerBuffer*channels)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  latency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, &out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	applog.Infof("audio: previewing %d samples on %s (%d channels, %.0f Hz)",
		buf.NumSamples(), device.Name, channels, sampleRate)

	written, err := streamChunks(ctx, out, buf, channels, stream.Write)
	applog.Debugf("audio: preview wrote %d frames", written)
	return err
}

// streamChunks fills out chunk by chunk and calls write after each fill. It
// stops after the chunk holding the final frame, or when ctx is done, and
// returns the number of real frames written.
func streamChunks(ctx context.Context, out []float32, buf *buffer.Buffer, channels int, write func() error) (int, error) {
	chunk := len(out) / channels
	written := 0
	for pos := 0; ; pos += chunk {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}
		valid := interleaveChunk(out, buf, pos, channels)
		if valid == 0 {
			return written, nil
		}
		if err := write(); err != nil {
			return written, fmt.Errorf("failed to write output stream: %w", err)
		}
		written += valid
		if valid < chunk {
			return written, nil
		}
	}
}

// interleaveChunk fills dst with the frames of buf starting at pos,
// interleaved over channels. Frames past the end are silent and missing
// channels repeat the nearest one. It returns the number of real frames.
func interleaveChunk(dst []float32, buf *buffer.Buffer, pos, channels int) int {
	frames := len(dst) / channels
	valid := max(0, min(frames, buf.NumSamples()-pos))
	for ch := range channels {
		src := buf.Channel(ch)
		for i := range frames {
			v := float32(0)
			if i < valid {
				v = float32(src[pos+i])
			}
			dst[i*channels+ch] = v
		}
	}
	return valid
}
