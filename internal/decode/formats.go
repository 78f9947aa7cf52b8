// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"featidx/internal/buffer"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

func decodeWAV(r io.ReadSeeker) (*buffer.Buffer, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	return buffer.FromIntBuffer(pcm)
}

// go-mp3 always produces 16-bit little-endian interleaved stereo.
const mp3Channels = 2

func decodeMP3(r io.ReadSeeker) (*buffer.Buffer, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}

	frames := len(raw) / (2 * mp3Channels)
	buf := buffer.New(mp3Channels, frames)
	for i := range frames {
		for ch := range mp3Channels {
			off := 2 * (i*mp3Channels + ch)
			v := int16(binary.LittleEndian.Uint16(raw[off:]))
			buf.Channels[ch][i] = float64(v) / 32768.0
		}
	}
	return buf, dec.SampleRate(), nil
}

func decodeOgg(r io.ReadSeeker) (*buffer.Buffer, int, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return buffer.FromInterleaved32(data, format.Channels), format.SampleRate, nil
}

func decodeFLAC(r io.ReadSeeker) (*buffer.Buffer, int, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, 0, err
	}

	info := stream.Info
	channels := int(info.NChannels)
	if channels == 0 || info.BitsPerSample == 0 {
		return nil, 0, fmt.Errorf("%w: FLAC stream has %d channels at %d bits",
			ErrUnsupportedFormat, channels, info.BitsPerSample)
	}
	scale := 1.0 / float64(int64(1)<<(info.BitsPerSample-1))

	buf := buffer.New(channels, 0)
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float64, 0, info.NSamples)
	}
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		for ch, sub := range frame.Subframes {
			if ch >= channels {
				break
			}
			for _, s := range sub.Samples {
				buf.Channels[ch] = append(buf.Channels[ch], float64(s)*scale)
			}
		}
	}
	return buf, int(info.SampleRate), nil
}
