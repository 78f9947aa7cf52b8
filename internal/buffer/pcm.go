// SPDX-License-Identifier: MIT
package buffer

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
)

// FromIntBuffer de-interleaves a go-audio PCM buffer into a planar Buffer,
// normalising integer samples by the source bit depth.
func FromIntBuffer(src *audio.IntBuffer) (*Buffer, int, error) {
	if src == nil || src.Format == nil {
		return nil, 0, fmt.Errorf("buffer: PCM buffer has no format")
	}
	channels := src.Format.NumChannels
	if channels <= 0 {
		return nil, 0, fmt.Errorf("buffer: invalid channel count %d", channels)
	}

	bitDepth := src.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	frames := len(src.Data) / channels
	b := New(channels, frames)
	for i := range frames {
		base := i * channels
		for ch := range channels {
			b.Channels[ch][i] = float64(src.Data[base+ch]) * scale
		}
	}

	return b, src.Format.SampleRate, nil
}

// ToIntBuffer interleaves the buffer into a go-audio PCM buffer at the given
// bit depth. Samples outside [-1, 1] are clipped.
func (b *Buffer) ToIntBuffer(sampleRate, bitDepth int) *audio.IntBuffer {
	channels := b.NumChannels()
	frames := b.NumSamples()
	maxVal := float64(int64(1)<<(bitDepth-1) - 1)

	data := make([]int, frames*channels)
	for i := range frames {
		base := i * channels
		for ch := range channels {
			v := math.Max(-1, math.Min(1, b.Channels[ch][i]))
			data[base+ch] = int(math.Round(v * maxVal))
		}
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

// Interleaved32 returns the buffer as interleaved float32 samples, the layout
// expected by output streams.
func (b *Buffer) Interleaved32() []float32 {
	channels := b.NumChannels()
	frames := b.NumSamples()
	out := make([]float32, frames*channels)
	for i := range frames {
		for ch := range channels {
			out[i*channels+ch] = float32(b.Channels[ch][i])
		}
	}
	return out
}

// FromInterleaved32 builds a planar buffer from interleaved float32 samples.
// Trailing samples that do not form a whole frame are dropped.
func FromInterleaved32(data []float32, channels int) *Buffer {
	if channels <= 0 {
		return New(0, 0)
	}
	frames := len(data) / channels
	b := New(channels, frames)
	for i := range frames {
		for ch := range channels {
			b.Channels[ch][i] = float64(data[i*channels+ch])
		}
	}
	return b
}
