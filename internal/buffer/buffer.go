// SPDX-License-Identifier: MIT
/*
Package buffer provides the planar multi-channel sample buffer shared by the
feature extractor, the phase vocoder and the feature resynthesis code.

Samples are stored as float64 in the nominal range [-1.0, 1.0], one slice per
channel. All channels of a Buffer always have the same length.
*/
package buffer

// Buffer holds planar (non-interleaved) audio, Channels[ch][i].
type Buffer struct {
	Channels [][]float64
}

// New allocates a zeroed buffer with the given channel and sample count.
func New(channels, samples int) *Buffer {
	b := &Buffer{}
	b.SetSize(channels, samples)
	return b
}

// FromChannels wraps existing channel slices without copying. The caller must
// ensure every slice has the same length.
func FromChannels(channels ...[]float64) *Buffer {
	return &Buffer{Channels: channels}
}

// NumChannels returns the number of channels.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// NumSamples returns the number of samples per channel.
func (b *Buffer) NumSamples() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// SetSize resizes the buffer, preserving existing sample data where it fits.
// New channels and new samples are zero.
func (b *Buffer) SetSize(channels, samples int) {
	if channels < 0 {
		channels = 0
	}
	if samples < 0 {
		samples = 0
	}

	resized := make([][]float64, channels)
	for ch := range channels {
		var old []float64
		if ch < len(b.Channels) {
			old = b.Channels[ch]
		}
		if cap(old) >= samples {
			resized[ch] = old[:samples]
			// Zero anything exposed by growing back into old capacity.
			for i := len(old); i < samples; i++ {
				resized[ch][i] = 0
			}
			continue
		}
		resized[ch] = make([]float64, samples)
		copy(resized[ch], old)
	}
	b.Channels = resized
}

// Clone returns a deep copy of the buffer. Source and copy never alias.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	c := &Buffer{Channels: make([][]float64, len(b.Channels))}
	for ch, data := range b.Channels {
		c.Channels[ch] = make([]float64, len(data))
		copy(c.Channels[ch], data)
	}
	return c
}

// CopyFrom overwrites b with the contents of src, resizing b to match.
func (b *Buffer) CopyFrom(src *Buffer) {
	b.SetSize(src.NumChannels(), src.NumSamples())
	for ch := range b.Channels {
		copy(b.Channels[ch], src.Channels[ch])
	}
}

// EnsureStereo coerces the buffer to at least two channels. A mono buffer gets
// its first channel duplicated; an empty buffer gets two silent channels of
// zero length. Buffers that already have two or more channels are unchanged.
func (b *Buffer) EnsureStereo() {
	switch len(b.Channels) {
	case 0:
		b.Channels = [][]float64{{}, {}}
	case 1:
		right := make([]float64, len(b.Channels[0]))
		copy(right, b.Channels[0])
		b.Channels = append(b.Channels, right)
	}
}

// Channel returns channel ch, or the nearest existing channel when ch is out
// of range. It returns nil for an empty buffer.
func (b *Buffer) Channel(ch int) []float64 {
	if len(b.Channels) == 0 {
		return nil
	}
	if ch >= len(b.Channels) {
		ch = len(b.Channels) - 1
	}
	if ch < 0 {
		ch = 0
	}
	return b.Channels[ch]
}

// Peak returns the largest absolute sample value across all channels.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, data := range b.Channels {
		for _, v := range data {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}
