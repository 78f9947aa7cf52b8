// SPDX-License-Identifier: MIT
package feature

import (
	"math"

	"featidx/internal/buffer"
	applog "featidx/internal/log"
)

// FadeMargin is the number of samples blended on each side of a modified
// region during localized resynthesis.
const FadeMargin = 64

// PanSplit distributes value over left and right with an equal-power law.
func PanSplit(value, pan float64) (left, right float64) {
	pan = clamp(pan, MinPan, MaxPan)
	return value * math.Sqrt(1-pan), value * math.Sqrt(pan)
}

// ApplyToAudioBuffer writes the feature data into buf, which is coerced to
// stereo first.
//
// When original is non-nil and has the same sample count as buf, buf becomes
// a copy of original and only modified regions are re-rendered and
// crossfaded in; every sample further than FadeMargin from a modified sample
// stays bit-identical to original. Otherwise every sample is rendered from
// amplitude*volume with an equal-power pan split.
//
// buf is resized to Len() if its length disagrees with the feature data.
func (d *Data) ApplyToAudioBuffer(buf *buffer.Buffer, sampleRate float64, original *buffer.Buffer) {
	n := d.Len()
	if buf.NumSamples() != n {
		applog.Warnf("feature: resizing output buffer from %d to %d samples to match feature data",
			buf.NumSamples(), n)
		buf.SetSize(max(buf.NumChannels(), 2), n)
	}
	buf.EnsureStereo()

	if original == nil || original.NumChannels() == 0 {
		applog.Debugf("feature: no reference audio, rendering %d samples globally at %.0f Hz", n, sampleRate)
		d.renderGlobal(buf)
		return
	}
	if original.NumSamples() != n {
		applog.Warnf("feature: reference audio has %d samples, expected %d; rendering globally",
			original.NumSamples(), n)
		d.renderGlobal(buf)
		return
	}

	for ch := range buf.Channels {
		copy(buf.Channels[ch], original.Channel(ch))
	}

	regions := coalesceRegions(d.Regions(), FadeMargin)
	applog.Debugf("feature: patching %d region(s) at %.0f Hz", len(regions), sampleRate)
	for _, r := range regions {
		d.renderPatch(buf, r)
	}
}

// renderGlobal renders every sample directly from the features.
func (d *Data) renderGlobal(buf *buffer.Buffer) {
	left, right := buf.Channels[0], buf.Channels[1]
	for i := range d.samples {
		s := &d.samples[i]
		value := s.Amplitude * s.Volume
		left[i], right[i] = PanSplit(value, s.Pan)
		for ch := 2; ch < len(buf.Channels); ch++ {
			buf.Channels[ch][i] = value
		}
	}
}

// renderPatch synthesizes r plus FadeMargin samples on each side, shapes the
// margins with a Hann fade and crossfades the result into buf with a linear
// weight ramp that is 1 across the region interior and 0 at the outer edges.
func (d *Data) renderPatch(buf *buffer.Buffer, r Region) {
	clipStart := max(0, r.Start-FadeMargin)
	clipEnd := min(len(d.samples)-1, r.End+FadeMargin)
	fadeIn := r.Start - clipStart
	fadeOut := clipEnd - r.End

	left, right := buf.Channels[0], buf.Channels[1]
	for i := clipStart; i <= clipEnd; i++ {
		weight, envelope := 1.0, 1.0
		switch {
		case i < r.Start:
			k := i - clipStart
			weight = float64(k) / float64(fadeIn)
			envelope = hannRamp(k, fadeIn)
		case i > r.End:
			k := clipEnd - i
			weight = float64(k) / float64(fadeOut)
			envelope = hannRamp(k, fadeOut)
		}
		if weight == 0 {
			continue
		}

		s := &d.samples[i]
		l, rr := PanSplit(s.Amplitude*s.Volume, s.Pan)
		l *= envelope
		rr *= envelope

		left[i] = left[i]*(1-weight) + l*weight
		right[i] = right[i]*(1-weight) + rr*weight
	}
}

// hannRamp rises from 0 at k=0 to 1 at k=length along half a Hann window.
func hannRamp(k, length int) float64 {
	if length <= 0 {
		return 1
	}
	return 0.5 * (1 - math.Cos(math.Pi*float64(k)/float64(length)))
}

// ApplyPlacement treats channel 0 of buf as a mono render of d and places it
// in the stereo field: each sample is scaled by its volume and split with
// PanSplit. buf is coerced to stereo; channels beyond the second receive the
// scaled mono value. buf is resized to Len() if its length disagrees.
func (d *Data) ApplyPlacement(buf *buffer.Buffer) {
	n := d.Len()
	if buf.NumSamples() != n {
		applog.Warnf("feature: resizing placement buffer from %d to %d samples", buf.NumSamples(), n)
		buf.SetSize(max(buf.NumChannels(), 1), n)
	}
	buf.EnsureStereo()

	left, right := buf.Channels[0], buf.Channels[1]
	for i := range d.samples {
		s := &d.samples[i]
		value := left[i] * s.Volume
		left[i], right[i] = PanSplit(value, s.Pan)
		for ch := 2; ch < len(buf.Channels); ch++ {
			buf.Channels[ch][i] = value
		}
	}
}
