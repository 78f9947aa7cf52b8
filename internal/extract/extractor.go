// SPDX-License-Identifier: MIT
/*
Package extract turns raw audio into feature.Data.

Amplitude is extracted eagerly in one O(N) pass with no transform work; that
is the instant-load path. Frequency, phase, volume and pan are estimated on
demand from a private copy of the source audio using sliding windows centred
on each sample. Each on-demand pass only visits samples whose computed flag
is still clear, so repeated calls are cheap and idempotent.

The Extractor does no locking; callers serialise access.
*/
package extract

import (
	"math"

	"featidx/internal/buffer"
	"featidx/internal/feature"
	applog "featidx/internal/log"
)

// Window sizes in samples and estimator limits.
const (
	FrequencyWindow    = 512
	MinFrequencyWindow = 64
	PhaseWindow        = 32
	VolumeWindow       = 512

	MinVolumeDB = -60.0
	MaxVolumeDB = 6.0

	epsilon = 1e-10
)

// sourceCache is the retained copy of the audio the current feature data
// was extracted from. It is either fully valid or fully absent.
type sourceCache struct {
	audio      *buffer.Buffer
	sampleRate float64
	valid      bool
}

// Extractor produces and incrementally completes feature data.
type Extractor struct {
	cache sourceCache
}

// New returns an Extractor with no cached audio.
func New() *Extractor {
	return &Extractor{}
}

// HasCache reports whether on-demand computations have source audio.
func (e *Extractor) HasCache() bool {
	return e.cache.valid
}

// ClearCache drops the retained source audio. Compute calls become no-ops
// until the next extraction.
func (e *Extractor) ClearCache() {
	e.cache = sourceCache{}
}

// SetSource replaces the cached audio that on-demand computations read
// without touching any feature data. Callers use it after re-rendering the
// audio the features describe. buf is copied.
func (e *Extractor) SetSource(buf *buffer.Buffer, sampleRate float64) {
	e.cache = sourceCache{
		audio:      buf.Clone(),
		sampleRate: sampleRate,
		valid:      true,
	}
}

// ExtractAmplitudeOnly returns feature data with amplitude set to the first
// channel's raw samples and every other dimension at its default and
// uncomputed. The buffer is copied into the computation cache.
func (e *Extractor) ExtractAmplitudeOnly(buf *buffer.Buffer, sampleRate float64) *feature.Data {
	n := buf.NumSamples()
	data := feature.NewData(n)
	if n > 0 {
		src := buf.Channels[0]
		for i := range n {
			data.Set(i, feature.DefaultSample(src[i]))
		}
	}

	e.SetSource(buf, sampleRate)
	applog.Debugf("extract: amplitude-only extraction of %d samples (%d channels, %.0f Hz)",
		n, buf.NumChannels(), sampleRate)
	return data
}

// ExtractFeatures runs ExtractAmplitudeOnly followed by every on-demand
// computation.
func (e *Extractor) ExtractFeatures(buf *buffer.Buffer, sampleRate float64) *feature.Data {
	data := e.ExtractAmplitudeOnly(buf, sampleRate)
	e.ComputeFrequencies(data)
	e.ComputePhases(data)
	e.ComputeVolumes(data)
	e.ComputePans(data)
	return data
}

// ComputeFrequencies estimates frequency for every sample not yet computed.
func (e *Extractor) ComputeFrequencies(d *feature.Data) {
	e.ComputeRange(d, feature.DimFrequency, 0, d.Len())
}

// ComputePhases estimates phase for every sample not yet computed.
func (e *Extractor) ComputePhases(d *feature.Data) {
	e.ComputeRange(d, feature.DimPhase, 0, d.Len())
}

// ComputeVolumes estimates volume for every sample not yet computed.
func (e *Extractor) ComputeVolumes(d *feature.Data) {
	e.ComputeRange(d, feature.DimVolume, 0, d.Len())
}

// ComputePans estimates pan for every sample not yet computed.
func (e *Extractor) ComputePans(d *feature.Data) {
	e.ComputeRange(d, feature.DimPan, 0, d.Len())
}

// Compute runs the on-demand computation of every dimension in dims.
func (e *Extractor) Compute(d *feature.Data, dims feature.Dimension) {
	e.ComputeRange(d, dims, 0, d.Len())
}

// ComputeRange computes the dimensions in dims for samples [start, end),
// skipping samples already computed. Editors use it to fill only the visible
// part of a long sample. Without cached audio it logs and does nothing.
func (e *Extractor) ComputeRange(d *feature.Data, dims feature.Dimension, start, end int) {
	if !e.cache.valid {
		applog.Warnf("extract: no cached audio, skipping %s computation", dims)
		return
	}

	n := e.cache.audio.NumSamples()
	if d.Len() != n {
		applog.Warnf("extract: feature data has %d samples but cached audio has %d; computing the overlap only",
			d.Len(), n)
	}
	start = max(start, 0)
	end = min(end, d.Len(), n)
	if start >= end {
		return
	}

	if dims&feature.DimFrequency != 0 {
		e.computeFrequencies(d, start, end)
	}
	if dims&feature.DimPhase != 0 {
		e.computePhases(d, start, end)
	}
	if dims&feature.DimVolume != 0 {
		e.computeVolumes(d, start, end)
	}
	if dims&feature.DimPan != 0 {
		e.computePans(d, start, end)
	}
}

// window returns the bounds of a window of size centred on i, truncated at
// the ends of a signal of length n.
func window(i, size, n int) (lo, hi int) {
	half := size / 2
	return max(0, i-half), min(n, i+half)
}

func (e *Extractor) computeFrequencies(d *feature.Data, start, end int) {
	src := e.cache.audio.Channels[0]
	for i := start; i < end; i++ {
		if d.IsComputed(i, feature.DimFrequency) {
			continue
		}
		lo, hi := window(i, FrequencyWindow, len(src))
		d.Store(i, feature.DimFrequency, zeroCrossingFrequency(src[lo:hi], e.cache.sampleRate))
	}
}

func (e *Extractor) computePhases(d *feature.Data, start, end int) {
	src := e.cache.audio.Channels[0]
	for i := start; i < end; i++ {
		if d.IsComputed(i, feature.DimPhase) {
			continue
		}
		d.Store(i, feature.DimPhase, instantaneousPhase(src, i))
	}
}

func (e *Extractor) computeVolumes(d *feature.Data, start, end int) {
	src := e.cache.audio.Channels[0]
	for i := start; i < end; i++ {
		if d.IsComputed(i, feature.DimVolume) {
			continue
		}
		lo, hi := window(i, VolumeWindow, len(src))
		d.Store(i, feature.DimVolume, rmsVolume(src[lo:hi]))
	}
}

func (e *Extractor) computePans(d *feature.Data, start, end int) {
	if e.cache.audio.NumChannels() < 2 {
		for i := start; i < end; i++ {
			if !d.IsComputed(i, feature.DimPan) {
				d.Store(i, feature.DimPan, feature.DefaultPan)
			}
		}
		return
	}

	left, right := e.cache.audio.Channels[0], e.cache.audio.Channels[1]
	for i := start; i < end; i++ {
		if d.IsComputed(i, feature.DimPan) {
			continue
		}
		d.Store(i, feature.DimPan, stereoPan(left[i], right[i]))
	}
}

// zeroCrossingFrequency estimates the dominant frequency of w from its sign
// changes. Crossing instants are interpolated linearly and the rate is taken
// over the span between the first and last crossing, which keeps a partial
// cycle at either end of the window from biasing the count.
// The rate is f = ((crossings-1)/2) / ((last-first)/sampleRate), not the
// whole-window count (crossings/2)/duration, which is only the fallback when
// fewer than two crossings are found.
func zeroCrossingFrequency(w []float64, sampleRate float64) float64 {
	if len(w) < MinFrequencyWindow || sampleRate <= 0 {
		return feature.DefaultFrequency
	}

	crossings := 0
	first, last := 0.0, 0.0
	for j := 1; j < len(w); j++ {
		a, b := w[j-1], w[j]
		if (a < 0) == (b < 0) {
			continue
		}
		// Fractional position of the crossing between j-1 and j.
		pos := float64(j - 1)
		if denom := a - b; math.Abs(denom) > epsilon {
			pos += a / denom
		}
		if crossings == 0 {
			first = pos
		}
		last = pos
		crossings++
	}

	var freq float64
	span := last - first
	if crossings >= 2 && span > epsilon {
		freq = (float64(crossings-1) / 2) / (span / sampleRate)
	} else {
		duration := float64(len(w)) / sampleRate
		freq = (float64(crossings) / 2) / duration
	}
	return math.Max(feature.MinFrequency, math.Min(feature.MaxFrequency, freq))
}

// instantaneousPhase estimates the phase at src[i] by normalising the sample
// by the local peak, taking its arcsine, and choosing the quadrant from the
// sign of the discrete derivative.
func instantaneousPhase(src []float64, i int) float64 {
	lo, hi := window(i, PhaseWindow, len(src))
	peak := 0.0
	for _, v := range src[lo:hi] {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak < epsilon {
		return 0
	}

	x := math.Max(-1, math.Min(1, src[i]/peak))
	base := math.Asin(x)

	var deriv float64
	switch {
	case len(src) < 2:
	case i == 0:
		deriv = src[1] - src[0]
	case i == len(src)-1:
		deriv = src[i] - src[i-1]
	default:
		deriv = src[i+1] - src[i-1]
	}

	var phase float64
	switch {
	case x >= 0 && deriv >= 0: // rising through the first quadrant
		phase = base
	case x >= 0: // falling from the peak
		phase = math.Pi - base
	case deriv < 0: // falling below zero
		phase = math.Pi - base
	default: // rising back towards zero
		phase = 2*math.Pi + base
	}
	return feature.WrapPhase(phase)
}

// rmsVolume maps the RMS level of w from [-60, +6] dB onto [0, 1] and scales
// it to the [0, 2] volume range.
func rmsVolume(w []float64) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(w)))
	db := 20 * math.Log10(math.Max(rms, epsilon))
	norm := (db - MinVolumeDB) / (MaxVolumeDB - MinVolumeDB)
	return math.Max(0, math.Min(1, norm)) * 2
}

// stereoPan is the squared share of right-channel magnitude. Silence is
// centred.
func stereoPan(l, r float64) float64 {
	l, r = math.Abs(l), math.Abs(r)
	sum := l + r
	if sum < epsilon {
		return feature.DefaultPan
	}
	ratio := r / sum
	return math.Max(feature.MinPan, math.Min(feature.MaxPan, ratio*ratio))
}
