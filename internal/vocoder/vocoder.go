// SPDX-License-Identifier: MIT
/*
Package vocoder implements frame-based spectral analysis and overlap-add
resynthesis of a loaded sample.

AnalyzeAudio slides a Hann-windowed 2048-point FFT across the first channel
with 75% overlap and keeps every frame's magnitude and phase spectrum.
SynthesizeAudio rebuilds a mono signal from those cached frames and copies it
to every output channel. When the cache is missing or describes different
audio it degrades to copying the feature amplitudes, so it always produces
output.

Cache lifecycle:

	NoCache --AnalyzeAudio--> Valid(samples, rate) --InvalidateCache--> NoCache

A cache whose sample count drifts more than 1% from the requested one, or
whose sample rate differs at all, is ignored for that call but kept.
*/
package vocoder

import (
	"math"
	"math/cmplx"

	"featidx/internal/buffer"
	"featidx/internal/feature"
	applog "featidx/internal/log"
	"featidx/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	// FFTSize is the analysis frame length in samples.
	FFTSize = 2048
	// HopSize is the distance between frame starts (75% overlap).
	HopSize = FFTSize / 4

	sampleCountTolerance = 0.01

	minAmplitudeScale = 0.5
	maxAmplitudeScale = 2.0

	minEnergyGain   = 0.5
	maxEnergyGain   = 2.0
	energyDeadband  = 0.1
	limiterKnee     = 0.8
	limiterTrigger  = 0.95
	limiterSlope    = 0.5
	windowWeightMin = 1e-8
	epsilon         = 1e-12
)

// frameCache is the analysis state of the most recently analysed buffer.
// It is replaced wholesale, never patched field by field.
type frameCache struct {
	valid       bool
	hopSize     int
	numFrames   int
	magnitudes  [][]float64
	phases      [][]float64
	sampleCount int
	sampleRate  float64
}

// matches reports whether the cache may be used to resynthesise samples
// at sampleRate.
func (c *frameCache) matches(samples int, sampleRate float64) bool {
	if !c.valid || c.sampleRate != sampleRate {
		return false
	}
	drift := math.Abs(float64(samples - c.sampleCount))
	return drift <= sampleCountTolerance*float64(c.sampleCount)
}

// PhaseVocoder performs windowed FFT analysis and overlap-add resynthesis.
// It does no locking; callers serialise access.
type PhaseVocoder struct {
	fft    *fourier.FFT
	window []float64
	cache  frameCache

	// Scratch buffers reused across frames.
	frame    []float64
	spectrum []complex128
}

// New returns a PhaseVocoder with no cached analysis.
func New() *PhaseVocoder {
	if !bitint.IsPowerOfTwo(FFTSize) {
		panic("vocoder: FFT size must be a power of 2")
	}

	win := make([]float64, FFTSize)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)

	return &PhaseVocoder{
		fft:      fourier.NewFFT(FFTSize),
		window:   win,
		frame:    make([]float64, FFTSize),
		spectrum: make([]complex128, FFTSize/2+1),
	}
}

// HasValidCache reports whether SynthesizeAudio would use the cached frames
// for a signal of the given length and rate.
func (v *PhaseVocoder) HasValidCache(samples int, sampleRate float64) bool {
	return v.cache.matches(samples, sampleRate)
}

// FrameCount returns the number of cached analysis frames.
func (v *PhaseVocoder) FrameCount() int {
	return v.cache.numFrames
}

// FrameMagnitudes copies the magnitude spectrum of cached frame i into dst,
// growing it if needed. It returns nil when i is out of range.
func (v *PhaseVocoder) FrameMagnitudes(i int, dst []float64) []float64 {
	if !v.cache.valid || i < 0 || i >= v.cache.numFrames {
		return nil
	}
	src := v.cache.magnitudes[i]
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	copy(dst, src)
	return dst
}

// FrameFrequency returns the centre frequency of bin k at the cached rate.
func (v *PhaseVocoder) FrameFrequency(k int) float64 {
	return v.fft.Freq(k) * v.cache.sampleRate
}

// InvalidateCache discards all cached frames.
func (v *PhaseVocoder) InvalidateCache() {
	if v.cache.valid {
		applog.Debugf("vocoder: invalidating cache of %d frames", v.cache.numFrames)
	}
	v.cache = frameCache{}
}

// AnalyzeAudio analyses the first channel of buf and caches every frame.
// The returned data has the raw sample as amplitude and, for the samples
// covered by each frame's hop, the frequency and phase of that frame's
// strongest bin.
func (v *PhaseVocoder) AnalyzeAudio(buf *buffer.Buffer, sampleRate float64) *feature.Data {
	n := buf.NumSamples()
	data := feature.NewData(n)
	if n == 0 || sampleRate <= 0 {
		applog.Warnf("vocoder: nothing to analyse (%d samples at %.0f Hz)", n, sampleRate)
		v.InvalidateCache()
		return data
	}

	src := buf.Channels[0]
	numFrames := (n + HopSize - 1) / HopSize
	cache := frameCache{
		valid:       true,
		hopSize:     HopSize,
		numFrames:   numFrames,
		magnitudes:  make([][]float64, numFrames),
		phases:      make([][]float64, numFrames),
		sampleCount: n,
		sampleRate:  sampleRate,
	}

	for f := range numFrames {
		start := f * HopSize
		for i := range FFTSize {
			if start+i < n {
				v.frame[i] = src[start+i] * v.window[i]
			} else {
				v.frame[i] = 0
			}
		}
		v.fft.Coefficients(v.spectrum, v.frame)

		mags := make([]float64, len(v.spectrum))
		phases := make([]float64, len(v.spectrum))
		peakBin := 1
		for k, c := range v.spectrum {
			mags[k] = cmplx.Abs(c)
			phases[k] = cmplx.Phase(c)
			// DC carries no pitch; the strongest bin is searched from bin 1.
			if k > 0 && mags[k] > mags[peakBin] {
				peakBin = k
			}
		}
		cache.magnitudes[f] = mags
		cache.phases[f] = phases

		freq := v.fft.Freq(peakBin) * sampleRate
		freq = math.Max(feature.MinFrequency, math.Min(feature.MaxFrequency, freq))
		phase := feature.WrapPhase(phases[peakBin])
		for i := start; i < min(start+HopSize, n); i++ {
			data.Set(i, feature.DefaultSample(src[i]))
			data.Store(i, feature.DimFrequency, freq)
			data.Store(i, feature.DimPhase, phase)
		}
	}

	v.cache = cache
	applog.Debugf("vocoder: analysed %d samples into %d frames (hop %d, %.0f Hz)",
		n, numFrames, HopSize, sampleRate)
	return data
}

// SynthesizeAudio writes audio for features into out, resizing it to the
// feature length. With a matching cache the signal is rebuilt from the
// cached spectra; otherwise each channel receives the feature amplitudes.
func (v *PhaseVocoder) SynthesizeAudio(features *feature.Data, out *buffer.Buffer, sampleRate float64) {
	n := features.Len()
	if out.NumSamples() != n || out.NumChannels() == 0 {
		out.SetSize(max(out.NumChannels(), 1), n)
	}

	if !v.cache.valid {
		applog.Warnf("vocoder: no spectral cache, using simple synthesis")
		synthesizeSimple(features, out)
		return
	}
	if !v.cache.matches(n, sampleRate) {
		applog.Warnf("vocoder: cache outdated (cached %d samples at %.0f Hz, requested %d at %.0f Hz), using simple synthesis",
			v.cache.sampleCount, v.cache.sampleRate, n, sampleRate)
		synthesizeSimple(features, out)
		return
	}

	amps := features.Amplitudes(nil)
	mono := v.reconstruct(v.amplitudeScale(amps), amps)

	signal := make([]float64, n)
	copy(signal, mono)

	compensateEnergy(signal, amps)
	softLimit(signal)

	for ch := range out.Channels {
		copy(out.Channels[ch], signal)
	}
}

// amplitudeScale is the ratio of the features' mean absolute amplitude to
// the first frame's mean magnitude, clamped to [0.5, 2].
func (v *PhaseVocoder) amplitudeScale(amps []float64) float64 {
	if len(amps) == 0 || v.cache.numFrames == 0 {
		return 1
	}
	var sumAbs float64
	for _, a := range amps {
		sumAbs += math.Abs(a)
	}
	avgAmp := sumAbs / float64(len(amps))
	avgMag := floats.Sum(v.cache.magnitudes[0]) / float64(len(v.cache.magnitudes[0]))
	if avgMag < epsilon {
		return 1
	}
	return math.Max(minAmplitudeScale, math.Min(maxAmplitudeScale, avgAmp/avgMag))
}

// reconstruct overlap-adds the inverse transform of every cached frame,
// windowed again on synthesis and normalised by the summed squared window.
// Positions the window never reaches (sample 0, where the symmetric Hann
// window is zero) take the feature amplitude, scaled like the frames.
func (v *PhaseVocoder) reconstruct(scale float64, amps []float64) []float64 {
	c := &v.cache
	length := c.sampleCount
	out := make([]float64, length)
	weights := make([]float64, length)
	norm := 1.0 / float64(FFTSize)

	for f := range c.numFrames {
		mags, phases := c.magnitudes[f], c.phases[f]
		for k := range v.spectrum {
			v.spectrum[k] = cmplx.Rect(mags[k]*scale, phases[k])
		}
		v.fft.Sequence(v.frame, v.spectrum)

		start := f * c.hopSize
		for i := range FFTSize {
			pos := start + i
			if pos >= length {
				break
			}
			w := v.window[i]
			out[pos] += v.frame[i] * norm * w
			weights[pos] += w * w
		}
	}

	for i := range out {
		switch {
		case weights[i] > windowWeightMin:
			out[i] /= weights[i]
		case i < len(amps):
			out[i] = amps[i] * scale
		default:
			out[i] = 0
		}
	}
	return out
}

// compensateEnergy matches the energy of signal to that of the reference
// amplitudes with a single clamped gain, applied only when it differs from
// unity by more than the deadband.
func compensateEnergy(signal, reference []float64) {
	inEnergy := floats.Dot(reference, reference)
	outEnergy := floats.Dot(signal, signal)
	if outEnergy < epsilon || inEnergy < epsilon {
		return
	}
	gain := math.Sqrt(inEnergy / outEnergy)
	gain = math.Max(minEnergyGain, math.Min(maxEnergyGain, gain))
	if math.Abs(gain-1) > energyDeadband {
		applog.Debugf("vocoder: energy compensation gain %.3f", gain)
		floats.Scale(gain, signal)
	}
}

// softLimit compresses everything above the knee at half slope, but only
// when the signal actually approaches full scale.
func softLimit(signal []float64) {
	peak := 0.0
	for _, s := range signal {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak <= limiterTrigger {
		return
	}
	for i, s := range signal {
		mag := math.Abs(s)
		if mag <= limiterKnee {
			continue
		}
		signal[i] = math.Copysign(limiterKnee+(mag-limiterKnee)*limiterSlope, s)
	}
}

// synthesizeSimple copies the feature amplitudes verbatim into every channel.
func synthesizeSimple(features *feature.Data, out *buffer.Buffer) {
	amps := features.Amplitudes(nil)
	for ch := range out.Channels {
		copy(out.Channels[ch], amps)
	}
}
