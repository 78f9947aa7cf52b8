// SPDX-License-Identifier: MIT
/*
Package testsignal generates deterministic float64 signals for tests and
benchmarks: pure tones, a harmonic tone, seeded noise and silence. Values are
in the nominal [-1, 1] sample range.
*/
package testsignal

import (
	"math"
	"math/rand"
)

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude, starting at phase 0.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics,
// peaking just under 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateNoise returns uniform white noise in [-amplitude, amplitude]. The
// same seed always yields the same samples.
func GenerateNoise(size int, seed int64, amplitude float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = amplitude * (2*rng.Float64() - 1)
	}
	return buffer
}

// Scale returns a copy of signal multiplied by gain.
func Scale(signal []float64, gain float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[i] = v * gain
	}
	return out
}

// RMS returns the root mean square of signal, 0 for an empty slice.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	var sum float64
	for _, v := range signal {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(signal)))
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
