// SPDX-License-Identifier: MIT
package testsignal

import (
	"math"
	"testing"
)

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.5)
			if len(result) != tt.size {
				t.Fatalf("GenerateSineWave() size = %d, want %d", len(result), tt.size)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0) != (result[i] < 0) {
					crossCount++
				}
			}
			expected := float64(tt.size) / (samplesPerCycle / 2)
			if tolerance := 0.2 * expected; math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("zero crossings = %d, expected approximately %.1f±%.1f", crossCount, expected, tolerance)
			}
		})
	}
}

func TestGenerateComplexWave(t *testing.T) {
	result := GenerateComplexWave(4096, 44100)
	peak := 0.0
	for _, v := range result {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 || peak > 0.9 {
		t.Errorf("peak = %v, want (0, 0.9]", peak)
	}
}

func TestGenerateNoiseDeterministic(t *testing.T) {
	a := GenerateNoise(256, 7, 0.3)
	b := GenerateNoise(256, 7, 0.3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs with the same seed", i)
		}
		if math.Abs(a[i]) > 0.3 {
			t.Fatalf("sample %d = %v exceeds amplitude", i, a[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("RMS(nil) != 0")
	}
	sine := GenerateSineWave(44100, 44100, 100, 1)
	if got := RMS(sine); math.Abs(got-1/math.Sqrt2) > 1e-3 {
		t.Errorf("RMS(sine) = %v, want %v", got, 1/math.Sqrt2)
	}
	if got := RMS(Scale(sine, 0.5)); math.Abs(got-0.5/math.Sqrt2) > 1e-3 {
		t.Errorf("RMS(scaled) = %v", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	mags := make([]float64, 1024)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-256), 2))
	}

	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", mags, 0, 1023, 256},
		{"Negative Start", mags, -10, 1023, 256},
		{"Out of Range End", mags, 0, 4096, 256},
		{"Range Before Peak", mags, 0, 100, 100},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.mags, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", got, tt.expected)
			}
		})
	}
}
