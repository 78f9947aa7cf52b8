// SPDX-License-Identifier: MIT
package feature

import "math"

// Range summarises one dimension.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Statistics is the per-dimension summary of a Data. Uncomputed values take
// part with their defaults, so callers scaling a UI axis should check the
// computed flags first.
type Statistics struct {
	Count     int   `json:"count"`
	Modified  int   `json:"modified"`
	Amplitude Range `json:"amplitude"`
	Frequency Range `json:"frequency"`
	Phase     Range `json:"phase"`
	Volume    Range `json:"volume"`
	Pan       Range `json:"pan"`
}

type accumulator struct {
	min, max, sum float64
}

func newAccumulator() accumulator {
	return accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

func (a *accumulator) add(v float64) {
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
	a.sum += v
}

func (a *accumulator) result(n int) Range {
	if n == 0 {
		return Range{}
	}
	return Range{Min: a.min, Max: a.max, Avg: a.sum / float64(n)}
}

// CalculateStatistics computes min, max and average of every dimension in a
// single pass. An empty Data yields zero ranges.
func (d *Data) CalculateStatistics() Statistics {
	amp, freq, phase, vol, pan := newAccumulator(), newAccumulator(), newAccumulator(), newAccumulator(), newAccumulator()
	modified := 0
	for i := range d.samples {
		s := &d.samples[i]
		amp.add(s.Amplitude)
		freq.add(s.Frequency)
		phase.add(s.Phase)
		vol.add(s.Volume)
		pan.add(s.Pan)
		if s.WasModified {
			modified++
		}
	}

	n := len(d.samples)
	return Statistics{
		Count:     n,
		Modified:  modified,
		Amplitude: amp.result(n),
		Frequency: freq.result(n),
		Phase:     phase.result(n),
		Volume:    vol.result(n),
		Pan:       pan.result(n),
	}
}
