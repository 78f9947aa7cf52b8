// SPDX-License-Identifier: MIT
/*
Package feature holds the canonical per-sample feature store of a loaded
sample and the two strategies for turning edited features back into audio.

Every audio sample index has one Sample record. Amplitude is always valid once
the data is filled; frequency, phase, volume and pan are valid only when their
Dimension bit is set in the per-sample computed flags. The flags live in a
parallel byte slice so a Data of N samples costs two allocations, not N.

Data does no locking. The owner of a Data is expected to serialise editors,
extraction and resynthesis.
*/
package feature

import (
	"fmt"
	"math"
	"strings"
)

// Dimension identifies one lazily computed feature column.
type Dimension uint8

const (
	DimFrequency Dimension = 1 << iota
	DimPhase
	DimVolume
	DimPan

	// AllDimensions is the union of every lazily computed dimension.
	AllDimensions = DimFrequency | DimPhase | DimVolume | DimPan
)

// String returns a readable name, joining multiple bits with "|".
func (d Dimension) String() string {
	if d == 0 {
		return "none"
	}
	var names []string
	for _, dim := range []Dimension{DimFrequency, DimPhase, DimVolume, DimPan} {
		if d&dim == 0 {
			continue
		}
		switch dim {
		case DimFrequency:
			names = append(names, "frequency")
		case DimPhase:
			names = append(names, "phase")
		case DimVolume:
			names = append(names, "volume")
		case DimPan:
			names = append(names, "pan")
		}
	}
	return strings.Join(names, "|")
}

// ParseDimension converts a name (as printed by String) to a Dimension.
func ParseDimension(name string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "frequency", "freq":
		return DimFrequency, nil
	case "phase":
		return DimPhase, nil
	case "volume", "vol":
		return DimVolume, nil
	case "pan":
		return DimPan, nil
	case "all":
		return AllDimensions, nil
	default:
		return 0, fmt.Errorf("unknown feature dimension: '%s'", name)
	}
}

// Documented value ranges and the defaults used before a dimension is computed.
const (
	MinAmplitude = -1.0
	MaxAmplitude = 1.0

	MinFrequency = 20.0    // Hz
	MaxFrequency = 20000.0 // Hz

	// Volume is a linear gain where 1.0 is unity and 2.0 is the loudest
	// value the extractor can report (+6 dB on its dB scale).
	MinVolume = 0.0
	MaxVolume = 2.0

	MinPan = 0.0 // hard left
	MaxPan = 1.0 // hard right

	DefaultFrequency = 440.0
	DefaultPhase     = 0.0
	DefaultVolume    = 1.0
	DefaultPan       = 0.5
)

// DebugChecks enables index assertions on every accessor. Out-of-range
// indices are a caller bug; with checks off they fall through to the runtime
// bounds check.
var DebugChecks = false

// Sample is the feature record of one audio sample.
type Sample struct {
	Amplitude   float64
	Frequency   float64 // Hz
	Phase       float64 // radians, [0, 2π)
	Volume      float64 // linear gain, [0, 2]
	Pan         float64 // [0, 1], 0.5 centre
	WasModified bool
}

// DefaultSample returns a record with the given amplitude and every other
// dimension at its default.
func DefaultSample(amplitude float64) Sample {
	return Sample{
		Amplitude: amplitude,
		Frequency: DefaultFrequency,
		Phase:     DefaultPhase,
		Volume:    DefaultVolume,
		Pan:       DefaultPan,
	}
}

// Per-field tolerances used by ApproxEqual.
const (
	amplitudeTolerance = 1e-6
	frequencyTolerance = 0.01
	phaseTolerance     = 1e-4
	volumeTolerance    = 1e-4
	panTolerance       = 1e-4
)

// ApproxEqual reports whether two records describe the same features within
// per-field tolerances. The modification flag is not compared.
func (s Sample) ApproxEqual(o Sample) bool {
	return math.Abs(s.Amplitude-o.Amplitude) <= amplitudeTolerance &&
		math.Abs(s.Frequency-o.Frequency) <= frequencyTolerance &&
		math.Abs(s.Phase-o.Phase) <= phaseTolerance &&
		math.Abs(s.Volume-o.Volume) <= volumeTolerance &&
		math.Abs(s.Pan-o.Pan) <= panTolerance
}

// Data is an ordered sequence of Sample, index-aligned with the audio buffer
// it describes.
type Data struct {
	samples  []Sample
	computed []Dimension
}

// NewData returns a Data of n default samples with nothing computed.
func NewData(n int) *Data {
	d := &Data{}
	d.SetSize(n)
	return d
}

// Len returns the number of samples.
func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

// SetSize resizes the sequence. Existing samples are preserved; new samples
// are defaults with zero amplitude and nothing computed.
func (d *Data) SetSize(n int) {
	if n < 0 {
		n = 0
	}
	old := len(d.samples)
	if n <= old {
		d.samples = d.samples[:n]
		d.computed = d.computed[:n]
		return
	}

	samples := make([]Sample, n)
	computed := make([]Dimension, n)
	copy(samples, d.samples)
	copy(computed, d.computed)
	for i := old; i < n; i++ {
		samples[i] = DefaultSample(0)
	}
	d.samples = samples
	d.computed = computed
}

func (d *Data) check(i int) {
	if DebugChecks && (i < 0 || i >= len(d.samples)) {
		panic(fmt.Sprintf("feature: index %d out of range [0, %d)", i, len(d.samples)))
	}
}

// At returns a copy of the record at index i.
func (d *Data) At(i int) Sample {
	d.check(i)
	return d.samples[i]
}

// Set replaces the record at index i verbatim. No clamping is applied and
// the modification flag is taken from s.
func (d *Data) Set(i int, s Sample) {
	d.check(i)
	d.samples[i] = s
}

// IsComputed reports whether every dimension in dim is computed at index i.
func (d *Data) IsComputed(i int, dim Dimension) bool {
	d.check(i)
	return d.computed[i]&dim == dim
}

// SetComputed sets or clears the computed bits in dim at index i.
func (d *Data) SetComputed(i int, dim Dimension, computed bool) {
	d.check(i)
	if computed {
		d.computed[i] |= dim
	} else {
		d.computed[i] &^= dim
	}
}

// AllComputed reports whether dim is computed for every sample. An empty
// Data reports true.
func (d *Data) AllComputed(dim Dimension) bool {
	for _, c := range d.computed {
		if c&dim != dim {
			return false
		}
	}
	return true
}

// ComputedCount returns how many samples have dim computed.
func (d *Data) ComputedCount(dim Dimension) int {
	n := 0
	for _, c := range d.computed {
		if c&dim == dim {
			n++
		}
	}
	return n
}

// Store writes a computed value for one dimension and marks it computed.
// It does not clamp and does not mark the sample modified; it is the write
// path for extractors, not editors.
func (d *Data) Store(i int, dim Dimension, v float64) {
	d.check(i)
	s := &d.samples[i]
	switch dim {
	case DimFrequency:
		s.Frequency = v
	case DimPhase:
		s.Phase = v
	case DimVolume:
		s.Volume = v
	case DimPan:
		s.Pan = v
	default:
		return
	}
	d.computed[i] |= dim
}

// SetAmplitudeAt sets the amplitude, clamped to [-1, 1].
func (d *Data) SetAmplitudeAt(i int, v float64) {
	d.check(i)
	d.samples[i].Amplitude = clamp(v, MinAmplitude, MaxAmplitude)
	d.samples[i].WasModified = true
}

// SetFrequencyAt sets the frequency, clamped to [20, 20000] Hz.
func (d *Data) SetFrequencyAt(i int, v float64) {
	d.check(i)
	d.samples[i].Frequency = clamp(v, MinFrequency, MaxFrequency)
	d.samples[i].WasModified = true
}

// SetPhaseAt sets the phase, wrapped into [0, 2π).
func (d *Data) SetPhaseAt(i int, v float64) {
	d.check(i)
	d.samples[i].Phase = WrapPhase(v)
	d.samples[i].WasModified = true
}

// SetVolumeAt sets the volume, clamped to [0, 2].
func (d *Data) SetVolumeAt(i int, v float64) {
	d.check(i)
	d.samples[i].Volume = clamp(v, MinVolume, MaxVolume)
	d.samples[i].WasModified = true
}

// SetPanAt sets the pan position, clamped to [0, 1].
func (d *Data) SetPanAt(i int, v float64) {
	d.check(i)
	d.samples[i].Pan = clamp(v, MinPan, MaxPan)
	d.samples[i].WasModified = true
}

// ClearModificationFlags resets WasModified on every sample.
func (d *Data) ClearModificationFlags() {
	for i := range d.samples {
		d.samples[i].WasModified = false
	}
}

// ModifiedCount returns the number of samples flagged as modified.
func (d *Data) ModifiedCount() int {
	n := 0
	for i := range d.samples {
		if d.samples[i].WasModified {
			n++
		}
	}
	return n
}

// MarkAllComputed sets every computed flag without touching any value.
func (d *Data) MarkAllComputed() {
	for i := range d.computed {
		d.computed[i] = AllDimensions
	}
}

// Amplitudes copies the amplitude column into dst (grown if needed) and
// returns it.
func (d *Data) Amplitudes(dst []float64) []float64 {
	if cap(dst) < len(d.samples) {
		dst = make([]float64, len(d.samples))
	}
	dst = dst[:len(d.samples)]
	for i := range d.samples {
		dst[i] = d.samples[i].Amplitude
	}
	return dst
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	c := &Data{
		samples:  make([]Sample, len(d.samples)),
		computed: make([]Dimension, len(d.computed)),
	}
	copy(c.samples, d.samples)
	copy(c.computed, d.computed)
	return c
}

// WrapPhase maps any finite angle into [0, 2π). Non-finite input yields 0.
func WrapPhase(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	// Mod of a tiny negative value can round up to exactly 2π.
	if p >= 2*math.Pi {
		p = 0
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
