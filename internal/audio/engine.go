// SPDX-License-Identifier: MIT
/*
Package audio holds the loaded sample and drives feature extraction,
editing, resynthesis, preview playback and export around it.

The Engine owns the current audio, a snapshot of the audio as loaded, the
feature data, the extractor and the phase vocoder. Localized renders patch
the current audio, so successive edit-and-render rounds accumulate until
Reset restores the snapshot. Every operation takes the engine lock, so editors, renderers
and frame publishers may share one Engine across goroutines. Preview
playback only holds the lock while copying the buffer it plays.
*/
package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"featidx/internal/buffer"
	"featidx/internal/config"
	"featidx/internal/extract"
	"featidx/internal/feature"
	applog "featidx/internal/log"
	"featidx/internal/vocoder"
)

// Mode selects how Render turns feature data back into audio.
type Mode int

const (
	// ModeLocalized re-synthesises only edited regions over the current audio.
	ModeLocalized Mode = iota
	// ModeGlobal re-synthesises every sample from its features.
	ModeGlobal
	// ModeSpectral resynthesises from the cached spectral frames.
	ModeSpectral
)

func (m Mode) String() string {
	switch m {
	case ModeLocalized:
		return "localized"
	case ModeGlobal:
		return "global"
	case ModeSpectral:
		return "spectral"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name (as printed by String) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "localized", "local":
		return ModeLocalized, nil
	case "global":
		return ModeGlobal, nil
	case "spectral", "vocoder":
		return ModeSpectral, nil
	default:
		return 0, fmt.Errorf("unknown render mode: '%s'", s)
	}
}

type Engine struct {
	config *config.Config

	mu         sync.Mutex
	current    *buffer.Buffer // Audio as last rendered
	original   *buffer.Buffer // Snapshot taken at load time
	sampleRate float64
	features   *feature.Data
	extractor  *extract.Extractor
	vocoder    *vocoder.PhaseVocoder

	isPlaying int32 // Atomic flag for thread-safe preview state
}

// NewEngine returns an engine with no sample loaded.
func NewEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		config:    cfg,
		extractor: extract.New(),
		vocoder:   vocoder.New(),
	}
}

// Load replaces the current sample. Only amplitude is extracted; other
// dimensions are computed on demand.
func (e *Engine) Load(buf *buffer.Buffer, sampleRate float64) error {
	if buf.NumSamples() == 0 {
		return ErrEmptySample
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %.0f", sampleRate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.original = buf.Clone()
	e.sampleRate = sampleRate
	e.reload()

	applog.Infof("audio: loaded %d samples, %d channels at %.0f Hz",
		buf.NumSamples(), buf.NumChannels(), sampleRate)
	return nil
}

// Reset discards every render and edit and re-extracts the loaded sample.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.original == nil {
		return ErrNoSampleLoaded
	}
	e.reload()
	return nil
}

func (e *Engine) reload() {
	e.current = e.original.Clone()
	e.features = e.extractor.ExtractAmplitudeOnly(e.current, e.sampleRate)
	e.vocoder.InvalidateCache()
}

// Loaded reports whether a sample is loaded.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.features != nil
}

// SampleRate returns the rate of the loaded sample, or 0.
func (e *Engine) SampleRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// Compute runs the on-demand computation of each dimension in dims, one
// dimension at a time, stopping early if ctx is cancelled.
func (e *Engine) Compute(ctx context.Context, dims feature.Dimension) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return ErrNoSampleLoaded
	}
	for _, dim := range []feature.Dimension{
		feature.DimFrequency, feature.DimPhase, feature.DimVolume, feature.DimPan,
	} {
		if dims&dim == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.extractor.Compute(e.features, dim)
		applog.Debugf("audio: computed %s", dim)
	}
	return nil
}

// ComputeRange computes dims for samples [start, end).
func (e *Engine) ComputeRange(dims feature.Dimension, start, end int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return ErrNoSampleLoaded
	}
	e.extractor.ComputeRange(e.features, dims, start, end)
	return nil
}

// Edit runs fn with exclusive access to the feature data.
func (e *Engine) Edit(fn func(d *feature.Data)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return ErrNoSampleLoaded
	}
	fn(e.features)
	return nil
}

// Analyze runs spectral analysis of the current audio and replaces the
// feature data with its result. It returns the number of frames analysed.
func (e *Engine) Analyze() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return 0, ErrNoSampleLoaded
	}
	e.features = e.vocoder.AnalyzeAudio(e.current, e.sampleRate)
	return e.vocoder.FrameCount(), nil
}

// Render converts the feature data to audio with the given mode. The result
// becomes the current audio and a copy is returned. Modification flags are
// cleared afterwards. Localized renders use the current audio as reference;
// spectral renders are placed with each sample's volume and pan. The
// spectral cache is dropped and later computations read the rendered audio,
// so a spectral render needs a fresh Analyze to use the vocoder again.
func (e *Engine) Render(mode Mode) (*buffer.Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return nil, ErrNoSampleLoaded
	}

	modified := e.features.ModifiedCount()
	var out *buffer.Buffer
	switch mode {
	case ModeLocalized:
		out = buffer.New(2, e.features.Len())
		e.features.ApplyToAudioBuffer(out, e.sampleRate, e.current)
	case ModeGlobal:
		out = buffer.New(2, e.features.Len())
		e.features.ApplyToAudioBuffer(out, e.sampleRate, nil)
	case ModeSpectral:
		out = buffer.New(1, e.features.Len())
		e.vocoder.SynthesizeAudio(e.features, out, e.sampleRate)
		e.features.ApplyPlacement(out)
	default:
		return nil, fmt.Errorf("audio: unknown render mode %d", mode)
	}

	e.features.ClearModificationFlags()
	e.current = out
	// Both caches described the audio before this render.
	e.vocoder.InvalidateCache()
	e.extractor.SetSource(e.current, e.sampleRate)
	applog.Debugf("audio: %s render of %d samples (%d modified)", mode, out.NumSamples(), modified)
	return out.Clone(), nil
}

// Resize changes the sample length. Audio and feature data are resized in
// lockstep; grown samples are silent with default features. The spectral
// cache is dropped.
func (e *Engine) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("audio: invalid sample count %d", n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return ErrNoSampleLoaded
	}
	e.current.SetSize(e.current.NumChannels(), n)
	e.features.SetSize(n)
	e.vocoder.InvalidateCache()
	e.extractor.SetSource(e.current, e.sampleRate)
	return nil
}

// Statistics summarises the feature data.
func (e *Engine) Statistics() (feature.Statistics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return feature.Statistics{}, ErrNoSampleLoaded
	}
	return e.features.CalculateStatistics(), nil
}

// Features returns a copy of the feature data.
func (e *Engine) Features() (*feature.Data, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.features == nil {
		return nil, ErrNoSampleLoaded
	}
	return e.features.Clone(), nil
}

// Buffer returns a copy of the current audio.
func (e *Engine) Buffer() (*buffer.Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil, ErrNoSampleLoaded
	}
	return e.current.Clone(), nil
}

// FrameCount returns the number of cached spectral frames.
func (e *Engine) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vocoder.FrameCount()
}

// FrameMagnitudes copies the magnitude spectrum of frame i into dst.
func (e *Engine) FrameMagnitudes(i int, dst []float64) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vocoder.FrameMagnitudes(i, dst)
}

// Playing reports whether a preview is running.
func (e *Engine) Playing() bool {
	return atomic.LoadInt32(&e.isPlaying) == 1
}
