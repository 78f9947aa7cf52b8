// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"math"
	"testing"

	"featidx/internal/buffer"
	"featidx/internal/config"
	"featidx/internal/feature"
	"featidx/pkg/testsignal"
)

const (
	testSampleRate = 44100
	testSamples    = 4096
)

func newTestEngine(t *testing.T, channels int) (*Engine, *buffer.Buffer) {
	t.Helper()
	buf := buffer.New(channels, testSamples)
	for ch := range channels {
		copy(buf.Channels[ch], testsignal.GenerateSineWave(testSamples, testSampleRate, 440*float64(ch+1), 0.5))
	}
	e := NewEngine(config.Default())
	if err := e.Load(buf, testSampleRate); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e, buf
}

func TestOperationsWithoutSample(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		name string
		op   func() error
	}{
		{"Compute", func() error { return e.Compute(context.Background(), feature.AllDimensions) }},
		{"ComputeRange", func() error { return e.ComputeRange(feature.DimPan, 0, 10) }},
		{"Edit", func() error { return e.Edit(func(*feature.Data) {}) }},
		{"Analyze", func() error { _, err := e.Analyze(); return err }},
		{"Render", func() error { _, err := e.Render(ModeGlobal); return err }},
		{"Resize", func() error { return e.Resize(10) }},
		{"Reset", e.Reset},
		{"Statistics", func() error { _, err := e.Statistics(); return err }},
		{"Features", func() error { _, err := e.Features(); return err }},
		{"Buffer", func() error { _, err := e.Buffer(); return err }},
		{"Export", func() error { return e.Export("unused.wav", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, ErrNoSampleLoaded) {
				t.Errorf("error = %v, want ErrNoSampleLoaded", err)
			}
		})
	}
	if e.Loaded() {
		t.Error("Loaded() = true before Load")
	}
}

func TestLoadRejectsEmpty(t *testing.T) {
	e := NewEngine(nil)
	if err := e.Load(buffer.New(2, 0), testSampleRate); !errors.Is(err, ErrEmptySample) {
		t.Errorf("error = %v, want ErrEmptySample", err)
	}
	if err := e.Load(buffer.New(1, 10), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestLoadExtractsAmplitude(t *testing.T) {
	e, buf := newTestEngine(t, 2)

	// The engine keeps its own copy.
	buf.Channels[0][10] = 0.99

	d, err := e.Features()
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != testSamples {
		t.Fatalf("Len() = %d", d.Len())
	}
	if d.At(10).Amplitude == 0.99 {
		t.Error("engine aliases the caller's buffer")
	}
	if d.ComputedCount(feature.DimFrequency) != 0 {
		t.Error("load computed more than amplitude")
	}
	if e.SampleRate() != testSampleRate || !e.Loaded() {
		t.Errorf("SampleRate() = %v, Loaded() = %v", e.SampleRate(), e.Loaded())
	}
}

func TestCompute(t *testing.T) {
	e, _ := newTestEngine(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Compute(ctx, feature.AllDimensions); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	d, _ := e.Features()
	if d.ComputedCount(feature.DimFrequency) != 0 {
		t.Error("cancelled compute still ran")
	}

	if err := e.Compute(context.Background(), feature.DimVolume|feature.DimPan); err != nil {
		t.Fatal(err)
	}
	d, _ = e.Features()
	if !d.AllComputed(feature.DimVolume|feature.DimPan) || d.ComputedCount(feature.DimPhase) != 0 {
		t.Error("Compute did not honour the requested dimensions")
	}

	if err := e.ComputeRange(feature.DimPhase, 0, 100); err != nil {
		t.Fatal(err)
	}
	d, _ = e.Features()
	if d.ComputedCount(feature.DimPhase) != 100 {
		t.Errorf("ComputeRange computed %d phases, want 100", d.ComputedCount(feature.DimPhase))
	}
}

func editVolume(start, end int, v float64) func(*feature.Data) {
	return func(d *feature.Data) {
		for i := start; i <= end; i++ {
			d.SetVolumeAt(i, v)
		}
	}
}

func TestRenderLocalizedAccumulates(t *testing.T) {
	e, buf := newTestEngine(t, 2)

	if err := e.Edit(editVolume(100, 150, 0.25)); err != nil {
		t.Fatal(err)
	}
	first, err := e.Render(ModeLocalized)
	if err != nil {
		t.Fatal(err)
	}
	for ch := range 2 {
		for i := 150 + feature.FadeMargin + 1; i < testSamples; i++ {
			if first.Channels[ch][i] != buf.Channels[ch][i] {
				t.Fatalf("channel %d sample %d changed outside the edit", ch, i)
			}
		}
	}
	if first.Channels[0][125] == buf.Channels[0][125] {
		t.Error("edited sample was not re-rendered")
	}

	d, _ := e.Features()
	if d.ModifiedCount() != 0 {
		t.Errorf("ModifiedCount() = %d after render, want 0", d.ModifiedCount())
	}

	if err := e.Edit(editVolume(3000, 3010, 1.5)); err != nil {
		t.Fatal(err)
	}
	second, err := e.Render(ModeLocalized)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3000-feature.FadeMargin; i++ {
		if second.Channels[0][i] != first.Channels[0][i] {
			t.Fatalf("sample %d lost the earlier render", i)
		}
	}

	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	restored, _ := e.Buffer()
	if restored.Channels[0][125] != buf.Channels[0][125] {
		t.Error("Reset did not restore the loaded audio")
	}
}

func TestRenderGlobal(t *testing.T) {
	e, _ := newTestEngine(t, 1)
	if err := e.Edit(func(d *feature.Data) { d.SetPanAt(5, 1) }); err != nil {
		t.Fatal(err)
	}
	out, err := e.Render(ModeGlobal)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := e.Features()
	for i := range testSamples {
		s := d.At(i)
		l, r := feature.PanSplit(s.Amplitude*s.Volume, s.Pan)
		if out.Channels[0][i] != l || out.Channels[1][i] != r {
			t.Fatalf("sample %d = (%v, %v), want (%v, %v)", i, out.Channels[0][i], out.Channels[1][i], l, r)
		}
	}
	if out.Channels[0][5] != 0 {
		t.Errorf("hard-right sample leaked into left: %v", out.Channels[0][5])
	}
}

func TestRenderSpectralFallback(t *testing.T) {
	e, buf := newTestEngine(t, 2)

	// Without analysis the amplitudes are copied through and placed.
	out, err := e.Render(ModeSpectral)
	if err != nil {
		t.Fatal(err)
	}
	for i := range testSamples {
		l, r := feature.PanSplit(buf.Channels[0][i], feature.DefaultPan)
		if out.Channels[0][i] != l || out.Channels[1][i] != r {
			t.Fatalf("sample %d = (%v, %v), want (%v, %v)", i, out.Channels[0][i], out.Channels[1][i], l, r)
		}
	}
}

func TestRenderSpectral(t *testing.T) {
	e, buf := newTestEngine(t, 2)

	frames, err := e.Analyze()
	if err != nil {
		t.Fatal(err)
	}
	if frames == 0 || e.FrameCount() != frames {
		t.Fatalf("Analyze() = %d frames, FrameCount() = %d", frames, e.FrameCount())
	}
	if mags := e.FrameMagnitudes(0, nil); len(mags) == 0 {
		t.Error("no magnitudes for frame 0")
	}

	out, err := e.Render(ModeSpectral)
	if err != nil {
		t.Fatal(err)
	}
	// A centred sample carries sqrt(1/2) of its level on each side.
	want := testsignal.RMS(buf.Channels[0]) * math.Sqrt(feature.DefaultPan)
	for ch := range 2 {
		if got := testsignal.RMS(out.Channels[ch]); math.Abs(got-want) > 0.1*want {
			t.Errorf("channel %d spectral RMS = %.4f, want %.4f ±10%%", ch, got, want)
		}
	}
}

func TestRenderSpectralPlacement(t *testing.T) {
	tests := []struct {
		name      string
		volume    float64
		pan       float64
		leftGain  float64
		rightGain float64
	}{
		{"HardLeft", 1, 0, 1, 0},
		{"HardRight", 1, 1, 0, 1},
		{"Muted", 0, 0.5, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, buf := newTestEngine(t, 2)
			if _, err := e.Analyze(); err != nil {
				t.Fatal(err)
			}
			err := e.Edit(func(d *feature.Data) {
				for i := range d.Len() {
					d.SetVolumeAt(i, tt.volume)
					d.SetPanAt(i, tt.pan)
				}
			})
			if err != nil {
				t.Fatal(err)
			}

			out, err := e.Render(ModeSpectral)
			if err != nil {
				t.Fatal(err)
			}
			in := testsignal.RMS(buf.Channels[0])
			for ch, gain := range []float64{tt.leftGain, tt.rightGain} {
				got := testsignal.RMS(out.Channels[ch])
				if gain == 0 {
					if got != 0 {
						t.Errorf("channel %d RMS = %v, want silence", ch, got)
					}
					continue
				}
				if want := gain * in; math.Abs(got-want) > 0.1*want {
					t.Errorf("channel %d RMS = %.4f, want %.4f ±10%%", ch, got, want)
				}
			}
		})
	}
}

func TestRenderRefreshesCaches(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	if _, err := e.Analyze(); err != nil {
		t.Fatal(err)
	}
	err := e.Edit(func(d *feature.Data) {
		for i := range d.Len() {
			d.SetAmplitudeAt(i, 0)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Render(ModeGlobal); err != nil {
		t.Fatal(err)
	}
	if e.FrameCount() != 0 {
		t.Fatalf("FrameCount() = %d after render, want the spectral cache dropped", e.FrameCount())
	}

	// The spectral render falls back to the silenced amplitudes instead of
	// rebuilding the audio from before the global render.
	out, err := e.Render(ModeSpectral)
	if err != nil {
		t.Fatal(err)
	}
	if p := out.Peak(); p != 0 {
		t.Errorf("spectral render peak = %v, want silence", p)
	}

	// On-demand computations read the rendered audio.
	if err := e.Compute(context.Background(), feature.DimVolume); err != nil {
		t.Fatal(err)
	}
	d, _ := e.Features()
	if v := d.At(testSamples / 2).Volume; v != 0 {
		t.Errorf("volume = %v, want 0 from the silent rendered audio", v)
	}
}

func TestResize(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	if _, err := e.Analyze(); err != nil {
		t.Fatal(err)
	}
	if err := e.Resize(testSamples + 100); err != nil {
		t.Fatal(err)
	}

	d, _ := e.Features()
	buf, _ := e.Buffer()
	if d.Len() != testSamples+100 || buf.NumSamples() != testSamples+100 {
		t.Fatalf("sizes after resize: features %d, audio %d", d.Len(), buf.NumSamples())
	}
	if e.FrameCount() != 0 {
		t.Error("Resize kept the spectral cache")
	}
	if err := e.Resize(-1); err == nil {
		t.Error("expected error for negative size")
	}
}

func TestStatistics(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	if err := e.Edit(editVolume(0, 9, 2)); err != nil {
		t.Fatal(err)
	}
	stats, err := e.Statistics()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != testSamples || stats.Modified != 10 {
		t.Errorf("Count = %d, Modified = %d", stats.Count, stats.Modified)
	}
	if stats.Volume.Max != 2 {
		t.Errorf("Volume.Max = %v, want 2", stats.Volume.Max)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"localized", ModeLocalized, false},
		{"Global", ModeGlobal, false},
		{" spectral ", ModeSpectral, false},
		{"vocoder", ModeSpectral, false},
		{"granular", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
			}
			if err == nil && got.String() == "unknown" {
				t.Errorf("%v has no name", got)
			}
		})
	}
}
