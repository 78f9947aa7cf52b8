// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"featidx/internal/audio"
	"featidx/internal/feature"

	tea "github.com/charmbracelet/bubbletea"
)

var fakeDevices = []audio.Device{
	{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000, LowLatency: 10 * time.Millisecond},
	{ID: 3, Name: "Headphones", MaxOutputChannels: 2, DefaultSampleRate: 44100, IsDefaultOutput: true},
	{ID: 4, Name: "HDMI", MaxOutputChannels: 8, DefaultSampleRate: 48000},
}

func keyPress(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func send(t *testing.T, m tea.Model, msgs ...tea.Msg) tea.Model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func loadedModel(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return fakeDevices, nil }, 512)
	msg := m.Init()()
	return send(t, m, tea.WindowSizeMsg{Width: 80, Height: 40}, msg).(DeviceListModel)
}

func TestDeviceListSelectsDefault(t *testing.T) {
	m := loadedModel(t)
	if m.selectedIndex != 1 {
		t.Errorf("selectedIndex = %d, want the default output", m.selectedIndex)
	}
	view := m.View()
	for _, want := range []string{"Output Devices", "Speakers", "Headphones (default)", "HDMI"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if _, _, ok := m.Selection(); ok {
		t.Error("Selection() ok before confirming")
	}
}

func TestDeviceListNavigation(t *testing.T) {
	tests := []struct {
		name       string
		keys       []tea.Msg
		wantDevice int
		wantFrames int
		wantOK     bool
	}{
		{"ConfirmDefault", []tea.Msg{keyPress(tea.KeyEnter), keyPress(tea.KeyEnter)}, 3, 512, true},
		{"MoveDownAndBigger", []tea.Msg{keyPress(tea.KeyDown), keyPress(tea.KeyEnter), keyPress(tea.KeyDown), keyPress(tea.KeyEnter)}, 4, 1024, true},
		{"ClampAtTop", []tea.Msg{runeKey('k'), runeKey('k'), runeKey('k'), keyPress(tea.KeyEnter), keyPress(tea.KeyEnter)}, 1, 512, true},
		{"BackOut", []tea.Msg{keyPress(tea.KeyEnter), keyPress(tea.KeyEsc), runeKey('j'), keyPress(tea.KeyEnter), keyPress(tea.KeyEnter)}, 4, 512, true},
		{"NotConfirmed", []tea.Msg{keyPress(tea.KeyEnter), keyPress(tea.KeyUp)}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := send(t, loadedModel(t), tt.keys...).(DeviceListModel)
			id, frames, ok := m.Selection()
			if id != tt.wantDevice || frames != tt.wantFrames || ok != tt.wantOK {
				t.Errorf("Selection() = %d, %d, %v; want %d, %d, %v", id, frames, ok, tt.wantDevice, tt.wantFrames, tt.wantOK)
			}
		})
	}
}

func TestDeviceListConfigScreen(t *testing.T) {
	m := send(t, loadedModel(t), keyPress(tea.KeyEnter)).(DeviceListModel)
	view := m.View()
	if !strings.Contains(view, "Preview on: Headphones") || !strings.Contains(view, "(11.6 ms)") {
		t.Errorf("config view = %q", view)
	}
}

func TestDeviceListQuit(t *testing.T) {
	_, cmd := loadedModel(t).Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host API") }, 0)
	if m.View() != "Initializing..." {
		t.Errorf("view before sizing = %q", m.View())
	}
	next := send(t, m, tea.WindowSizeMsg{Width: 80, Height: 20}, m.Init()())
	if !strings.Contains(next.View(), "no host API") {
		t.Errorf("view = %q", next.View())
	}
}

func TestDeviceListEmpty(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, nil }, 256)
	next := send(t, m, tea.WindowSizeMsg{Width: 80, Height: 20}, m.Init()(), keyPress(tea.KeyEnter)).(DeviceListModel)
	if next.activeScreen != ListScreen {
		t.Error("enter without devices left the list screen")
	}
	if !strings.Contains(next.View(), "No output devices found.") {
		t.Errorf("view = %q", next.View())
	}
}

func testReport() Report {
	d := feature.NewData(100)
	for i := range 100 {
		d.Set(i, feature.DefaultSample(float64(i)/100))
	}
	for i := range 50 {
		d.Store(i, feature.DimVolume, 1)
	}
	d.SetAmplitudeAt(10, 0.9)
	d.SetAmplitudeAt(11, 0.9)
	return NewReport("tone.wav", 44100, 2, d, 3)
}

func TestReportRender(t *testing.T) {
	r := testReport()
	if r.Computed[feature.DimVolume] != 50 || r.Computed[feature.DimPan] != 0 {
		t.Errorf("computed = %v", r.Computed)
	}

	out := r.Render()
	for _, want := range []string{
		"Source:      tone.wav",
		"Samples:     100 (2 channels, 44100 Hz)",
		"Frames:      3",
		" 50.0%",
		"  0.0%",
		"Modified:    2 samples in 1 regions",
		"[10, 11] 2 samples",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReportEmpty(t *testing.T) {
	out := NewReport("empty.wav", 0, 0, feature.NewData(0), 0).Render()
	if strings.Contains(out, "Duration") || strings.Contains(out, "Frames") {
		t.Errorf("empty report shows duration or frames:\n%s", out)
	}
	if !strings.Contains(out, "Modified:    0 samples in 0 regions") {
		t.Errorf("report:\n%s", out)
	}
}

func TestReportModel(t *testing.T) {
	m := tea.Model(NewReportModel(testReport()))
	if m.View() != "Initializing..." {
		t.Errorf("view before sizing = %q", m.View())
	}
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	if !strings.Contains(m.View(), "Feature Index") || !strings.Contains(m.View(), "tone.wav") {
		t.Errorf("view = %q", m.View())
	}

	_, cmd := m.Update(keyPress(tea.KeyEsc))
	if cmd == nil {
		t.Fatal("esc returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc did not quit")
	}
}
