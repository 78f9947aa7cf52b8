// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"featidx/internal/feature"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D"))

// Report is a snapshot of a loaded sample's feature index.
type Report struct {
	Source     string
	SampleRate float64
	Channels   int
	Stats      feature.Statistics
	Computed   map[feature.Dimension]int
	Regions    []feature.Region
	Frames     int
}

// NewReport summarises d.
func NewReport(source string, sampleRate float64, channels int, d *feature.Data, frames int) Report {
	r := Report{
		Source:     source,
		SampleRate: sampleRate,
		Channels:   channels,
		Stats:      d.CalculateStatistics(),
		Computed:   make(map[feature.Dimension]int),
		Regions:    d.Regions(),
		Frames:     frames,
	}
	for _, dim := range reportDimensions {
		r.Computed[dim] = d.ComputedCount(dim)
	}
	return r
}

var reportDimensions = []feature.Dimension{
	feature.DimFrequency, feature.DimPhase, feature.DimVolume, feature.DimPan,
}

// Render formats the report as plain text.
func (r Report) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Source:      %s\n", r.Source)
	fmt.Fprintf(&sb, "Samples:     %d (%d channels, %.0f Hz)\n", r.Stats.Count, r.Channels, r.SampleRate)
	if r.SampleRate > 0 {
		fmt.Fprintf(&sb, "Duration:    %.3f s\n", float64(r.Stats.Count)/r.SampleRate)
	}
	if r.Frames > 0 {
		fmt.Fprintf(&sb, "Frames:      %d\n", r.Frames)
	}

	sb.WriteString("\nDimension      Min          Max          Avg      Computed\n")
	row := func(name string, rg feature.Range, computed string) {
		fmt.Fprintf(&sb, "%-10s %12.4f %12.4f %12.4f   %s\n", name, rg.Min, rg.Max, rg.Avg, computed)
	}
	row("amplitude", r.Stats.Amplitude, "always")
	ranges := map[feature.Dimension]feature.Range{
		feature.DimFrequency: r.Stats.Frequency,
		feature.DimPhase:     r.Stats.Phase,
		feature.DimVolume:    r.Stats.Volume,
		feature.DimPan:       r.Stats.Pan,
	}
	for _, dim := range reportDimensions {
		row(dim.String(), ranges[dim], r.coverage(dim))
	}

	fmt.Fprintf(&sb, "\nModified:    %d samples in %d regions\n", r.Stats.Modified, len(r.Regions))
	for _, reg := range r.Regions {
		fmt.Fprintf(&sb, "  [%d, %d] %d samples\n", reg.Start, reg.End, reg.Len())
	}
	return sb.String()
}

func (r Report) coverage(dim feature.Dimension) string {
	if r.Stats.Count == 0 {
		return "-"
	}
	n := r.Computed[dim]
	return fmt.Sprintf("%5.1f%%", 100*float64(n)/float64(r.Stats.Count))
}

// ReportModel shows a Report in a scrollable viewport.
type ReportModel struct {
	report   Report
	viewport viewport.Model
	ready    bool
}

// NewReportModel creates a model for r.
func NewReportModel(r Report) ReportModel {
	return ReportModel{report: r}
}

func (m ReportModel) Init() tea.Cmd {
	return nil
}

func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.SetContent(m.report.Render())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
	case tea.KeyMsg:
		if key.Matches(msg, keyQuit, keyBack) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ReportModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Feature Index")
	help := dimStyle.Render("↑/↓: Scroll • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// StartReportUI shows r until the user quits.
func StartReportUI(r Report) error {
	_, err := tea.NewProgram(NewReportModel(r), tea.WithAltScreen()).Run()
	return err
}
