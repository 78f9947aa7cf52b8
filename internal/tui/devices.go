// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"featidx/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	keyQuit  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter = key.NewBinding(key.WithKeys("enter"))
	keyBack  = key.NewBinding(key.WithKeys("esc"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// BufferSizes are the frames-per-buffer choices offered for preview playback.
var BufferSizes = []int{128, 256, 512, 1024, 2048}

// DeviceListModel lists the output devices and lets the user pick one and a
// preview buffer size.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType
	confirmed     bool

	bufferIndex int
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a device list model. A nil fetch lists the
// host's output devices through PortAudio.
func NewDeviceListModel(fetch func() ([]audio.Device, error), framesPerBuffer int) DeviceListModel {
	if fetch == nil {
		fetch = audio.GetDevices
	}
	m := DeviceListModel{fetch: fetch, activeScreen: ListScreen}
	for i, size := range BufferSizes {
		if size == framesPerBuffer {
			m.bufferIndex = i
		}
	}
	return m
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.IsDefaultOutput {
				m.selectedIndex = i
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keyDown):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keyEnter):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
				}
			}
		case ConfigScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keyUp):
				if m.bufferIndex > 0 {
					m.bufferIndex--
				}
			case key.Matches(msg, keyDown):
				if m.bufferIndex < len(BufferSizes)-1 {
					m.bufferIndex++
				}
			case key.Matches(msg, keyEnter):
				m.confirmed = true
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refresh re-renders the active screen into the viewport.
func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen && len(m.devices) > 0 {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Preview Configuration")
		help = infoStyle.Render("↑/↓: Buffer Size • Enter: Select • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// Selection returns the chosen device ID and buffer size. ok is false until
// the user confirms a choice.
func (m DeviceListModel) Selection() (deviceID, framesPerBuffer int, ok bool) {
	if !m.confirmed || len(m.devices) == 0 {
		return 0, 0, false
	}
	return m.devices[m.selectedIndex].ID, BufferSizes[m.bufferIndex], true
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultOutput {
			marker = " (default)"
		}
		info := fmt.Sprintf("[%d] %s%s\n", device.ID, device.Name, marker)
		info += fmt.Sprintf("    Output channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxOutputChannels, device.DefaultSampleRate)
		info += fmt.Sprintf("    Latency: %s low, %s high\n", device.LowLatency, device.HighLatency)

		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Preview on: %s\n\n", device.Name)
	sb.WriteString("Frames per buffer:\n")
	for i, size := range BufferSizes {
		cursor := " "
		if i == m.bufferIndex {
			cursor = "▶"
		}
		line := fmt.Sprintf("  %s %5d\n", cursor, size)
		if device.DefaultSampleRate > 0 {
			latency := float64(size) / device.DefaultSampleRate * 1000
			line = fmt.Sprintf("  %s %5d (%.1f ms)\n", cursor, size, latency)
		}
		if i == m.bufferIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// StartDeviceListUI runs the device picker and returns the confirmed choice.
func StartDeviceListUI(framesPerBuffer int) (deviceID, frames int, ok bool, err error) {
	p := tea.NewProgram(
		NewDeviceListModel(nil, framesPerBuffer),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return 0, 0, false, err
	}
	deviceID, frames, ok = final.(DeviceListModel).Selection()
	return deviceID, frames, ok, nil
}
