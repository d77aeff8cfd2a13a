// ABOUTME: Bubbletea model for the pitch player TUI
// ABOUTME: Defines display state, key handling and status updates
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Desdaemon/yume-jukebox/pkg/playback"
	"github.com/Desdaemon/yume-jukebox/pkg/stretch"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Clip
	file       string
	mime       string
	sampleRate int
	channels   int
	duration   time.Duration

	// Playback
	backend   string
	handle    string
	state     playback.StreamState
	pitch     float64
	pitchStep float64

	// Stats
	position time.Duration
	cursor   int
	rendered int64

	// Debug
	showDebug bool

	ctrl *PitchControl

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderClipInfo()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the file and stream state
func (m Model) renderHeader() string {
	stateIcon := "■"
	switch m.state {
	case playback.Started:
		stateIcon = "▶"
	case playback.Paused:
		stateIcon = "⏸"
	}

	return fmt.Sprintf(`┌─ Yume Jukebox ───────────────────────────────────────┐
│ File:   %-44s │
│ State:  %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(filepath.Base(m.file), 44), stateIcon, fmt.Sprintf("%s (%s)", m.state, m.backend))
}

// renderClipInfo renders the decoded format
func (m Model) renderClipInfo() string {
	if m.sampleRate == 0 {
		return "│ No clip                                              │\n"
	}

	return fmt.Sprintf("│ Format: %-44s │\n│ Length: %-44s │\n",
		truncate(fmt.Sprintf("%s %dHz %s", m.mime, m.sampleRate, channelName(m.channels)), 44),
		m.duration.Round(time.Millisecond).String())
}

// renderControls renders the pitch gauge
func (m Model) renderControls() string {
	pitchBar := renderBar(m.pitch-stretch.MinTransposeFactor,
		stretch.MaxTransposeFactor-stretch.MinTransposeFactor, 20)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Pitch:  [%s] x%-22.2f │\n"+
		"│ Step:   %-44.2f │\n",
		pitchBar, m.pitch, m.pitchStep)
}

// renderStats renders loop progress
func (m Model) renderStats() string {
	progress := 0.0
	if m.duration > 0 {
		progress = float64(m.position) / float64(m.duration)
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Loop:   [%s] %-23s │
│ Frames: %-44d │
│                                                      │
`, renderBar(progress, 1, 20), m.position.Round(10*time.Millisecond).String(), m.rendered)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Pitch  r:Reset  space:Play/Pause  s:Stop  q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Handle: %-42s │
│   Cursor: %-42d │
`, m.handle, m.cursor)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.quit()
		return m, tea.Quit
	case "up", "k", "+":
		m.setPitch(m.pitch + m.pitchStep)
	case "down", "j", "-":
		m.setPitch(m.pitch - m.pitchStep)
	case "r":
		m.setPitch(1)
	case " ", "space":
		if m.state == playback.Started {
			m.requestState(playback.Paused)
		} else {
			m.requestState(playback.Started)
		}
	case "s":
		m.requestState(playback.Stopped)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setPitch(pitch float64) {
	pitch = stretch.Clamp(pitch)
	if pitch == m.pitch {
		return
	}
	m.pitch = pitch
	m.ctrl.send(PitchChangeMsg{Pitch: pitch})
}

func (m *Model) requestState(state playback.StreamState) {
	m.state = state
	m.ctrl.sendState(StateChangeMsg{State: state})
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.File != "" {
		m.file = msg.File
	}
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Handle != "" {
		m.handle = msg.Handle
	}
	if msg.SampleRate != 0 {
		m.mime = msg.MIME
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.duration = msg.Duration
	}
	if msg.State != nil {
		m.state = *msg.State
	}
	if msg.Pitch != 0 {
		m.pitch = msg.Pitch
	}
	if msg.Rendered != 0 {
		m.position = msg.Position
		m.cursor = msg.Cursor
		m.rendered = msg.Rendered
	}
}

// StatusMsg updates TUI state. Zero fields leave the current value.
type StatusMsg struct {
	File       string
	Backend    string
	Handle     string
	MIME       string
	SampleRate int
	Channels   int
	Duration   time.Duration
	State      *playback.StreamState
	Pitch      float64
	Position   time.Duration
	Cursor     int
	Rendered   int64
}

// Utility functions
func renderBar(value, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value * float64(width) / max)
	}
	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
