// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it reports key actions on
package ui

import (
	"github.com/Desdaemon/yume-jukebox/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
)

// PitchChangeMsg asks for a new pitch
type PitchChangeMsg struct {
	Pitch float64
}

// StateChangeMsg asks for a stream state transition
type StateChangeMsg struct {
	State playback.StreamState
}

// QuitMsg reports that the user quit the TUI
type QuitMsg struct{}

// PitchControl holds channels the TUI reports user actions on
type PitchControl struct {
	Changes chan PitchChangeMsg
	States  chan StateChangeMsg
	Quit    chan QuitMsg
}

// NewPitchControl creates a new pitch control handler
func NewPitchControl() *PitchControl {
	return &PitchControl{
		Changes: make(chan PitchChangeMsg, 10),
		States:  make(chan StateChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// send drops the change if the channel is full.
func (c *PitchControl) send(msg PitchChangeMsg) {
	if c == nil {
		return
	}
	select {
	case c.Changes <- msg:
	default:
	}
}

func (c *PitchControl) sendState(msg StateChangeMsg) {
	if c == nil {
		return
	}
	select {
	case c.States <- msg:
	default:
	}
}

func (c *PitchControl) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *PitchControl, pitch, step float64) Model {
	return Model{
		pitch:     pitch,
		pitchStep: step,
		state:     playback.Stopped,
		ctrl:      ctrl,
	}
}

// Run creates the TUI program. The caller runs it and feeds it StatusMsg
// values with Send.
func Run(ctrl *PitchControl, pitch, step float64) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl, pitch, step), tea.WithAltScreen())
	return p, nil
}
