// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	"github.com/Resonate-Protocol/playsync/internal/sync"
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a playback command issued from the keyboard
type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionToggle   Action = "toggle"
	ActionSave     Action = "save"
	ActionQuit     Action = "quit"
)

// Controls carries key actions from the TUI to the player
type Controls struct {
	Actions chan Action
}

// NewControls creates a new controls handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
	}
}

// send queues an action without blocking the UI
func (c *Controls) send(action Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- action:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		syncQuality: sync.QualityLost,
		controls:    controls,
	}
}

// Run creates the TUI program. The caller runs it.
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
