// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Shows local playback state and the latest reconciliation outcome
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/playsync/internal/sync"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
	tea "github.com/charmbracelet/bubbletea"
)

// Playback is the local state shown in the TUI
type Playback struct {
	Type        reconcile.PlaybackType
	MediaID     string
	Title       string
	Artist      string
	QueueIndex  int
	QueueLen    int
	PositionSec float64
	Playing     bool
	LastSaveAt  int64 // Unix ms, server clock
}

// SyncStatus is the clock sync state
type SyncStatus struct {
	Offset  int64 // µs
	RTT     int64 // µs
	Quality sync.Quality
}

// DecisionStatus is the outcome of the latest poll reconciliation
type DecisionStatus struct {
	Decision reconcile.Decision
	At       time.Time
}

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string

	// Sync
	syncOffset  int64
	syncRTT     int64
	syncQuality sync.Quality

	// Playback
	playback Playback

	// Reconciliation
	decision    *DecisionStatus
	recovery    *reconcile.RecoveryDecision
	polls       int
	adoptions   int
	lastMessage string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
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
	s += m.renderPlayback()
	s += m.renderReconcile()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and sync status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	syncIcon := "✗"
	syncText := "Lost"
	switch m.syncQuality {
	case sync.QualityGood:
		syncIcon = "✓"
		syncText = fmt.Sprintf("Synced (offset: %+.1fms, rtt: %.1fms)",
			float64(m.syncOffset)/1000.0, float64(m.syncRTT)/1000.0)
	case sync.QualityDegraded:
		syncIcon = "⚠"
		syncText = "Degraded"
	}

	return fmt.Sprintf(`┌─ Playsync Player ────────────────────────────────────┐
│ Status: %-45s │
│ Sync:   %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45), syncIcon, truncate(syncText, 42))
}

// renderPlayback renders the current queue entry and play state
func (m Model) renderPlayback() string {
	p := m.playback
	if p.MediaID == "" {
		return "│ Nothing loaded                                       │\n"
	}

	state := "Paused"
	if p.Playing {
		state = "Playing"
	}

	s := fmt.Sprintf("│ %-52s │\n", fmt.Sprintf("%s (%s)", state, p.Type))
	title := p.Title
	if title == "" {
		title = p.MediaID
	}
	s += fmt.Sprintf("│   Track:  %-42s │\n", truncate(title, 42))
	if p.Artist != "" {
		s += fmt.Sprintf("│   Artist: %-42s │\n", truncate(p.Artist, 42))
	}
	s += fmt.Sprintf("│   Queue:  %-42s │\n", fmt.Sprintf("%d of %d", p.QueueIndex+1, p.QueueLen))
	s += fmt.Sprintf("│   At:     %-42s │\n", formatPosition(p.PositionSec))
	return s
}

// renderReconcile renders the last poll decision and the recovery outcome
func (m Model) renderReconcile() string {
	s := "├──────────────────────────────────────────────────────┤\n"

	if m.recovery != nil {
		s += fmt.Sprintf("│ Resume: %-45s │\n", truncate(fmt.Sprintf("%s authority at %s",
			m.recovery.Authority, formatPosition(m.recovery.ResumeAtSec)), 45))
	}

	if m.decision == nil {
		s += "│ Last poll: none yet                                  │\n"
	} else {
		verdict := "kept local"
		if m.decision.Decision.ShouldApplyServerSnapshot {
			verdict = "adopted server"
		}
		s += fmt.Sprintf("│ Last poll: %-42s │\n", truncate(fmt.Sprintf("%s (%s)",
			verdict, m.decision.Decision.Reason), 42))
	}

	s += fmt.Sprintf("│ %-52s │\n", fmt.Sprintf("Polls: %d  Adopted: %d", m.polls, m.adoptions))

	if m.lastMessage != "" {
		s += fmt.Sprintf("│ %-52s │\n", truncate(m.lastMessage, 52))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return fmt.Sprintf("│ %-52s │\n", "n:Next p:Prev space:Play s:Save d:Debug q:Quit") +
		"└──────────────────────────────────────────────────────┘\n"
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	saved := "never"
	if m.playback.LastSaveAt > 0 {
		saved = time.UnixMilli(m.playback.LastSaveAt).Format("15:04:05.000")
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Clock Offset: %-37s │
│   Last Save:    %-37s │
`, fmt.Sprintf("%+dμs", m.syncOffset), saved)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(ActionQuit)
		return m, tea.Quit
	case "n":
		m.controls.send(ActionNext)
	case "p":
		m.controls.send(ActionPrevious)
	case " ", "space":
		m.controls.send(ActionToggle)
	case "s":
		m.controls.send(ActionSave)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Sync != nil {
		m.syncOffset = msg.Sync.Offset
		m.syncRTT = msg.Sync.RTT
		m.syncQuality = msg.Sync.Quality
	}
	if msg.Playback != nil {
		m.playback = *msg.Playback
	}
	if msg.Decision != nil {
		d := *msg.Decision
		m.decision = &d
		m.polls++
		if d.Decision.ShouldApplyServerSnapshot {
			m.adoptions++
		}
	}
	if msg.Recovery != nil {
		r := *msg.Recovery
		m.recovery = &r
	}
	if msg.Message != "" {
		m.lastMessage = msg.Message
	}
}

// StatusMsg updates TUI state. Nil and zero fields leave the current value.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Sync       *SyncStatus
	Playback   *Playback
	Decision   *DecisionStatus
	Recovery   *reconcile.RecoveryDecision
	Message    string
}

// Utility functions
func formatPosition(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
