// ABOUTME: Server TUI for displaying connected players and stored snapshots
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server

	mu      sync.Mutex
	stopped bool
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name    string
	Port    int
	Clients []ClientInfo
	Users   []UserInfo
}

// ClientInfo holds client information for display
type ClientInfo struct {
	Name   string
	ID     string
	UserID string
	Saves  int
	Polls  int
}

// UserInfo summarizes a user's last stored snapshot
type UserInfo struct {
	UserID       string
	PlaybackType string
	MediaID      string
	QueueLen     int
	QueueIndex   int
	PositionSec  float64
	ShouldPlay   bool
	UpdatedAt    time.Time
	Origin       string
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{} // Channel to signal server stop
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}
	return renderStatus(m.status, time.Since(m.startTime))
}

// renderStatus draws the status screen
func renderStatus(status ServerStatus, uptime time.Duration) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Playsync Server"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(uptime.Round(time.Second).String()))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Connected Players (%d)", len(status.Clients))))
	b.WriteString("\n\n")

	if len(status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No players connected"))
		b.WriteString("\n")
	} else {
		for _, client := range status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (user %s, %d saves, %d polls)", client.UserID, client.Saves, client.Polls)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Stored Snapshots (%d)", len(status.Users))))
	b.WriteString("\n\n")

	if len(status.Users) == 0 {
		b.WriteString(valueStyle.Render("  Nothing saved yet"))
		b.WriteString("\n")
	} else {
		for _, user := range status.Users {
			state := "paused"
			if user.ShouldPlay {
				state = "playing"
			}
			kind := user.PlaybackType
			if kind == "" {
				kind = "none"
			}
			b.WriteString(fmt.Sprintf("  • %s", user.UserID))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" %s %s [%d/%d] @ %.1fs %s, from %s at %s",
				kind, user.MediaID, user.QueueIndex+1, user.QueueLen, user.PositionSec, state,
				user.Origin, user.UpdatedAt.Format("15:04:05"))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI(serverName string, port int) *ServerTUI {
	quitChan := make(chan struct{}, 1)
	m := tuiModel{
		status: ServerStatus{
			Name: serverName,
			Port: port,
		},
		startTime: time.Now(),
		quitChan:  quitChan,
	}

	return &ServerTUI{
		program:  tea.NewProgram(m, tea.WithAltScreen()),
		updates:  make(chan ServerStatus, 10),
		quitChan: quitChan,
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
