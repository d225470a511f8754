// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key actions, and rendering
package ui

import (
	"strings"
	"testing"

	"github.com/Resonate-Protocol/playsync/internal/sync"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.connected {
		t.Error("expected connected to be false initially")
	}

	if model.syncQuality != sync.QualityLost {
		t.Errorf("expected lost sync initially, got %v", model.syncQuality)
	}

	if model.decision != nil {
		t.Error("expected no decision initially")
	}

	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsgConnected(t *testing.T) {
	model := NewModel(nil)

	connected := true
	model.applyStatus(StatusMsg{
		Connected:  &connected,
		ServerName: "test-server",
	})

	if !model.connected {
		t.Error("expected connected to be true after status update")
	}

	if model.serverName != "test-server" {
		t.Errorf("expected serverName 'test-server', got '%s'", model.serverName)
	}

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})

	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
	if model.serverName != "test-server" {
		t.Error("expected serverName to survive a status without one")
	}
}

func TestStatusMsgSync(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Sync: &SyncStatus{Offset: -1500, RTT: 5000, Quality: sync.QualityGood}})

	if model.syncRTT != 5000 {
		t.Errorf("expected syncRTT 5000, got %d", model.syncRTT)
	}
	if model.syncOffset != -1500 {
		t.Errorf("expected syncOffset -1500, got %d", model.syncOffset)
	}
	if model.syncQuality != sync.QualityGood {
		t.Errorf("expected QualityGood, got %v", model.syncQuality)
	}

	// A status without sync leaves it alone
	model.applyStatus(StatusMsg{ServerName: "other"})
	if model.syncQuality != sync.QualityGood {
		t.Errorf("expected sync to be kept, got %v", model.syncQuality)
	}
}

func TestStatusMsgDecisionCounts(t *testing.T) {
	model := NewModel(nil)

	decisions := []reconcile.Decision{
		{ShouldApplyServerSnapshot: false, Reason: reconcile.ReasonMediaUnchanged},
		{ShouldApplyServerSnapshot: true, Reason: reconcile.ReasonAdoptServer},
		{ShouldApplyServerSnapshot: false, Reason: reconcile.ReasonServerOlderThanLocalSave},
	}
	for _, d := range decisions {
		model.applyStatus(StatusMsg{Decision: &DecisionStatus{Decision: d}})
	}

	if model.polls != 3 {
		t.Errorf("expected 3 polls, got %d", model.polls)
	}
	if model.adoptions != 1 {
		t.Errorf("expected 1 adoption, got %d", model.adoptions)
	}
	if model.decision.Decision.Reason != reconcile.ReasonServerOlderThanLocalSave {
		t.Errorf("expected last reason to be kept, got %s", model.decision.Decision.Reason)
	}
}

func TestKeyActions(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want Action
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}, ActionNext},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}, ActionPrevious},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, ActionToggle},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}, ActionSave},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}, ActionQuit},
	}

	for _, tt := range tests {
		controls := NewControls()
		model := NewModel(controls)

		model.Update(tt.key)

		select {
		case got := <-controls.Actions:
			if got != tt.want {
				t.Errorf("key %q: expected %s, got %s", tt.key.String(), tt.want, got)
			}
		default:
			t.Errorf("key %q: no action sent", tt.key.String())
		}
	}
}

func TestQuitKeyQuits(t *testing.T) {
	model := NewModel(nil)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if !updated.(Model).showDebug {
		t.Error("expected debug to be shown after 'd'")
	}

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if updated.(Model).showDebug {
		t.Error("expected debug to be hidden after second 'd'")
	}
}

func TestViewBeforeWindowSize(t *testing.T) {
	model := NewModel(nil)
	if model.View() != "Loading..." {
		t.Errorf("expected loading view, got %q", model.View())
	}
}

func TestViewShowsPlaybackAndDecision(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)

	connected := true
	model.applyStatus(StatusMsg{
		Connected:  &connected,
		ServerName: "Living Room",
		Playback: &Playback{
			Type:        reconcile.PlaybackTrack,
			MediaID:     "42",
			Title:       "So What",
			Artist:      "Miles Davis",
			QueueIndex:  1,
			QueueLen:    4,
			PositionSec: 83.2,
			Playing:     true,
		},
		Decision: &DecisionStatus{Decision: reconcile.Decision{Reason: reconcile.ReasonServerQueueTruncatedPrefix}},
		Recovery: &reconcile.RecoveryDecision{ResumeAtSec: 83.2, Authority: reconcile.AuthorityLocal},
	})

	view := model.View()
	for _, want := range []string{
		"Connected to Living Room",
		"So What",
		"Miles Davis",
		"2 of 4",
		"1:23",
		"Playing",
		"kept local (server_queue_truncated_prefix)",
		"local authority",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestViewNothingLoaded(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	view := updated.(Model).View()
	if !strings.Contains(view, "Nothing loaded") {
		t.Error("expected empty playback message")
	}
	if !strings.Contains(view, "Last poll: none yet") {
		t.Error("expected no poll message")
	}
}

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "0:00"},
		{59.4, "0:59"},
		{83.2, "1:23"},
		{3600, "60:00"},
	}
	for _, tt := range tests {
		if got := formatPosition(tt.sec); got != tt.want {
			t.Errorf("formatPosition(%v) = %s, want %s", tt.sec, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %s", got)
	}
	if got := truncate("a very long title indeed", 10); got != "a very ..." {
		t.Errorf("expected truncated string, got %s", got)
	}
}
