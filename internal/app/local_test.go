// ABOUTME: Tests for the live local playback state
// ABOUTME: Tests queue navigation, play intent and server/recovery application
package app

import (
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/playsync/pkg/protocol"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
)

func tracks(ids ...string) reconcile.Queue {
	q := make(reconcile.Queue, len(ids))
	for i, id := range ids {
		q[i] = reconcile.TrackRef{ID: reconcile.TrackID(id), Title: "Track " + id}
	}
	return q
}

func TestLoadClampsIndexAndSetsMedia(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, tracks("1", "2", "3"), 9)

	state := p.State()
	if state.QueueIndex != 2 {
		t.Errorf("expected index 2, got %d", state.QueueIndex)
	}
	if state.MediaID != "3" {
		t.Errorf("expected media 3, got %s", state.MediaID)
	}
	if state.PositionSec != 0 {
		t.Errorf("expected position 0, got %v", state.PositionSec)
	}
}

func TestLoadEmptyQueueHasNoMedia(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, nil, 0)

	if got := p.Snapshot().MediaID; got != "" {
		t.Errorf("expected no media, got %s", got)
	}
}

func TestNextStopsAtEnd(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, tracks("1", "2"), 0)

	if !p.Next() {
		t.Fatal("expected Next to move to the second entry")
	}
	if p.State().MediaID != "2" {
		t.Errorf("expected media 2, got %s", p.State().MediaID)
	}
	if p.Next() {
		t.Error("expected Next to fail at the end of the queue")
	}
}

func TestPreviousRestartsOrStepsBack(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, tracks("1", "2", "3"), 1)
	p.TogglePlay()
	p.Advance(10 * time.Second)

	if !p.Previous() {
		t.Fatal("expected Previous to restart the track")
	}
	state := p.State()
	if state.MediaID != "2" || state.PositionSec != 0 {
		t.Errorf("expected restart of media 2, got media %s at %v", state.MediaID, state.PositionSec)
	}

	if !p.Previous() {
		t.Fatal("expected Previous to step back")
	}
	if got := p.State().MediaID; got != "1" {
		t.Errorf("expected media 1, got %s", got)
	}

	if p.Previous() {
		t.Error("expected Previous at the start to change nothing")
	}
}

func TestAdvanceOnlyWhilePlaying(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, tracks("1"), 0)

	p.Advance(time.Second)
	if got := p.Resume().PositionSec; got != 0 {
		t.Errorf("expected paused player to stay at 0, got %v", got)
	}

	if !p.TogglePlay() {
		t.Fatal("expected TogglePlay to start playback")
	}
	p.Advance(1500 * time.Millisecond)

	resume := p.Resume()
	if resume.PositionSec != 1.5 || !resume.ShouldPlay {
		t.Errorf("expected playing at 1.5s, got %+v", resume)
	}
}

func TestSnapshotCarriesLastSave(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackTrack, tracks("1", "2"), 1)
	p.MarkSaved(1234)

	snap := p.Snapshot()
	if snap.PlaybackType != reconcile.PlaybackTrack || snap.MediaID != "2" || snap.LastSaveAtMs != 1234 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(snap.Queue) != 2 {
		t.Errorf("expected queue of 2, got %d", len(snap.Queue))
	}

	// The returned queue is a copy
	snap.Queue[0].ID = "changed"
	if p.State().Queue[0].ID != "1" {
		t.Error("snapshot queue aliases the live queue")
	}
}

func TestApplyServer(t *testing.T) {
	p := NewLocalPlayer()
	p.MarkSaved(100)

	p.ApplyServer(protocol.PlaybackSnapshot{
		Found:        true,
		PlaybackType: reconcile.PlaybackTrack,
		Queue:        tracks("a", "b", "c"),
		QueueIndex:   "1",
		PositionSec:  30,
		ShouldPlay:   true,
		UpdatedAt:    float64(500),
	})

	state := p.State()
	if state.QueueIndex != 1 {
		t.Errorf("expected index 1, got %d", state.QueueIndex)
	}
	if state.MediaID != "b" {
		t.Errorf("expected media derived from the index, got %s", state.MediaID)
	}
	if state.PositionSec != 30 || !state.ShouldPlay {
		t.Errorf("expected playing at 30s, got %+v", state)
	}
	if state.LastSaveAtMs != 500 {
		t.Errorf("expected last save 500, got %d", state.LastSaveAtMs)
	}
}

func TestApplyRecoverySanitizesPosition(t *testing.T) {
	p := NewLocalPlayer()
	p.ApplyRecovery(reconcile.RecoveryDecision{ResumeAtSec: math.NaN(), ShouldPlay: true})

	resume := p.Resume()
	if resume.PositionSec != 0 || !resume.ShouldPlay {
		t.Errorf("expected 0 with play, got %+v", resume)
	}
}

func TestSaveMessage(t *testing.T) {
	p := NewLocalPlayer()
	p.Load(reconcile.PlaybackPodcast, tracks("ep1", "ep2"), 1)
	p.TogglePlay()

	msg := p.SaveMessage()
	if msg.PlaybackType != reconcile.PlaybackPodcast || msg.MediaID != "ep2" || msg.QueueIndex != 1 || !msg.ShouldPlay {
		t.Errorf("unexpected save message %+v", msg)
	}
}

func TestRestoreClampsState(t *testing.T) {
	p := NewLocalPlayer()
	p.Restore(LocalState{
		PlaybackType: reconcile.PlaybackTrack,
		MediaID:      "2",
		Queue:        tracks("1", "2"),
		QueueIndex:   5,
		PositionSec:  -3,
	})

	state := p.State()
	if state.QueueIndex != 1 || state.PositionSec != 0 {
		t.Errorf("expected clamped state, got %+v", state)
	}
}
