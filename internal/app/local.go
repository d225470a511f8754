// ABOUTME: Live local playback state owned by the player
// ABOUTME: Queue navigation, play intent and conversion to reconciliation inputs
package app

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/playsync/pkg/protocol"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
)

// restartThreshold is how far into a track Previous restarts it instead of stepping back
const restartThreshold = 3.0

// LocalState is a copy of the player's state, used for display and the state file
type LocalState struct {
	PlaybackType reconcile.PlaybackType `json:"playback_type"`
	MediaID      string                 `json:"media_id,omitempty"`
	Queue        reconcile.Queue        `json:"queue"`
	QueueIndex   int                    `json:"queue_index"`
	PositionSec  float64                `json:"position_sec"`
	ShouldPlay   bool                   `json:"should_play"`
	LastSaveAtMs int64                  `json:"last_save_at_ms"`
}

// Current returns the track at QueueIndex, if any
func (s LocalState) Current() (reconcile.TrackRef, bool) {
	if s.QueueIndex < 0 || s.QueueIndex >= len(s.Queue) {
		return reconcile.TrackRef{}, false
	}
	return s.Queue[s.QueueIndex], true
}

// LocalPlayer holds the live playback state. It is safe for concurrent use.
type LocalPlayer struct {
	mu    sync.Mutex
	state LocalState
}

// NewLocalPlayer creates an idle player
func NewLocalPlayer() *LocalPlayer {
	return &LocalPlayer{}
}

// Restore replaces the whole state, e.g. from the state file
func (p *LocalPlayer) Restore(state LocalState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state.QueueIndex = reconcile.ClampQueueIndex(state.QueueIndex, len(state.Queue))
	state.PositionSec = sanitizePosition(state.PositionSec)
	p.state = state
}

// Load starts a new queue at index, paused at the beginning
func (p *LocalPlayer) Load(kind reconcile.PlaybackType, queue reconcile.Queue, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.PlaybackType = kind
	p.state.Queue = append(reconcile.Queue(nil), queue...)
	p.state.QueueIndex = reconcile.ClampQueueIndex(index, len(queue))
	p.state.PositionSec = 0
	p.syncMediaID()
}

// Next moves to the following queue entry. It returns false at the end of the queue.
func (p *LocalPlayer) Next() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.QueueIndex+1 >= len(p.state.Queue) {
		return false
	}
	p.state.QueueIndex++
	p.state.PositionSec = 0
	p.syncMediaID()
	return true
}

// Previous restarts the current entry when it has been playing for a while,
// otherwise steps back one entry. It returns false when nothing changed.
func (p *LocalPlayer) Previous() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.state.Queue) == 0 {
		return false
	}
	if p.state.PositionSec > restartThreshold || p.state.QueueIndex == 0 {
		changed := p.state.PositionSec != 0
		p.state.PositionSec = 0
		return changed
	}
	p.state.QueueIndex--
	p.state.PositionSec = 0
	p.syncMediaID()
	return true
}

// TogglePlay flips the play intent and returns the new value
func (p *LocalPlayer) TogglePlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.ShouldPlay = !p.state.ShouldPlay
	return p.state.ShouldPlay
}

// Advance moves the position forward by dt while playing
func (p *LocalPlayer) Advance(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.ShouldPlay || p.state.MediaID == "" || dt <= 0 {
		return
	}
	p.state.PositionSec += dt.Seconds()
}

// State returns a copy of the current state
func (p *LocalPlayer) State() LocalState {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.state
	state.Queue = append(reconcile.Queue(nil), p.state.Queue...)
	return state
}

// Snapshot returns the state the poll decision compares against the server
func (p *LocalPlayer) Snapshot() reconcile.LocalPlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return reconcile.LocalPlaybackState{
		PlaybackType: p.state.PlaybackType,
		MediaID:      p.state.MediaID,
		Queue:        append(reconcile.Queue(nil), p.state.Queue...),
		LastSaveAtMs: p.state.LastSaveAtMs,
	}
}

// Resume returns the remembered position for session recovery
func (p *LocalPlayer) Resume() reconcile.LocalResume {
	p.mu.Lock()
	defer p.mu.Unlock()

	return reconcile.LocalResume{
		PositionSec: p.state.PositionSec,
		ShouldPlay:  p.state.ShouldPlay,
	}
}

// ApplyServer adopts a server snapshot wholesale
func (p *LocalPlayer) ApplyServer(snap protocol.PlaybackSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.PlaybackType = snap.PlaybackType
	p.state.Queue = append(reconcile.Queue(nil), snap.Queue...)
	p.state.QueueIndex = snap.CurrentIndex()
	p.state.MediaID = strings.TrimSpace(snap.MediaID)
	if p.state.MediaID == "" {
		p.syncMediaID()
	}
	p.state.PositionSec = sanitizePosition(snap.PositionSec)
	p.state.ShouldPlay = snap.ShouldPlay
	if updated := snap.UpdatedAtMs(); updated > p.state.LastSaveAtMs {
		p.state.LastSaveAtMs = updated
	}
}

// ApplyRecovery seeks to the recovered position and play intent
func (p *LocalPlayer) ApplyRecovery(decision reconcile.RecoveryDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.PositionSec = sanitizePosition(decision.ResumeAtSec)
	p.state.ShouldPlay = decision.ShouldPlay
}

// MarkSaved records when the state was last persisted, in the server's clock
func (p *LocalPlayer) MarkSaved(ms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.LastSaveAtMs = ms
}

// SaveMessage builds the client/save payload for the current state
func (p *LocalPlayer) SaveMessage() protocol.PlaybackSave {
	p.mu.Lock()
	defer p.mu.Unlock()

	return protocol.PlaybackSave{
		PlaybackType: p.state.PlaybackType,
		MediaID:      p.state.MediaID,
		Queue:        append(reconcile.Queue(nil), p.state.Queue...),
		QueueIndex:   p.state.QueueIndex,
		PositionSec:  p.state.PositionSec,
		ShouldPlay:   p.state.ShouldPlay,
	}
}

// syncMediaID points MediaID at the current queue entry. Caller holds mu.
func (p *LocalPlayer) syncMediaID() {
	if p.state.QueueIndex >= 0 && p.state.QueueIndex < len(p.state.Queue) {
		p.state.MediaID = strings.TrimSpace(string(p.state.Queue[p.state.QueueIndex].ID))
		return
	}
	p.state.MediaID = ""
}

func sanitizePosition(sec float64) float64 {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return 0
	}
	return sec
}
