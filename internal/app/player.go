// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates connection, recovery, polling reconciliation and UI
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/playsync/internal/discovery"
	"github.com/Resonate-Protocol/playsync/internal/sync"
	"github.com/Resonate-Protocol/playsync/internal/ui"
	"github.com/Resonate-Protocol/playsync/internal/version"
	"github.com/Resonate-Protocol/playsync/pkg/protocol"
	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultRecoveryTimeout = 3 * time.Second
	advanceInterval        = 250 * time.Millisecond
	stateSaveInterval      = 10 * time.Second
)

// Config holds player configuration
type Config struct {
	ServerAddr      string
	Port            int
	Name            string
	UserID          string
	ClientID        string
	PollInterval    time.Duration
	RecoveryTimeout time.Duration
	StateFile       string
	UseTUI          bool
}

// Player represents the main player application
type Player struct {
	config    Config
	client    *protocol.Client
	clockSync *sync.ClockSync
	local     *LocalPlayer
	discovery *discovery.Manager
	controls  *ui.Controls
	tuiProg   *tea.Program
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new player
func New(config Config) *Player {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = defaultRecoveryTimeout
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.UserID == "" {
		config.UserID = config.Name
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config:    config,
		clockSync: sync.NewClockSync(),
		local:     NewLocalPlayer(),
		controls:  ui.NewControls(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Local exposes the live playback state
func (p *Player) Local() *LocalPlayer {
	return p.local
}

// Controls returns the action channel the player reacts to
func (p *Player) Controls() *ui.Controls {
	return p.controls
}

// Start runs the player until Stop or a quit action
func (p *Player) Start() error {
	if p.config.StateFile != "" {
		state, err := LoadState(p.config.StateFile)
		if err != nil {
			log.Printf("Ignoring state file: %v", err)
		} else {
			p.local.Restore(state)
			log.Printf("Restored local state: media=%s position=%.1fs", state.MediaID, state.PositionSec)
		}
	}

	if p.config.UseTUI {
		p.tuiProg = ui.Run(p.controls)
		go func() {
			if _, err := p.tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			p.cancel()
		}()
	}

	if p.config.ServerAddr == "" {
		p.discovery = discovery.NewManager(discovery.Config{
			ServiceName: p.config.Name,
			Port:        p.config.Port,
		})

		if err := p.discovery.Advertise(); err != nil {
			log.Printf("Failed to advertise player: %v", err)
		}
		if err := p.discovery.Browse(); err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}

		go p.handleDiscovery()
	} else {
		if err := p.connect(p.config.ServerAddr); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
	}

	<-p.ctx.Done()
	p.persistState()

	return nil
}

// handleDiscovery connects to the first reachable server
func (p *Player) handleDiscovery() {
	for {
		select {
		case server := <-p.discovery.Servers():
			addr := server.Addr()
			log.Printf("Attempting connection to %s", addr)

			if err := p.connect(addr); err != nil {
				log.Printf("Connection failed: %v", err)
				continue
			}
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// connect establishes the session and runs recovery before the loops start
func (p *Player) connect(serverAddr string) error {
	p.client = protocol.NewClient(protocol.Config{
		ServerAddr: serverAddr,
		ClientID:   p.config.ClientID,
		UserID:     p.config.UserID,
		Name:       p.config.Name,
		Version:    1,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	if err := p.client.Connect(); err != nil {
		return err
	}

	log.Printf("Connected to server: %s", serverAddr)
	connected := true
	p.sendStatus(ui.StatusMsg{Connected: &connected, ServerName: p.client.Server().Name})

	p.recoverSession()

	go p.clockSyncLoop()
	go p.run()

	return nil
}

// recoverSession polls once and decides where playback resumes
func (p *Player) recoverSession() {
	var hint reconcile.ResumeHint

	if err := p.client.Poll(); err != nil {
		log.Printf("Recovery poll failed: %v", err)
	} else {
		select {
		case snap := <-p.client.Snapshots:
			hint = snap.ResumeHint()
			// Capture the local resume before the snapshot can overwrite it
			local := p.local.Resume()
			localMedia := p.local.State().MediaID
			if p.handleSnapshot(snap).ShouldApplyServerSnapshot && p.local.State().MediaID != localMedia {
				// The remembered offset belongs to media that is no longer loaded
				local.PositionSec = 0
			}
			decision := reconcile.ResolveLocalAuthoritativeRecovery(local, hint)
			p.applyRecovery(decision)
			return
		case <-time.After(p.config.RecoveryTimeout):
			log.Printf("No snapshot within %v, recovering from local state", p.config.RecoveryTimeout)
		case <-p.ctx.Done():
			return
		}
	}

	p.applyRecovery(reconcile.ResolveLocalAuthoritativeRecovery(p.local.Resume(), hint))
}

func (p *Player) applyRecovery(decision reconcile.RecoveryDecision) {
	p.local.ApplyRecovery(decision)
	log.Printf("Recovery: resume at %.1fs play=%v (authority: %s)",
		decision.ResumeAtSec, decision.ShouldPlay, decision.Authority)
	p.sendStatus(ui.StatusMsg{Recovery: &decision, Playback: p.playbackStatus()})
}

// run is the session event loop. All reconciliation happens here.
func (p *Player) run() {
	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()
	advanceTicker := time.NewTicker(advanceInterval)
	defer advanceTicker.Stop()
	stateTicker := time.NewTicker(stateSaveInterval)
	defer stateTicker.Stop()

	lastAdvance := time.Now()

	for {
		select {
		case <-pollTicker.C:
			if err := p.client.Poll(); err != nil {
				log.Printf("Poll failed: %v", err)
			}

		case snap := <-p.client.Snapshots:
			p.handleSnapshot(snap)

		case ack := <-p.client.SaveAcks:
			p.local.MarkSaved(ack.UpdatedAt)

		case serverErr := <-p.client.Errors:
			p.sendStatus(ui.StatusMsg{Message: serverErr.Error()})

		case action := <-p.controls.Actions:
			p.handleAction(action)

		case now := <-advanceTicker.C:
			p.local.Advance(now.Sub(lastAdvance))
			lastAdvance = now
			p.sendStatus(ui.StatusMsg{Playback: p.playbackStatus()})

		case <-stateTicker.C:
			p.persistState()

		case <-p.client.Done():
			log.Printf("Disconnected from server")
			disconnected := false
			p.sendStatus(ui.StatusMsg{Connected: &disconnected})
			p.persistState()
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// handleSnapshot reconciles a server snapshot against the live state
func (p *Player) handleSnapshot(snap protocol.PlaybackSnapshot) reconcile.Decision {
	if !snap.Found {
		log.Printf("Server has no snapshot yet")
		return reconcile.Decision{}
	}

	decision := reconcile.ResolveServerPlaybackPollDecision(reconcile.PollInput{
		Local:  p.local.Snapshot(),
		Server: snap.ServerSnapshot(),
	})

	if decision.ShouldApplyServerSnapshot {
		p.local.ApplyServer(snap)
		log.Printf("Adopted server snapshot from %s: media=%s (%s)", snap.OriginClientID, snap.MediaID, decision.Reason)
	} else {
		log.Printf("Kept local state: %s", decision.Reason)
	}

	p.sendStatus(ui.StatusMsg{
		Decision: &ui.DecisionStatus{Decision: decision, At: time.Now()},
		Playback: p.playbackStatus(),
	})
	return decision
}

// handleAction applies a key action and saves the result
func (p *Player) handleAction(action ui.Action) {
	changed := false

	switch action {
	case ui.ActionNext:
		changed = p.local.Next()
	case ui.ActionPrevious:
		changed = p.local.Previous()
	case ui.ActionToggle:
		p.local.TogglePlay()
		changed = true
	case ui.ActionSave:
		changed = true
	case ui.ActionQuit:
		p.cancel()
		return
	}

	if changed {
		p.save()
	}
	p.sendStatus(ui.StatusMsg{Playback: p.playbackStatus()})
}

// save pushes local state. LastSaveAtMs is estimated in the server clock
// until the ack carries the stored timestamp.
func (p *Player) save() {
	msg := p.local.SaveMessage()
	if err := p.client.Save(msg); err != nil {
		log.Printf("Save failed: %v", err)
		return
	}
	p.local.MarkSaved(p.clockSync.ServerNowMillis())
}

// clockSyncLoop continuously syncs clock
func (p *Player) clockSyncLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t1 := p.clockSync.ClientMicros()
			if err := p.client.SendTimeSync(t1); err != nil {
				continue
			}

			select {
			case resp := <-p.client.TimeSyncResp:
				t4 := p.clockSync.ClientMicros()
				p.clockSync.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)

				offset, rtt, _ := p.clockSync.GetStats()
				quality := p.clockSync.CheckQuality()
				p.sendStatus(ui.StatusMsg{Sync: &ui.SyncStatus{Offset: offset, RTT: rtt, Quality: quality}})

			case <-time.After(2 * time.Second):
				log.Printf("Time sync timeout")
			case <-p.client.Done():
				return
			}

		case <-p.client.Done():
			return
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) playbackStatus() *ui.Playback {
	state := p.local.State()
	status := &ui.Playback{
		Type:        state.PlaybackType,
		MediaID:     state.MediaID,
		QueueIndex:  state.QueueIndex,
		QueueLen:    len(state.Queue),
		PositionSec: state.PositionSec,
		Playing:     state.ShouldPlay,
		LastSaveAt:  state.LastSaveAtMs,
	}
	if track, ok := state.Current(); ok {
		status.Title = track.Title
		status.Artist = track.Artist
	}
	return status
}

func (p *Player) sendStatus(msg ui.StatusMsg) {
	if p.tuiProg != nil {
		p.tuiProg.Send(msg)
	}
}

func (p *Player) persistState() {
	if p.config.StateFile == "" {
		return
	}
	if err := SaveState(p.config.StateFile, p.local.State()); err != nil {
		log.Printf("Failed to write state file: %v", err)
	}
}

// Stop stops the player
func (p *Player) Stop() {
	p.cancel()

	if p.client != nil {
		p.client.Close()
	}

	if p.discovery != nil {
		p.discovery.Stop()
	}

	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
}
