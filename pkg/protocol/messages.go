// ABOUTME: Playsync protocol message type definitions
// ABOUTME: Handshake, clock sync, snapshot save and poll payloads
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
)

// Message types
const (
	TypeClientHello    = "client/hello"
	TypeServerHello    = "server/hello"
	TypeClientTime     = "client/time"
	TypeServerTime     = "server/time"
	TypeClientSave     = "client/save"
	TypeServerSaved    = "server/saved"
	TypeClientPoll     = "client/poll"
	TypeServerSnapshot = "server/snapshot"
	TypeServerError    = "server/error"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is a received Message whose payload has not been decoded yet
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	UserID     string      `json:"user_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp (Unix µs)
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp (Unix µs)
}

// PlaybackSave asks the server to persist the client's current state
type PlaybackSave struct {
	PlaybackType reconcile.PlaybackType `json:"playback_type"`
	MediaID      string                 `json:"media_id,omitempty"`
	Queue        reconcile.Queue        `json:"queue"`
	QueueIndex   int                    `json:"queue_index"`
	PositionSec  float64                `json:"position_sec"`
	ShouldPlay   bool                   `json:"should_play"`
}

// SaveAck confirms a save with the server-assigned timestamp
type SaveAck struct {
	UpdatedAt int64 `json:"updated_at"` // Unix ms, server clock
}

// PollRequest asks for the current server snapshot
type PollRequest struct{}

// PlaybackSnapshot is the server's persisted state for the user.
// QueueIndex and UpdatedAt arrive as numbers or numeric strings.
type PlaybackSnapshot struct {
	Found          bool                   `json:"found"`
	PlaybackType   reconcile.PlaybackType `json:"playback_type,omitempty"`
	MediaID        string                 `json:"media_id,omitempty"`
	Queue          reconcile.Queue        `json:"queue,omitempty"`
	QueueIndex     interface{}            `json:"queue_index,omitempty"`
	PositionSec    float64                `json:"position_sec,omitempty"`
	ShouldPlay     bool                   `json:"should_play,omitempty"`
	UpdatedAt      interface{}            `json:"updated_at,omitempty"`
	OriginClientID string                 `json:"origin_client_id,omitempty"`
}

// UpdatedAtMs returns the snapshot timestamp, or 0 when it is missing or malformed
func (p PlaybackSnapshot) UpdatedAtMs() int64 {
	ms, ok := reconcile.ParseMillis(p.UpdatedAt)
	if !ok {
		return 0
	}
	return ms
}

// CurrentIndex returns QueueIndex normalized against the snapshot's queue
func (p PlaybackSnapshot) CurrentIndex() int {
	return reconcile.NormalizeQueueIndex(p.QueueIndex, len(p.Queue))
}

// ServerSnapshot converts the wire snapshot for the poll decision
func (p PlaybackSnapshot) ServerSnapshot() reconcile.ServerPlaybackSnapshot {
	return reconcile.ServerPlaybackSnapshot{
		PlaybackType: p.PlaybackType,
		MediaID:      p.MediaID,
		Queue:        p.Queue,
		UpdatedAtMs:  p.UpdatedAtMs(),
	}
}

// ResumeHint returns the snapshot's resume position, or nil when the server
// had nothing stored
func (p PlaybackSnapshot) ResumeHint() reconcile.ResumeHint {
	if !p.Found {
		return nil
	}
	return reconcile.ServerResume{AtSec: p.PositionSec, Play: p.ShouldPlay}
}

// ErrorMessage is sent as server/error
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorMessage) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}
