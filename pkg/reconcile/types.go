// ABOUTME: Value types shared by the reconciliation and recovery decisions
// ABOUTME: Tracks, queues, local/server snapshots, reasons and decisions
package reconcile

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PlaybackType is the kind of media a player is on. The zero value means none.
type PlaybackType string

const (
	PlaybackNone      PlaybackType = ""
	PlaybackTrack     PlaybackType = "track"
	PlaybackPodcast   PlaybackType = "podcast"
	PlaybackAudiobook PlaybackType = "audiobook"
)

// TrackID identifies a track. It decodes from JSON strings, numbers and
// booleans; null and composite values decode to the empty id.
type TrackID string

// UnmarshalJSON coerces loosely typed ids into their string form
func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*id = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TrackID(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*id = TrackID(strconv.FormatBool(b))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*id = TrackID(canonicalNumber(n))
	default:
		// null, objects and arrays carry no usable id
		*id = ""
	}
	return nil
}

// canonicalNumber renders integral numbers without exponent or fraction so
// 3, 3.0 and 3e0 all become "3". Magnitudes of 1e21 and up, or below 1e-6,
// use the shortest exponent form ("1e+21", "1.5e-7"), which is how
// ECMAScript peers stringify the same ids.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if abs := math.Abs(f); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return exponentForm(f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// exponentForm formats f as mantissa, "e", sign and an unpadded exponent
func exponentForm(f float64) string {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// TrackRef is one queue entry. Only ID takes part in comparisons.
type TrackRef struct {
	ID     TrackID `json:"id"`
	Title  string  `json:"title,omitempty"`
	Artist string  `json:"artist,omitempty"`
	Album  string  `json:"album,omitempty"`
	Source string  `json:"source,omitempty"`
}

// Queue is an ordered list of tracks
type Queue []TrackRef

// LocalPlaybackState is what the live player holds right now
type LocalPlaybackState struct {
	PlaybackType PlaybackType
	MediaID      string // empty means no current media
	Queue        Queue
	LastSaveAtMs int64 // when this client last persisted its state
}

// ServerPlaybackSnapshot is the state the server last persisted
type ServerPlaybackSnapshot struct {
	PlaybackType PlaybackType
	MediaID      string
	Queue        Queue
	UpdatedAtMs  int64
}

// Reason explains a poll decision. Callers branch on these values.
type Reason string

const (
	ReasonServerOlderThanLocalSave     Reason = "server_older_than_local_save"
	ReasonServerMediaBehindLocalQueue  Reason = "server_media_behind_local_queue"
	ReasonLocalTrackQueueAuthoritative Reason = "local_track_queue_authoritative"
	ReasonServerQueueTruncatedPrefix   Reason = "server_queue_truncated_prefix"
	ReasonMediaUnchanged               Reason = "media_unchanged"
	ReasonAdoptServer                  Reason = "adopt_server"
)

// Decision is the outcome of one poll reconciliation
type Decision struct {
	ShouldApplyServerSnapshot bool
	Reason                    Reason
}

// PollInput pairs the two snapshots compared on every poll
type PollInput struct {
	Local  LocalPlaybackState
	Server ServerPlaybackSnapshot
}

// Authority names the side a recovery decision trusted
type Authority string

const (
	AuthorityLocal  Authority = "local"
	AuthorityServer Authority = "server"
)

// LocalResume is the position this client remembers
type LocalResume struct {
	PositionSec float64
	ShouldPlay  bool
}

// ResumeHint is the server's suggestion for where to resume.
// Implementations may compute their values lazily.
type ResumeHint interface {
	ResumeAtSec() float64
	ShouldPlay() bool
}

// ServerResume is a plain ResumeHint value
type ServerResume struct {
	AtSec float64
	Play  bool
}

func (s ServerResume) ResumeAtSec() float64 { return s.AtSec }
func (s ServerResume) ShouldPlay() bool     { return s.Play }

// RecoveryDecision says where playback resumes at session start
type RecoveryDecision struct {
	ResumeAtSec float64
	ShouldPlay  bool
	Authority   Authority
}
