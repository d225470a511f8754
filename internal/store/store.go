// ABOUTME: Server-side persistence of per-user playback snapshots
// ABOUTME: Defines the Snapshot record, the Store interface and timestamp stamping
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
)

// ErrNotFound is returned by Load when the user has no snapshot
var ErrNotFound = errors.New("store: snapshot not found")

// Snapshot is the persisted playback state of one user
type Snapshot struct {
	UserID         string
	PlaybackType   reconcile.PlaybackType
	MediaID        string
	Queue          reconcile.Queue
	QueueIndex     int
	PositionSec    float64
	ShouldPlay     bool
	UpdatedAtMs    int64
	OriginClientID string
}

// Store persists snapshots. Save assigns UpdatedAtMs and returns the stored record.
type Store interface {
	Load(ctx context.Context, userID string) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) (Snapshot, error)
	Users(ctx context.Context) ([]string, error)
	Close() error
}

// Clock returns the current time in Unix milliseconds
type Clock func() int64

// SystemClock reads the wall clock
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// nextStamp keeps a user's timestamps strictly increasing even when the
// wall clock stalls or steps backwards.
func nextStamp(now, previous int64) int64 {
	if now <= previous {
		return previous + 1
	}
	return now
}
