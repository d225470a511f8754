// ABOUTME: In-memory snapshot store
// ABOUTME: Used when the server runs without a database file and in tests
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore keeps snapshots in a map
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	clock     Clock
	closed    bool
}

// NewMemoryStore creates an empty store. A nil clock uses SystemClock.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
		clock:     clock,
	}
}

// Load returns a copy of the user's snapshot, or ErrNotFound
func (m *MemoryStore) Load(ctx context.Context, userID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot{}, errClosed
	}
	snap, ok := m.snapshots[userID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	snap.Queue = append(snap.Queue[:0:0], snap.Queue...)
	return snap, nil
}

// Save stamps the snapshot and stores a copy
func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if snap.UserID == "" {
		return Snapshot{}, errMissingUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Snapshot{}, errClosed
	}

	previous := m.snapshots[snap.UserID].UpdatedAtMs
	snap.UpdatedAtMs = nextStamp(m.clock(), previous)
	snap.Queue = append(snap.Queue[:0:0], snap.Queue...)
	m.snapshots[snap.UserID] = snap
	return snap, nil
}

// Users lists every user with a stored snapshot, sorted
func (m *MemoryStore) Users(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed
	}

	users := make([]string, 0, len(m.snapshots))
	for user := range m.snapshots {
		users = append(users, user)
	}
	sort.Strings(users)
	return users, nil
}

// Close marks the store closed. Later calls fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	errClosed      = errors.New("store: closed")
	errMissingUser = errors.New("store: snapshot has no user id")
)
