// ABOUTME: Tests for the snapshot stores
// ABOUTME: Runs the same contract against the memory and SQLite implementations
package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
)

// fixedClock returns the same instant until moved
type fixedClock struct{ now int64 }

func (c *fixedClock) read() int64 { return c.now }

func newStores(t *testing.T, clock *fixedClock) map[string]Store {
	t.Helper()

	sqliteStore, err := Open(filepath.Join(t.TempDir(), "snapshots.db"), Options{Clock: clock.read})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = sqliteStore.Close()
	})

	return map[string]Store{
		"memory": NewMemoryStore(clock.read),
		"sqlite": sqliteStore,
	}
}

func TestLoadMissing(t *testing.T) {
	for name, s := range newStores(t, &fixedClock{now: 1000}) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nobody")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for name, s := range newStores(t, &fixedClock{now: 1000}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := Snapshot{
				UserID:         "alice",
				PlaybackType:   reconcile.PlaybackTrack,
				MediaID:        "2",
				Queue:          reconcile.Queue{{ID: "1", Title: "One"}, {ID: "2"}, {ID: "3"}},
				QueueIndex:     1,
				PositionSec:    42.5,
				ShouldPlay:     true,
				OriginClientID: "client-a",
			}

			saved, err := s.Save(ctx, in)
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if saved.UpdatedAtMs != 1000 {
				t.Errorf("expected stamp 1000, got %d", saved.UpdatedAtMs)
			}

			got, err := s.Load(ctx, "alice")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.MediaID != "2" || got.QueueIndex != 1 || got.PositionSec != 42.5 || !got.ShouldPlay {
				t.Errorf("unexpected snapshot %+v", got)
			}
			if got.PlaybackType != reconcile.PlaybackTrack || got.OriginClientID != "client-a" {
				t.Errorf("unexpected snapshot %+v", got)
			}
			if !reconcile.QueuesMatchByTrackID(got.Queue, in.Queue) {
				t.Errorf("queue mismatch: %+v", got.Queue)
			}
			if got.Queue[0].Title != "One" {
				t.Errorf("expected title to survive, got %q", got.Queue[0].Title)
			}
		})
	}
}

func TestStampsStrictlyIncrease(t *testing.T) {
	clock := &fixedClock{now: 5000}
	for name, s := range newStores(t, clock) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock.now = 5000

			first, err := s.Save(ctx, Snapshot{UserID: "bob", MediaID: "1"})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			second, err := s.Save(ctx, Snapshot{UserID: "bob", MediaID: "2"})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if second.UpdatedAtMs <= first.UpdatedAtMs {
				t.Errorf("expected increasing stamps, got %d then %d", first.UpdatedAtMs, second.UpdatedAtMs)
			}

			clock.now = 10
			third, err := s.Save(ctx, Snapshot{UserID: "bob", MediaID: "3"})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if third.UpdatedAtMs <= second.UpdatedAtMs {
				t.Errorf("expected stamp to survive clock step back, got %d after %d", third.UpdatedAtMs, second.UpdatedAtMs)
			}
		})
	}
}

func TestSaveRequiresUser(t *testing.T) {
	for name, s := range newStores(t, &fixedClock{now: 1}) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Save(context.Background(), Snapshot{MediaID: "1"}); err == nil {
				t.Error("expected error for missing user id")
			}
		})
	}
}

func TestUsers(t *testing.T) {
	for name, s := range newStores(t, &fixedClock{now: 1}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, user := range []string{"carol", "alice", "bob"} {
				if _, err := s.Save(ctx, Snapshot{UserID: user}); err != nil {
					t.Fatalf("save %s: %v", user, err)
				}
			}
			users, err := s.Users(ctx)
			if err != nil {
				t.Fatalf("users: %v", err)
			}
			want := []string{"alice", "bob", "carol"}
			if len(users) != len(want) {
				t.Fatalf("expected %v, got %v", want, users)
			}
			for i := range want {
				if users[i] != want[i] {
					t.Errorf("expected %v, got %v", want, users)
				}
			}
		})
	}
}

func TestNextStamp(t *testing.T) {
	if got := nextStamp(100, 50); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
	if got := nextStamp(50, 50); got != 51 {
		t.Errorf("expected 51, got %d", got)
	}
	if got := nextStamp(10, 50); got != 51 {
		t.Errorf("expected 51, got %d", got)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore(nil)
	s.Close()
	if _, err := s.Save(context.Background(), Snapshot{UserID: "a"}); err == nil {
		t.Error("expected save on closed store to fail")
	}
	if _, err := s.Load(context.Background(), "a"); err == nil {
		t.Error("expected load on closed store to fail")
	}
	if _, err := s.Users(context.Background()); err == nil {
		t.Error("expected users on closed store to fail")
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore(nil)
	if _, err := s.Save(context.Background(), Snapshot{UserID: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected load to report cancellation, got %v", err)
	}
	if _, err := s.Users(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected users to report cancellation, got %v", err)
	}
}
