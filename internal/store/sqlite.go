// ABOUTME: SQLite-backed snapshot store using the pure-Go modernc driver
// ABOUTME: Keeps one row per user with the queue stored as JSON text
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/playsync/pkg/reconcile"
	_ "modernc.org/sqlite"
)

const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS playback_snapshots (
	user_id TEXT NOT NULL PRIMARY KEY,
	playback_type TEXT NOT NULL DEFAULT '',
	media_id TEXT NOT NULL DEFAULT '',
	queue TEXT NOT NULL DEFAULT '[]',
	queue_index INTEGER NOT NULL DEFAULT 0,
	position_sec REAL NOT NULL DEFAULT 0,
	should_play INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	origin_client_id TEXT NOT NULL DEFAULT ''
);`

// Options tunes the SQLite connection
type Options struct {
	BusyTimeout time.Duration
	Clock       Clock
}

// SQLiteStore persists snapshots in a SQLite database file
type SQLiteStore struct {
	db    *sql.DB
	clock Clock
}

// Open opens (creating if needed) the database at path and migrates the schema
func Open(path string, options Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// one writer keeps read-modify-write stamping consistent
	db.SetMaxOpenConns(1)

	busyTimeout := options.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = 5 * time.Second
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", int(busyTimeout/time.Millisecond)),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSnapshots); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	clock := options.Clock
	if clock == nil {
		clock = SystemClock
	}

	return &SQLiteStore{db: db, clock: clock}, nil
}

// Load returns the user's snapshot, or ErrNotFound
func (s *SQLiteStore) Load(ctx context.Context, userID string) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, fmt.Errorf("store: missing database connection")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT playback_type, media_id, queue, queue_index, position_sec, should_play, updated_at, origin_client_id
		FROM playback_snapshots
		WHERE user_id = ?
	`, userID)

	snap := Snapshot{UserID: userID}
	var (
		playbackType string
		queueJSON    string
		shouldPlay   int
	)
	err := row.Scan(
		&playbackType,
		&snap.MediaID,
		&queueJSON,
		&snap.QueueIndex,
		&snap.PositionSec,
		&shouldPlay,
		&snap.UpdatedAtMs,
		&snap.OriginClientID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load %s: %w", userID, err)
	}

	snap.PlaybackType = reconcile.PlaybackType(playbackType)
	snap.ShouldPlay = shouldPlay != 0
	if err := json.Unmarshal([]byte(queueJSON), &snap.Queue); err != nil {
		return Snapshot{}, fmt.Errorf("store: decode queue for %s: %w", userID, err)
	}
	return snap, nil
}

// Save stamps and upserts the snapshot in one transaction and returns the stored record
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) (saved Snapshot, err error) {
	if s == nil || s.db == nil {
		return Snapshot{}, fmt.Errorf("store: missing database connection")
	}
	if snap.UserID == "" {
		return Snapshot{}, errMissingUser
	}

	queue := snap.Queue
	if queue == nil {
		queue = reconcile.Queue{}
	}
	queueJSON, err := json.Marshal(queue)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: encode queue: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var previous int64
	err = tx.QueryRowContext(ctx, `SELECT updated_at FROM playback_snapshots WHERE user_id = ?`, snap.UserID).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("store: read previous stamp: %w", err)
	}
	snap.UpdatedAtMs = nextStamp(s.clock(), previous)

	shouldPlay := 0
	if snap.ShouldPlay {
		shouldPlay = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playback_snapshots (user_id, playback_type, media_id, queue, queue_index, position_sec, should_play, updated_at, origin_client_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			playback_type=excluded.playback_type,
			media_id=excluded.media_id,
			queue=excluded.queue,
			queue_index=excluded.queue_index,
			position_sec=excluded.position_sec,
			should_play=excluded.should_play,
			updated_at=excluded.updated_at,
			origin_client_id=excluded.origin_client_id
	`,
		snap.UserID,
		string(snap.PlaybackType),
		snap.MediaID,
		string(queueJSON),
		snap.QueueIndex,
		snap.PositionSec,
		shouldPlay,
		snap.UpdatedAtMs,
		snap.OriginClientID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: save %s: %w", snap.UserID, err)
	}

	if err = tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Users lists every user with a stored snapshot, sorted
func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: missing database connection")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM playback_snapshots ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
