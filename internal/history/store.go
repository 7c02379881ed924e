// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history keeps a SQLite log of finished recording sessions.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/canvasrec/internal/persistence/sqlite"
	"github.com/ManuGH/canvasrec/internal/recorder"
)

// ErrNotFound is returned by Get for an unknown session ID.
var ErrNotFound = errors.New("history: session not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Store persists recorder summaries.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Verify runs a quick integrity check.
func (s *Store) Verify(ctx context.Context) ([]string, error) {
	return sqlite.VerifyIntegrity(ctx, s.db, false)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		stopped_at TEXT NOT NULL,
		fps INTEGER NOT NULL,
		frames_captured INTEGER NOT NULL DEFAULT 0,
		frames_written INTEGER NOT NULL DEFAULT 0,
		active_ms INTEGER NOT NULL DEFAULT 0,
		paused_ms INTEGER NOT NULL DEFAULT 0,
		path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordSession stores sum. Recording the same ID twice overwrites it.
func (s *Store) RecordSession(ctx context.Context, sum recorder.Summary) error {
	query := `
	INSERT INTO sessions (id, started_at, stopped_at, fps, frames_captured, frames_written, active_ms, paused_ms, path, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		stopped_at = excluded.stopped_at,
		frames_captured = excluded.frames_captured,
		frames_written = excluded.frames_written,
		active_ms = excluded.active_ms,
		paused_ms = excluded.paused_ms,
		path = excluded.path,
		error = excluded.error
	`
	_, err := s.db.ExecContext(ctx, query,
		sum.ID,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.StoppedAt.UTC().Format(time.RFC3339Nano),
		sum.FPS,
		int64(sum.FramesCaptured), // #nosec G115 -- frame counts stay far below MaxInt64
		int64(sum.FramesWritten),  // #nosec G115
		sum.Active.Milliseconds(),
		sum.Paused.Milliseconds(),
		sum.Path,
		sum.Error,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sum.ID, err)
	}
	return nil
}

// List returns the most recent sessions first.
func (s *Store) List(ctx context.Context, limit int) ([]recorder.Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, started_at, stopped_at, fps, frames_captured, frames_written, active_ms, paused_ms, path, error
	FROM sessions
	ORDER BY started_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]recorder.Summary, 0)
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns one session by ID.
func (s *Store) Get(ctx context.Context, id string) (recorder.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, started_at, stopped_at, fps, frames_captured, frames_written, active_ms, paused_ms, path, error
	FROM sessions WHERE id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recorder.Summary{}, ErrNotFound
	}
	return sum, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (recorder.Summary, error) {
	var (
		sum                recorder.Summary
		started, stopped   string
		captured, written  int64
		activeMS, pausedMS int64
	)
	if err := sc.Scan(&sum.ID, &started, &stopped, &sum.FPS, &captured, &written, &activeMS, &pausedMS, &sum.Path, &sum.Error); err != nil {
		return recorder.Summary{}, err
	}
	var err error
	if sum.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return recorder.Summary{}, fmt.Errorf("parse started_at: %w", err)
	}
	if sum.StoppedAt, err = time.Parse(time.RFC3339Nano, stopped); err != nil {
		return recorder.Summary{}, fmt.Errorf("parse stopped_at: %w", err)
	}
	sum.FramesCaptured = uint64(captured) // #nosec G115 -- stored from uint64
	sum.FramesWritten = uint64(written)   // #nosec G115
	sum.Active = time.Duration(activeMS) * time.Millisecond
	sum.Paused = time.Duration(pausedMS) * time.Millisecond
	return sum, nil
}
