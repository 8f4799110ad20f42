// Package journal keeps a SQLite history of processed turns.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"aeris/internal/session"
)

// Entry is one stored turn.
type Entry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Transcript string    `json:"transcript"`
	Command    string    `json:"command"`
	Reply      string    `json:"reply,omitempty"`
	Device     string    `json:"device"`
	Error      string    `json:"error,omitempty"`
}

// pruneEvery bounds how often Observe sweeps expired entries.
const pruneEvery = 24 * time.Hour

type Store struct {
	db            *sql.DB
	retentionDays int
	clock         func() time.Time
	lastPrune     time.Time
}

// Open creates the database if needed and prunes entries older than the
// retention window.
func Open(ctx context.Context, path string, retentionDays int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, retentionDays: retentionDays, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("Journal prune on start failed", "err", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    transcript TEXT NOT NULL,
    command TEXT NOT NULL,
    reply TEXT,
    device TEXT,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Observe stores t. It is registered as a session observer. Once a day it
// also prunes the journal so a long running daemon keeps its window.
func (s *Store) Observe(ctx context.Context, t session.Turn) error {
	at := t.At
	if at.IsZero() {
		at = s.clock()
	}
	var errText string
	if t.Err != nil {
		errText = t.Err.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(id, created_at, transcript, command, reply, device, error)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		t.ID, at.UTC(), t.Transcript, t.Command, t.Reply, t.Device, errText)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	if s.clock().Sub(s.lastPrune) >= pruneEvery {
		if err := s.Prune(ctx); err != nil {
			log.Warn("Journal prune failed", "err", err)
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, transcript, command, reply, device, error
		 FROM turns ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var reply, device, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.At, &e.Transcript, &e.Command, &reply, &device, &errText); err != nil {
			return nil, err
		}
		e.Reply, e.Device, e.Error = reply.String, device.String, errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune drops entries older than the retention window. Zero days keeps
// everything.
func (s *Store) Prune(ctx context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}
	now := s.clock()
	s.lastPrune = now
	cutoff := now.Add(-time.Duration(s.retentionDays) * 24 * time.Hour)
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug("Journal pruned", "rows", n)
	}
	return nil
}
