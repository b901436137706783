// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

// Package store is the device-local progress journal: a small sqlite
// database that caches listening positions for instant resume and
// buffers progress reports the server could not be reached for. The
// session flushes the pending rows on the next successful save.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaProgress = `
CREATE TABLE IF NOT EXISTS progress (
	item_id TEXT NOT NULL PRIMARY KEY,
	kind TEXT NOT NULL,
	position_seconds REAL NOT NULL,
	duration_seconds REAL NOT NULL,
	finished INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0
);`

const schemaProgressIndexes = `
CREATE INDEX IF NOT EXISTS idx_progress_synced ON progress(synced, updated_at);
`

// Progress is one journal row.
type Progress struct {
	ItemID    string
	Kind      string
	Position  float64
	Duration  float64
	Finished  bool
	UpdatedAt time.Time
	Synced    bool
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrateSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrateSchema() error {
	for _, stmt := range []string{schemaProgress, schemaProgressIndexes} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema migration failed: %v", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertProgress records the latest position for an item. synced
// marks whether the same report already reached the server; unsynced
// rows are offered by PendingSync until MarkSynced.
func (s *Store) UpsertProgress(p Progress) error {
	synced := 0
	if p.Synced {
		synced = 1
	}
	finished := 0
	if p.Finished {
		finished = 1
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.Exec(`
INSERT INTO progress (item_id, kind, position_seconds, duration_seconds, finished, updated_at, synced)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(item_id) DO UPDATE SET
	kind = excluded.kind,
	position_seconds = excluded.position_seconds,
	duration_seconds = excluded.duration_seconds,
	finished = excluded.finished,
	updated_at = excluded.updated_at,
	synced = excluded.synced`,
		p.ItemID, p.Kind, p.Position, p.Duration, finished, updatedAt.Unix(), synced)
	return err
}

// Progress returns the journaled position for itemID; ok is false
// when none is recorded.
func (s *Store) Progress(itemID string) (Progress, bool, error) {
	row := s.db.QueryRow(`
SELECT item_id, kind, position_seconds, duration_seconds, finished, updated_at, synced
FROM progress WHERE item_id = ?`, itemID)
	p, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, err
	}
	return p, true, nil
}

// PendingSync lists rows the server has not confirmed, oldest first.
func (s *Store) PendingSync() ([]Progress, error) {
	rows, err := s.db.Query(`
SELECT item_id, kind, position_seconds, duration_seconds, finished, updated_at, synced
FROM progress WHERE synced = 0 ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced flags a row as delivered to the server.
func (s *Store) MarkSynced(itemID string) error {
	_, err := s.db.Exec(`UPDATE progress SET synced = 1 WHERE item_id = ?`, itemID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (Progress, error) {
	var p Progress
	var finished, synced int
	var updatedAt int64
	err := row.Scan(&p.ItemID, &p.Kind, &p.Position, &p.Duration, &finished, &updatedAt, &synced)
	if err != nil {
		return Progress{}, err
	}
	p.Finished = finished != 0
	p.Synced = synced != 0
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return p, nil
}
