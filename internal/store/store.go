// Package store handles SQLite persistence.
package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a box or card does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout sorts lexically in time order and is understood by SQLite date functions.
const timeLayout = "2006-01-02 15:04:05"

// Store wraps SQLite access for boxes, cards and answer history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Card updates from concurrent requests must not interleave inside SQLite.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boxes (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL UNIQUE,
			columns TEXT NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			modified TEXT NOT NULL,
			last_studied TEXT NOT NULL,
			time_studied_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			box_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			fields TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			in_study_set INTEGER NOT NULL DEFAULT 0,
			last_correct TEXT NOT NULL,
			last_studied TEXT NOT NULL,
			learned_until TEXT NOT NULL,
			interval INTEGER NOT NULL DEFAULT 1,
			n_correct INTEGER NOT NULL DEFAULT 0,
			n_wrong INTEGER NOT NULL DEFAULT 0,
			modified TEXT NOT NULL,
			PRIMARY KEY (box_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS card_history (
			id INTEGER PRIMARY KEY,
			box_id INTEGER NOT NULL,
			card_key TEXT NOT NULL,
			answered_at TEXT NOT NULL,
			correct INTEGER NOT NULL,
			line TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_learned_until ON cards(box_id, enabled, learned_until);`,
		`CREATE INDEX IF NOT EXISTS idx_card_history_card ON card_history(box_id, card_key);`,
		`CREATE INDEX IF NOT EXISTS idx_card_history_answered_at ON card_history(box_id, answered_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, value, time.UTC)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil {
		// Best-effort rollback.
		_ = rerr
	}
}
