// Package store provides SQLite-backed append-only storage for events and
// alerts, with filtered retrieval and time-windowed aggregation.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MaxListLimit bounds any single list query.
const MaxListLimit = 200

// defaultListLimit applies when a caller passes no limit.
const defaultListLimit = 50

// rawSampleCap bounds RecentByCategory, which feeds the raw-sample views
// (/processes, /network) and may need more than one page of events.
const rawSampleCap = 1000

// StorageError marks a persistence-layer failure. It is fatal to the
// operation that triggered it; retries are the caller's decision.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// DB wraps an SQLite connection holding the events and alerts relations.
type DB struct {
	db *sql.DB
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, storageErr("creating db directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storageErr("opening database", err)
	}

	// Single writer connection to avoid SQLITE_BUSY. Concurrent writers
	// (scheduler tick + on-demand scan) serialize here, which keeps the
	// assigned ids strictly increasing.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, storageErr("migrating database", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Purge deletes events and alerts older than the given retention duration.
// Retention is a maintenance policy; with retention disabled both
// relations are strictly append-only.
func (d *DB) Purge(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)

	var total int64
	for _, table := range []string{"events", "alerts"} {
		res, err := d.db.Exec(`DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, storageErr("purging "+table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			data       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_created ON events(event_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT NOT NULL,
			severity     TEXT NOT NULL,
			details      TEXT NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_severity_created ON alerts(severity, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}

// clampLimit normalizes a requested limit into [1, MaxListLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
