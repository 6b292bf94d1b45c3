// Package store persists records and groups in SQLite. It stands in for the
// application's persistence layer: the layout pipeline only ever sees the
// plain records it returns.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS groups (
		id     TEXT PRIMARY KEY,
		name   TEXT NOT NULL DEFAULT '',
		color  TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		id          TEXT PRIMARY KEY,
		group_id    TEXT NOT NULL,
		kind        TEXT NOT NULL CHECK(kind IN ('DAY','TIMED','MULTI_DAY')),
		title       TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		ended_at    INTEGER NOT NULL,
		group_color TEXT NOT NULL DEFAULT '',
		updated_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_range ON records(started_at, ended_at)`,
	`CREATE INDEX IF NOT EXISTS idx_records_group ON records(group_id)`,
}

// Open opens a SQLite database at the given path.
// If path is ":memory:", uses an in-memory database.
// Sets WAL mode, enables foreign keys and runs migrations.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// Migrate runs all schema migrations. Statements are idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
