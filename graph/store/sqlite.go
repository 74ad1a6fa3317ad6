package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore journals transitions in a single-file SQLite database.
//
// Use a file path for persistence across restarts, or ":memory:" for tests.
// The connection pool is pinned to one connection, which SQLite needs for a
// single writer and which keeps an in-memory database alive.
type SQLiteStore struct {
	sqlJournal
	path string
}

// NewSQLiteStore opens (or creates) the database at path, enables WAL mode
// and creates the task_transitions table if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &SQLiteStore{sqlJournal: sqlJournal{db: db}, path: path}
	err = s.migrate(ctx, []string{
		`CREATE TABLE IF NOT EXISTS task_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			at_unix_nano INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_transitions_run ON task_transitions(run_id, id)",
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database location the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}
