package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// sqlJournal is the database/sql core shared by SQLiteStore and MySQLStore.
// Both drivers accept ? placeholders, so only the schema differs.
type sqlJournal struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func (j *sqlJournal) migrate(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Append implements Store.
func (j *sqlJournal) Append(ctx context.Context, t Transition) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrClosed
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO task_transitions (run_id, task_id, version, from_status, to_status, error, at_unix_nano)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TaskID, t.Version, t.From, t.To, t.Err, t.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// History implements Store.
func (j *sqlJournal) History(ctx context.Context, runID string) ([]Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, task_id, version, from_status, to_status, error, at_unix_nano
		 FROM task_transitions WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	history := []Transition{}
	for rows.Next() {
		var (
			t  Transition
			at int64
		)
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Version, &t.From, &t.To, &t.Err, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = time.Unix(0, at)
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}
	return history, nil
}

// Latest implements Store.
func (j *sqlJournal) Latest(ctx context.Context, runID string) (map[string]Transition, error) {
	history, err := j.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	return latest(history), nil
}

// Close implements Store.
func (j *sqlJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
