// Package store persists the lifecycle transitions of scheduler tasks so a
// run can be inspected afterwards or restored after a restart.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run has no recorded transitions.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store is closed")

// Transition records one status change of one task.
type Transition struct {
	// RunID groups the transitions of one scheduler.
	RunID string
	// TaskID is the id of the task that changed.
	TaskID string
	// Version is the task version the change belongs to.
	Version int
	// From and To are status names such as "waiting" or "success".
	From string
	To   string
	// Err is the failure message for transitions into "failed".
	Err string
	// At is when the scheduler observed the change.
	At time.Time
}

// Store is an append-only journal of transitions.
//
// Implementations must be safe for concurrent use; the scheduler appends from
// its worker goroutines.
type Store interface {
	// Append records t. Transitions of a run are returned in append order.
	Append(ctx context.Context, t Transition) error

	// History returns every transition of runID in append order, or an empty
	// slice if none exist.
	History(ctx context.Context, runID string) ([]Transition, error)

	// Latest returns the most recent transition of each task in runID, keyed
	// by task id. It returns ErrNotFound when the run has no transitions.
	Latest(ctx context.Context, runID string) (map[string]Transition, error)

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// latest folds an ordered history into the last transition per task.
func latest(history []Transition) map[string]Transition {
	out := make(map[string]Transition, len(history))
	for _, t := range history {
		out[t.TaskID] = t
	}
	return out
}
