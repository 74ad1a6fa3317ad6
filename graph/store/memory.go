package store

import (
	"context"
	"sync"
)

// MemStore keeps transitions in memory. It is the default journal for tests
// and for single-process runs that only need History.
type MemStore struct {
	mu     sync.RWMutex
	runs   map[string][]Transition
	closed bool
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		runs: make(map[string][]Transition),
	}
}

// Append implements Store.
func (m *MemStore) Append(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.runs[t.RunID] = append(m.runs[t.RunID], t)
	return nil
}

// History implements Store.
func (m *MemStore) History(_ context.Context, runID string) ([]Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Transition, len(m.runs[runID]))
	copy(out, m.runs[runID])
	return out, nil
}

// Latest implements Store.
func (m *MemStore) Latest(ctx context.Context, runID string) (map[string]Transition, error) {
	history, err := m.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	return latest(history), nil
}

// Close implements Store.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}
