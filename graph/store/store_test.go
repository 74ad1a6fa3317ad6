package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testJournal runs the behaviour every Store implementation must share.
func testJournal(t *testing.T, s Store) {
	ctx := context.Background()
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())

	t.Run("unknown run", func(t *testing.T) {
		h, err := s.History(ctx, runID+"-missing")
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(h) != 0 {
			t.Errorf("expected empty history, got %d", len(h))
		}
		if _, err := s.Latest(ctx, runID+"-missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("append order and latest", func(t *testing.T) {
		at := time.Unix(1700000000, 42)
		transitions := []Transition{
			{RunID: runID, TaskID: "a", Version: 0, From: "waiting", To: "running", At: at},
			{RunID: runID, TaskID: "a", Version: 0, From: "running", To: "success", At: at},
			{RunID: runID, TaskID: "b", Version: 0, From: "waiting", To: "running", At: at},
			{RunID: runID, TaskID: "b", Version: 0, From: "running", To: "failed", Err: "boom", At: at},
			{RunID: runID, TaskID: "b", Version: 1, From: "failed", To: "waiting", At: at},
		}
		for _, tr := range transitions {
			if err := s.Append(ctx, tr); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		history, err := s.History(ctx, runID)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(history) != len(transitions) {
			t.Fatalf("expected %d transitions, got %d", len(transitions), len(history))
		}
		for i := range transitions {
			if history[i].TaskID != transitions[i].TaskID || history[i].To != transitions[i].To {
				t.Errorf("position %d: expected %s->%s, got %s->%s", i,
					transitions[i].TaskID, transitions[i].To, history[i].TaskID, history[i].To)
			}
		}
		if history[3].Err != "boom" {
			t.Errorf("expected error message kept, got %q", history[3].Err)
		}
		if !history[0].At.Equal(at) {
			t.Errorf("expected timestamp %v, got %v", at, history[0].At)
		}

		last, err := s.Latest(ctx, runID)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if last["a"].To != "success" {
			t.Errorf("expected a latest success, got %s", last["a"].To)
		}
		if last["b"].To != "waiting" || last["b"].Version != 1 {
			t.Errorf("expected b latest waiting@1, got %s@%d", last["b"].To, last["b"].Version)
		}
	})

	t.Run("concurrent appends", func(t *testing.T) {
		run := runID + "-concurrent"
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Append(ctx, Transition{RunID: run, TaskID: fmt.Sprintf("t%d", i), From: "waiting", To: "running"})
			}(i)
		}
		wg.Wait()
		h, err := s.History(ctx, run)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(h) != 10 {
			t.Errorf("expected 10 transitions, got %d", len(h))
		}
	})

	t.Run("closed", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := s.Append(ctx, Transition{RunID: runID}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed from Append, got %v", err)
		}
		if _, err := s.History(ctx, runID); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed from History, got %v", err)
		}
	})
}

func TestMemStore(t *testing.T) {
	testJournal(t, NewMemStore())
}

func TestSQLiteStore_Memory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	testJournal(t, s)
}

func TestSQLiteStore_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if s.Path() != path {
		t.Errorf("expected path %s, got %s", path, s.Path())
	}
	if err := s.Append(ctx, Transition{RunID: "r", TaskID: "a", From: "running", To: "success"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	last, err := reopened.Latest(ctx, "r")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if last["a"].To != "success" {
		t.Errorf("expected a success after reopen, got %+v", last["a"])
	}
}

func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test: set TEST_MYSQL_DSN to run")
	}
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	testJournal(t, s)
}
