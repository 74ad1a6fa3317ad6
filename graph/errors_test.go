package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestTypedErrorHandling verifies that structured errors match their sentinels.
func TestTypedErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		shouldBe bool
	}{
		{"CycleError is ErrCycle", &CycleError{Source: "a", Target: "b"}, ErrCycle, true},
		{"NotFoundError is ErrNotFound", &NotFoundError{ID: "a"}, ErrNotFound, true},
		{"wrapped CycleError is ErrCycle", fmt.Errorf("edge: %w", &CycleError{Source: "a", Target: "a"}), ErrCycle, true},
		{"CycleError is not ErrNotFound", &CycleError{Source: "a", Target: "b"}, ErrNotFound, false},
		{"NodeError unwraps its cause", &NodeError{Message: "late", Code: CodeNodeTimeout, Cause: context.DeadlineExceeded}, context.DeadlineExceeded, true},
		{"NodeError without cause", &NodeError{Message: "panic", Code: CodeNodePanic}, ErrCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.shouldBe {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.shouldBe)
			}
		})
	}
}

// TestSchedulerErrorWrapping verifies that SchedulerError can be detected with errors.As.
func TestSchedulerErrorWrapping(t *testing.T) {
	t.Run("wrapped SchedulerError matches with errors.As", func(t *testing.T) {
		wrapped := errors.Join(&SchedulerError{Message: "inner", Code: CodeInvalidOption}, errors.New("outer"))

		var schedErr *SchedulerError
		if !errors.As(wrapped, &schedErr) {
			t.Fatal("errors.As failed to match wrapped SchedulerError")
		}
		if schedErr.Code != CodeInvalidOption {
			t.Errorf("Code = %s, want %s", schedErr.Code, CodeInvalidOption)
		}
	})

	t.Run("Error() includes code", func(t *testing.T) {
		err := &SchedulerError{Message: "something went wrong", Code: "ERR_CODE"}
		if want := "ERR_CODE: something went wrong"; err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("Error() without code", func(t *testing.T) {
		err := &SchedulerError{Message: "something went wrong"}
		if want := "something went wrong"; err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&CycleError{Source: "a", Target: "b"}, "adding edge a -> b would create a cycle"},
		{&NotFoundError{ID: "chart"}, "node not found: chart"},
		{&NodeError{Message: "boom", NodeID: "chart"}, "node chart: boom"},
		{&NodeError{Message: "boom"}, "boom"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
