package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// taskTimeout picks the OnLoad timeout for t: the task's own timeout, then
// the scheduler default, then none.
func taskTimeout(t *Task, defaultTimeout time.Duration) time.Duration {
	if t.timeout > 0 {
		return t.timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// load runs t's OnLoad with the timeout applied. Every failure comes back as
// a *NodeError: NODE_TIMEOUT when the deadline passed, NODE_PANIC when OnLoad
// panicked, NODE_FAILED otherwise.
func load(ctx context.Context, t *Task, defaultTimeout time.Duration) (err error) {
	timeout := taskTimeout(t, defaultTimeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &NodeError{
				Message: fmt.Sprintf("panic in OnLoad: %v", r),
				Code:    CodeNodePanic,
				NodeID:  t.id,
			}
		}
	}()

	loadErr := t.hooks.OnLoad(ctx)

	if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &NodeError{
			Message: fmt.Sprintf("exceeded timeout of %v", timeout),
			Code:    CodeNodeTimeout,
			NodeID:  t.id,
			Cause:   loadErr,
		}
	}
	if loadErr != nil {
		return &NodeError{
			Message: loadErr.Error(),
			Code:    CodeNodeFailed,
			NodeID:  t.id,
			Cause:   loadErr,
		}
	}
	return nil
}

// runHook calls a lifecycle hook of t and turns a panic into a NODE_PANIC
// *NodeError.
func runHook(t *Task, hook string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NodeError{
				Message: fmt.Sprintf("panic in %s: %v", hook, r),
				Code:    CodeNodePanic,
				NodeID:  t.id,
			}
		}
	}()
	fn()
	return nil
}
