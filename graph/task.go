package graph

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of a Task.
type Status int

const (
	// Waiting tasks have not run yet, or were reset by a restart.
	Waiting Status = iota
	// Running tasks are inside OnLoad.
	Running
	// Success tasks finished OnLoad without error.
	Success
	// Failed tasks returned an error, panicked or timed out.
	Failed
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle is implemented by the work a Task performs.
//
// OnLoad does the work and may block; it should return promptly once ctx is
// done. The remaining hooks observe the outcome: OnSuccess or OnFailed, then
// OnFinished. OnReset is called when a restart forces the task back to
// Waiting. Hooks run on scheduler goroutines without any scheduler lock held,
// so they may call back into the Scheduler.
//
// Embed Hooks to get no-op defaults for everything but OnLoad.
type Lifecycle interface {
	OnLoad(ctx context.Context) error
	OnSuccess()
	OnFailed(err error)
	OnFinished()
	OnReset()
}

// Hooks provides no-op implementations of the optional Lifecycle hooks.
type Hooks struct{}

func (Hooks) OnSuccess()     {}
func (Hooks) OnFailed(error) {}
func (Hooks) OnFinished()    {}
func (Hooks) OnReset()       {}

// LoadFunc adapts a plain function into a Lifecycle with no-op hooks.
//
//	task := graph.NewTask("fetch", graph.LoadFunc(func(ctx context.Context) error {
//	    return fetch(ctx)
//	}))
type LoadFunc func(ctx context.Context) error

func (f LoadFunc) OnLoad(ctx context.Context) error { return f(ctx) }
func (LoadFunc) OnSuccess()                         {}
func (LoadFunc) OnFailed(error)                     {}
func (LoadFunc) OnFinished()                        {}
func (LoadFunc) OnReset()                           {}

// Task is the unit of work held by a Scheduler.
//
// All accessors are safe for concurrent use. State is changed only by the
// Scheduler that owns the task.
type Task struct {
	id      string
	hooks   Lifecycle
	timeout time.Duration

	mu       sync.RWMutex
	priority float64
	status   Status
	version  int
	visible  bool
	rank     Rank
	err      error
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithPriority sets the base priority. Higher priorities raise the task's
// potential and so its place in the dispatch order.
func WithPriority(p float64) TaskOption {
	return func(t *Task) {
		t.priority = p
	}
}

// WithTimeout bounds each OnLoad call. It overrides the scheduler default.
func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) {
		t.timeout = d
	}
}

// WithVisible marks the task as visible from the start, which makes restarts
// boost its priority.
func WithVisible(visible bool) TaskOption {
	return func(t *Task) {
		t.visible = visible
	}
}

// NewTask creates a Waiting task. A nil hooks value makes a task that
// succeeds as soon as it is dispatched, which is useful for milestones.
func NewTask(id string, hooks Lifecycle, opts ...TaskOption) *Task {
	if hooks == nil {
		hooks = LoadFunc(func(context.Context) error { return nil })
	}
	t := &Task{id: id, hooks: hooks}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID implements Node.
func (t *Task) ID() string { return t.id }

// Timeout returns the per-task timeout, 0 when unset.
func (t *Task) Timeout() time.Duration { return t.timeout }

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Version is bumped every time the task is restarted.
func (t *Task) Version() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func (t *Task) Priority() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.priority
}

// Rank returns the rank from the latest ordering that included the task.
func (t *Task) Rank() Rank {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rank
}

func (t *Task) Visible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visible
}

// Err returns the error of the last failed execution, nil otherwise.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Task) setStatus(s Status, err error) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.status
	t.status = s
	t.err = err
	return prev
}

func (t *Task) setPriority(p float64) {
	t.mu.Lock()
	t.priority = p
	t.mu.Unlock()
}

func (t *Task) setVisible(v bool) {
	t.mu.Lock()
	t.visible = v
	t.mu.Unlock()
}

func (t *Task) setRank(r Rank) {
	t.mu.Lock()
	t.rank = r
	t.mu.Unlock()
}

// reset moves the task back to Waiting under a new version and returns the
// previous status and the new version.
func (t *Task) reset() (Status, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.status
	t.version++
	t.status = Waiting
	t.err = nil
	return prev, t.version
}
