package graph

import "sync"

// Priority boosts applied by Observer.Flush.
const (
	EnterViewBoost = 3.0
	LeaveViewBoost = 1.0
)

// Observer connects an external visibility source to a Scheduler. Handles are
// whatever the caller uses to identify watched elements; each handle owns one
// task.
//
// Signal only records a change. Flush applies every pending change with a
// single reorder, so a burst of signals costs one re-rank.
type Observer[H comparable] struct {
	s *Scheduler

	mu      sync.Mutex
	tasks   map[H]string
	seen    map[H]bool
	pending map[H]bool
}

// NewObserver creates an Observer that feeds s.
func NewObserver[H comparable](s *Scheduler) *Observer[H] {
	return &Observer[H]{
		s:       s,
		tasks:   make(map[H]string),
		seen:    make(map[H]bool),
		pending: make(map[H]bool),
	}
}

// Observe adds task to the scheduler and binds it to h. It reports false when
// h is already bound or the task id is taken.
func (o *Observer[H]) Observe(h H, task *Task) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.tasks[h]; ok {
		return false
	}
	if !o.s.Add(task) {
		return false
	}
	o.tasks[h] = task.ID()
	return true
}

// Bind attaches h to a task that is already registered with the scheduler.
func (o *Observer[H]) Bind(h H, id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.tasks[h]; ok {
		return false
	}
	if _, ok := o.s.Task(id); !ok {
		return false
	}
	o.tasks[h] = id
	return true
}

// Unobserve removes the task bound to h from the scheduler. Dependents lose
// the dependency.
func (o *Observer[H]) Unobserve(h H) error {
	o.mu.Lock()
	id, ok := o.tasks[h]
	delete(o.tasks, h)
	delete(o.seen, h)
	delete(o.pending, h)
	o.mu.Unlock()

	if !ok {
		return nil
	}
	return o.s.Remove(id, Orphan)
}

// Signal records that h entered or left view. The latest signal per handle
// wins until Flush.
func (o *Observer[H]) Signal(h H, visible bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.tasks[h]; ok {
		o.pending[h] = visible
	}
}

// Flush applies pending signals. A handle entering view boosts its task by
// EnterViewBoost; one leaving view after having been seen boosts it by
// LeaveViewBoost. It returns the number of tasks updated.
func (o *Observer[H]) Flush() int {
	o.mu.Lock()
	if len(o.pending) == 0 {
		o.mu.Unlock()
		return 0
	}
	changes := make(map[string]visibilityChange, len(o.pending))
	for h, visible := range o.pending {
		c := visibilityChange{visible: visible}
		switch {
		case visible:
			c.boost = EnterViewBoost
			o.seen[h] = true
		case o.seen[h]:
			c.boost = LeaveViewBoost
		}
		changes[o.tasks[h]] = c
	}
	clear(o.pending)
	o.mu.Unlock()

	o.s.applyVisibility(changes)
	return len(changes)
}
