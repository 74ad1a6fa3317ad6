package graph

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dshills/lazygraph-go/graph/emit"
	"github.com/dshills/lazygraph-go/graph/queue"
	"github.com/dshills/lazygraph-go/graph/store"
)

// Scheduler executes the tasks of a DAG in critical-path order with a bounded
// number of executions in flight.
//
// A task is dispatched only when every dependency has succeeded. Among ready
// tasks, the one with the highest potential goes first, then the shallower
// level, then the smaller id. A failed task is terminal: its dependents stay
// Waiting until Restart is called on it.
//
// All graph state is guarded by one mutex. Lifecycle hooks are always called
// without it held. Emitters may be called with it held and must not call back
// into the Scheduler.
type Scheduler struct {
	opts    Options
	emitter emit.Emitter
	logger  *slog.Logger
	metrics *PrometheusMetrics
	journal store.Store

	slots   *semaphore.Weighted
	limiter *rate.Limiter
	workers errgroup.Group
	wake    chan struct{}

	base       context.Context
	baseCancel context.CancelFunc

	mu            sync.Mutex
	dag           *DAG[*Task]
	queue         *queue.PriorityQueue[*Task]
	running       map[string]execution
	busy          int
	paused        bool
	gate          chan struct{}
	changed       chan struct{}
	launched      bool
	pendingLaunch bool
	expect        int
	loopCancel    context.CancelFunc
	loopDone      chan struct{}
	closed        bool
}

// execution is the cancel handle of the current OnLoad call of a task.
type execution struct {
	version int
	cancel  context.CancelFunc
}

// NewScheduler creates a Scheduler. The dispatch loop starts with the first
// Start, Launch, Run or Restart call.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg := &schedulerConfig{opts: DefaultOptions()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NewNullEmitter()
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}

	s := &Scheduler{
		opts:    cfg.opts,
		emitter: cfg.emitter,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		journal: cfg.journal,
		wake:    make(chan struct{}, 1),
		dag:     NewDAG[*Task](),
		queue:   queue.New(compareTasks, false),
		running: make(map[string]execution),
		changed: make(chan struct{}),
	}
	if n := cfg.opts.MaxConcurrency; n > 0 {
		s.slots = semaphore.NewWeighted(int64(n))
	}
	limit := rate.Inf
	if d := cfg.opts.DispatchInterval; d > 0 {
		limit = rate.Every(d)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	s.gate = make(chan struct{})
	close(s.gate)
	s.base, s.baseCancel = context.WithCancel(context.Background())
	return s, nil
}

// compareTasks orders the dispatch queue: higher potential first, then lower
// level, then id.
func compareTasks(a, b *Task) int {
	ra, rb := a.Rank(), b.Rank()
	if ra.Potential != rb.Potential {
		if ra.Potential > rb.Potential {
			return -1
		}
		return 1
	}
	if ra.Level != rb.Level {
		return ra.Level - rb.Level
	}
	return strings.Compare(a.id, b.id)
}

// RunID returns the label used for events and journal entries.
func (s *Scheduler) RunID() string {
	return s.opts.RunID
}

// Add registers task. It reports false when a task with the same id exists.
// After Launch, a ready task is queued right away.
func (s *Scheduler) Add(task *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dag.AddNode(task) {
		return false
	}
	_ = s.dag.SetPriority(task.id, task.Priority())

	switch {
	case s.pendingLaunch && s.dag.Len() >= s.expect:
		s.seedAllLocked()
	case s.launched:
		s.reorderLocked()
		s.enqueueLocked(task)
	}
	s.wakeUp()
	return true
}

// Connect makes target depend on source. See DAG.AddEdge.
func (s *Scheduler) Connect(source, target string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.dag.AddEdge(source, target, weight); err != nil {
		return err
	}
	if t, ok := s.dag.Node(target); ok && s.queue.Has(t) && !s.readyLocked(t) {
		s.queue.Remove(t)
	}
	return nil
}

// Disconnect removes the edge source -> target. A dependent that becomes
// ready is queued if the scheduler was launched.
func (s *Scheduler) Disconnect(source, target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dag.RemoveEdge(source, target) {
		return false
	}
	if t, ok := s.dag.Node(target); ok && s.launched {
		s.reorderLocked()
		s.enqueueLocked(t)
		s.wakeUp()
	}
	return true
}

// Remove deletes a task. An in-flight execution of it is cancelled and its
// outcome discarded.
func (s *Scheduler) Remove(id string, policy RemovePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.dag.Node(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	dependents := s.dag.Edges(id, Out)

	s.cancelLocked(id)
	s.queue.Remove(t)
	if err := s.dag.RemoveNode(id, policy); err != nil {
		return err
	}

	if s.launched {
		s.reorderLocked()
		for _, dep := range dependents {
			if dt, ok := s.dag.Node(dep); ok {
				s.enqueueLocked(dt)
			}
		}
		s.wakeUp()
	}
	s.notifyLocked()
	return nil
}

// Task returns the task registered under id.
func (s *Scheduler) Task(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dag.Node(id)
}

// Tasks returns every task sorted by id.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dag.Nodes()
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dag.Len()
}

// Order returns id and its transitive dependents in dispatch order.
func (s *Scheduler) Order(id string) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.dag.Order(id, Out)
	if err != nil {
		return nil, err
	}
	if err := s.rankScopeLocked(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Start runs the dispatch loop until ctx is done or Close is called. Calling
// Start while the loop runs is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.loopCancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done
	go s.loop(loopCtx, done)
}

// Expect defers Launch until n tasks are registered. The check ticker, or the
// Add that reaches n, performs the deferred launch.
func (s *Scheduler) Expect(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expect = n
	if s.pendingLaunch && s.dag.Len() >= n {
		s.seedAllLocked()
		s.wakeUp()
	}
}

// Launch queues every ready task of the whole graph and starts dispatching.
// Tasks added afterwards are queued as soon as they are ready.
func (s *Scheduler) Launch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.dag.Acyclic(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.launched = true
	if s.expect > 0 && s.dag.Len() < s.expect {
		s.pendingLaunch = true
		s.logger.Debug("launch deferred", "have", s.dag.Len(), "expect", s.expect)
	} else {
		s.seedAllLocked()
	}
	s.mu.Unlock()

	s.Start(context.WithoutCancel(ctx))
	s.wakeUp()
	return nil
}

// Run queues the ready tasks among rootID and its transitive dependents, then
// blocks until the scheduler is idle or ctx is done. Tasks in scope that
// depend on unfinished tasks outside it are not run.
func (s *Scheduler) Run(ctx context.Context, rootID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	order, err := s.dag.Order(rootID, Out)
	if err == nil {
		err = s.rankScopeLocked(order)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for _, t := range order {
		s.enqueueLocked(t)
	}
	s.mu.Unlock()

	s.Start(context.WithoutCancel(ctx))
	s.wakeUp()
	return s.Wait(ctx)
}

// Wait blocks until no task is queued or executing, or ctx is done. A paused
// scheduler with queued work is not idle.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 && s.busy == 0 && !s.pendingLaunch {
			s.mu.Unlock()
			return nil
		}
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pause stops dispatching. Executions in flight block at their next
// suspension point until Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	s.gate = make(chan struct{})
	s.emit(emit.MsgPaused, "", 0, nil)
}

// Resume releases every execution blocked by Pause and restarts dispatch.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	close(s.gate)
	s.emit(emit.MsgResumed, "", 0, nil)
	s.notifyLocked()
	s.wakeUp()
}

// Paused reports whether Pause is in effect.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

type resetTask struct {
	task    *Task
	prev    Status
	version int
}

// Restart resets id and every transitive dependent to Waiting under a new
// version, cancels their executions in flight and runs them again. Visible
// tasks get their priority raised to at least the visible boost.
func (s *Scheduler) Restart(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.dag.Has(id) {
		s.mu.Unlock()
		return &NotFoundError{ID: id}
	}

	scope := []string{id}
	for dep := range s.dag.Reachs(id, Out) {
		scope = append(scope, dep)
	}
	slices.Sort(scope[1:])

	resets := make([]resetTask, 0, len(scope))
	for _, rid := range scope {
		t, _ := s.dag.Node(rid)
		s.cancelLocked(rid)
		s.queue.Remove(t)
		prev, version := t.reset()
		if t.Visible() {
			p := max(s.opts.VisibleBoost, t.Priority())
			t.setPriority(p)
			_ = s.dag.SetPriority(rid, p)
		}
		resets = append(resets, resetTask{task: t, prev: prev, version: version})
	}
	s.metrics.AddRestarts(len(resets))
	s.reorderLocked()
	s.metrics.SetQueueDepth(s.queue.Len())
	s.mu.Unlock()

	for _, r := range resets {
		s.record(ctx, r.task, r.version, r.prev, Waiting, nil)
		s.emit(emit.MsgNodeReset, r.task.id, r.version, map[string]any{"from": r.prev.String()})
		s.hookFailed(r.task, runHook(r.task, "OnReset", r.task.hooks.OnReset))
	}

	s.mu.Lock()
	for _, r := range resets {
		if r.task.Version() == r.version {
			s.enqueueLocked(r.task)
		}
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.Start(context.WithoutCancel(ctx))
	s.wakeUp()
	return nil
}

// UpdateWeight changes the weight of source -> target and re-ranks the queue
// in place. The change is atomic with respect to dispatch.
func (s *Scheduler) UpdateWeight(source, target string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dag.SetWeight(source, target, weight); err != nil {
		return err
	}
	s.reorderLocked()
	s.wakeUp()
	return nil
}

// SetPriority changes the base priority of id and re-ranks the queue.
func (s *Scheduler) SetPriority(id string, p float64) error {
	return s.adjustPriority(id, func(float64) float64 { return p })
}

// Boost adds delta to the base priority of id and re-ranks the queue.
func (s *Scheduler) Boost(id string, delta float64) error {
	return s.adjustPriority(id, func(p float64) float64 { return p + delta })
}

func (s *Scheduler) adjustPriority(id string, fn func(float64) float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.dag.Node(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	p := fn(t.Priority())
	t.setPriority(p)
	_ = s.dag.SetPriority(id, p)
	s.reorderLocked()
	s.wakeUp()
	return nil
}

// visibilityChange is one pending update from an Observer.
type visibilityChange struct {
	visible bool
	boost   float64
}

// applyVisibility updates visibility flags and priority boosts of several
// tasks with a single re-rank.
func (s *Scheduler) applyVisibility(changes map[string]visibilityChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range changes {
		t, ok := s.dag.Node(id)
		if !ok {
			continue
		}
		t.setVisible(c.visible)
		if c.boost != 0 {
			p := t.Priority() + c.boost
			t.setPriority(p)
			_ = s.dag.SetPriority(id, p)
		}
	}
	s.reorderLocked()
	s.wakeUp()
}

// Restore marks every task whose latest journaled status is success as
// Success without running it, and returns how many were restored. A run with
// no journal entries restores nothing. On a launched scheduler the dependents
// of restored tasks are queued once they become ready. Restored transitions
// are not journaled again.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, &SchedulerError{Message: "no journal configured", Code: CodeNoJournal}
	}
	latest, err := s.journal.Latest(ctx, s.opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var restored []string
	for id, tr := range latest {
		t, ok := s.dag.Node(id)
		if !ok || tr.To != Success.String() || t.Status() != Waiting {
			continue
		}
		t.setStatus(Success, nil)
		s.queue.Remove(t)
		restored = append(restored, id)
	}
	if s.launched && len(restored) > 0 {
		for _, id := range restored {
			for _, dep := range s.dag.Edges(id, Out) {
				if t, ok := s.dag.Node(dep); ok {
					s.enqueueLocked(t)
				}
			}
		}
		s.metrics.SetQueueDepth(s.queue.Len())
		s.notifyLocked()
		s.wakeUp()
	}
	s.logger.Info("restored tasks from journal", "run_id", s.opts.RunID, "restored", len(restored))
	return len(restored), nil
}

// Close stops the dispatch loop, cancels every execution in flight and waits
// for their goroutines to return. OnLoad implementations that ignore their
// context delay Close until they return.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id := range s.running {
		s.cancelLocked(id)
	}
	s.baseCancel()
	if s.paused {
		s.paused = false
		close(s.gate)
	}
	s.queue.Clear()
	s.pendingLaunch = false
	s.notifyLocked()
	cancelLoop, done := s.loopCancel, s.loopDone
	s.mu.Unlock()

	if cancelLoop != nil {
		cancelLoop()
		<-done
	}
	return s.workers.Wait()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.loopDone == done {
			s.loopCancel = nil
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
			s.checkLaunch()
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.doWork()
	}
}

func (s *Scheduler) checkLaunch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingLaunch && s.dag.Len() >= s.expect {
		s.seedAllLocked()
	}
}

// doWork dispatches queued tasks while slots are free. A popped task that is
// not ready or no longer Waiting is dropped; it is queued again when its
// dependencies succeed.
func (s *Scheduler) doWork() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.reorderLocked()

	for !s.paused && s.queue.Len() > 0 {
		if s.slots != nil && !s.slots.TryAcquire(1) {
			break
		}
		t, _ := s.queue.Poll()

		reason := ""
		switch {
		case t.Status() != Waiting:
			reason = "not_waiting"
		case !s.readyLocked(t):
			reason = "not_ready"
		}
		if reason != "" {
			s.releaseSlot()
			s.metrics.IncDropped(reason)
			s.emit(emit.MsgNodeDropped, t.id, t.Version(), map[string]any{"reason": reason})
			continue
		}
		s.startLocked(t)
	}

	s.metrics.SetQueueDepth(s.queue.Len())
	s.notifyLocked()
}

func (s *Scheduler) startLocked(t *Task) {
	version := t.Version()
	t.setStatus(Running, nil)

	ctx, cancel := context.WithCancel(s.base)
	s.running[t.id] = execution{version: version, cancel: cancel}
	s.busy++
	s.metrics.SetInflight(s.busy)

	r := t.Rank()
	s.logger.Debug("dispatching task", "task_id", t.id, "version", version, "potential", r.Potential, "level", r.Level)
	s.emit(emit.MsgNodeStart, t.id, version, map[string]any{"potential": r.Potential, "level": r.Level})

	s.workers.Go(func() error {
		s.execute(ctx, cancel, t, version)
		return nil
	})
}

// execute runs one OnLoad call and its hooks. Every step after a suspension
// point checks that the task still has the captured version; a mismatch means
// the task was restarted or removed, and the rest is skipped.
func (s *Scheduler) execute(ctx context.Context, cancel context.CancelFunc, t *Task, version int) {
	defer cancel()
	succeeded := false
	defer func() { s.finish(t, version, succeeded) }()
	s.record(context.Background(), t, version, Waiting, Running, nil)

	if err := s.waitResume(ctx); err != nil {
		s.abandon(t, version)
		return
	}

	start := time.Now()
	loadErr := load(ctx, t, s.opts.DefaultTaskTimeout)
	elapsed := time.Since(start)
	_ = s.waitResume(ctx)

	status := Success
	if loadErr != nil {
		status = Failed
	}
	if !s.complete(t, version, status, loadErr, elapsed) {
		s.abandon(t, version)
		return
	}

	if status == Success && t.Version() == version {
		if err := runHook(t, "OnSuccess", t.hooks.OnSuccess); err != nil {
			if s.demote(t, version, err) {
				status, loadErr = Failed, err
			}
		}
	}
	if status == Failed && t.Version() == version {
		s.hookFailed(t, runHook(t, "OnFailed", func() { t.hooks.OnFailed(loadErr) }))
	}
	if t.Version() == version {
		s.hookFailed(t, runHook(t, "OnFinished", t.hooks.OnFinished))
		s.emit(emit.MsgNodeFinished, t.id, version, nil)
	}
	succeeded = status == Success
}

// complete records the outcome of a current execution. It reports false for a
// stale one.
func (s *Scheduler) complete(t *Task, version int, status Status, err error, elapsed time.Duration) bool {
	s.mu.Lock()
	if !s.currentLocked(t, version) {
		s.mu.Unlock()
		return false
	}
	t.setStatus(status, err)
	delete(s.running, t.id)
	s.metrics.ObserveTask(t.id, status, elapsed)

	meta := map[string]any{"latency_ms": elapsed.Milliseconds()}
	msg := emit.MsgNodeSuccess
	if err != nil {
		msg = emit.MsgNodeFailed
		meta["error"] = err.Error()
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) {
			meta["code"] = nodeErr.Code
		}
		s.logger.Warn("task failed", "task_id", t.id, "version", version, "error", err)
	}
	s.emit(msg, t.id, version, meta)
	s.mu.Unlock()

	s.record(context.Background(), t, version, Running, status, err)
	return true
}

func (s *Scheduler) abandon(t *Task, version int) {
	s.logger.Debug("execution abandoned", "task_id", t.id, "version", version, "error", ErrCancelled)
	s.emit(emit.MsgNodeCancelled, t.id, version, map[string]any{"reason": ErrCancelled.Error()})
}

// demote turns a current Success into Failed after OnSuccess panicked. It
// reports false for a stale execution.
func (s *Scheduler) demote(t *Task, version int, err error) bool {
	s.mu.Lock()
	if !s.currentLocked(t, version) || t.Status() != Success {
		s.mu.Unlock()
		return false
	}
	t.setStatus(Failed, err)
	s.logger.Warn("task failed", "task_id", t.id, "version", version, "error", err)
	s.emit(emit.MsgNodeFailed, t.id, version, map[string]any{"error": err.Error(), "code": CodeNodePanic})
	s.mu.Unlock()

	s.record(context.Background(), t, version, Success, Failed, err)
	return true
}

// hookFailed logs a panic recovered from a hook whose outcome does not change
// the task status.
func (s *Scheduler) hookFailed(t *Task, err error) {
	if err != nil {
		s.logger.Warn("hook panicked", "task_id", t.id, "error", err)
	}
}

// finish returns the worker slot and, after a success, queues the dependents
// that became ready.
func (s *Scheduler) finish(t *Task, version int, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy--
	s.releaseSlot()
	s.metrics.SetInflight(s.busy)

	if succeeded && s.currentLocked(t, version) {
		for _, id := range s.dag.Edges(t.id, Out) {
			if dep, ok := s.dag.Node(id); ok {
				s.enqueueLocked(dep)
			}
		}
	}
	s.notifyLocked()
	s.wakeUp()
}

func (s *Scheduler) currentLocked(t *Task, version int) bool {
	if s.closed || t.Version() != version {
		return false
	}
	cur, ok := s.dag.Node(t.id)
	return ok && cur == t
}

func (s *Scheduler) waitResume(ctx context.Context) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readyLocked reports whether every dependency of t has succeeded.
func (s *Scheduler) readyLocked(t *Task) bool {
	for dep := range s.dag.in[t.id] {
		if d, ok := s.dag.Node(dep); !ok || d.Status() != Success {
			return false
		}
	}
	return true
}

// enqueueLocked queues t if it is Waiting, ready and not queued yet.
func (s *Scheduler) enqueueLocked(t *Task) {
	if t.Status() != Waiting || s.queue.Has(t) || !s.readyLocked(t) {
		return
	}
	s.queue.Push(t)
	s.metrics.SetQueueDepth(s.queue.Len())
	s.emit(emit.MsgNodeQueued, t.id, t.Version(), nil)
}

func (s *Scheduler) seedAllLocked() {
	s.pendingLaunch = false
	s.reorderLocked()
	for _, t := range s.dag.Nodes() {
		s.enqueueLocked(t)
	}
	s.notifyLocked()
}

// reorderLocked recomputes ranks after priorities, weights or topology
// changed, and re-heapifies the queue.
func (s *Scheduler) reorderLocked() {
	if !s.dag.IsDirty(DirtyTopo) {
		return
	}
	order, err := s.dag.OrderAll()
	if err != nil {
		s.logger.Error("reorder failed", "error", err)
		return
	}
	s.syncRanksLocked(order)
	s.metrics.IncReorders()
	s.emit(emit.MsgReorder, "", 0, map[string]any{"size": len(order), "queued": s.queue.Len()})
}

// rankScopeLocked gives the tasks of a scoped order their whole-graph ranks.
// Scoped levels count from the scope root and must not reach the shared queue.
func (s *Scheduler) rankScopeLocked(scope []*Task) error {
	s.reorderLocked()
	if _, err := s.dag.OrderAll(); err != nil {
		return err
	}
	s.syncRanksLocked(scope)
	return nil
}

func (s *Scheduler) syncRanksLocked(tasks []*Task) {
	for _, t := range tasks {
		if r, ok := s.dag.Rank(t.id); ok {
			t.setRank(r)
		}
	}
	s.queue.Rebuild()
}

func (s *Scheduler) cancelLocked(id string) {
	if e, ok := s.running[id]; ok {
		e.cancel()
		delete(s.running, id)
		s.metrics.IncCancellations()
	}
}

func (s *Scheduler) releaseSlot() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

// notifyLocked wakes every Wait call so it re-checks for idleness.
func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Scheduler) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) emit(msg, taskID string, version int, meta map[string]any) {
	s.emitter.Emit(emit.Event{
		RunID:  s.opts.RunID,
		Step:   version,
		NodeID: taskID,
		Msg:    msg,
		Meta:   meta,
	})
}

func (s *Scheduler) record(ctx context.Context, t *Task, version int, from, to Status, err error) {
	if s.journal == nil {
		return
	}
	tr := store.Transition{
		RunID:   s.opts.RunID,
		TaskID:  t.id,
		Version: version,
		From:    from.String(),
		To:      to.String(),
		At:      time.Now(),
	}
	if err != nil {
		tr.Err = err.Error()
	}
	if appendErr := s.journal.Append(ctx, tr); appendErr != nil {
		s.logger.Warn("journal append failed", "task_id", t.id, "error", appendErr)
	}
}
