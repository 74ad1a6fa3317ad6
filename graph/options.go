package graph

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dshills/lazygraph-go/graph/emit"
	"github.com/dshills/lazygraph-go/graph/store"
)

// Options holds the tunable scheduler settings that can be expressed as plain
// values, for example when loaded from a plan file.
type Options struct {
	// MaxConcurrency bounds the number of executions in flight.
	// 0 means unbounded. Default: 3.
	MaxConcurrency int

	// DispatchInterval is the minimum spacing between dispatch rounds.
	// 0 dispatches as fast as work arrives. Default: 20ms.
	DispatchInterval time.Duration

	// CheckInterval is how often the loop polls for work it was not woken
	// for, such as a deferred launch. Must be positive. Default: 100ms.
	CheckInterval time.Duration

	// DefaultTaskTimeout bounds OnLoad for tasks without their own timeout.
	// 0 means no timeout. Default: 0.
	DefaultTaskTimeout time.Duration

	// VisibleBoost is the priority floor applied to visible tasks when they
	// are restarted. Default: 10.
	VisibleBoost float64

	// RunID labels events and journal entries. Default: "default".
	RunID string
}

// DefaultOptions returns the settings used when no option overrides them.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency:   3,
		DispatchInterval: 20 * time.Millisecond,
		CheckInterval:    100 * time.Millisecond,
		VisibleBoost:     10,
		RunID:            "default",
	}
}

// Option configures a Scheduler. Options are applied in order, so later
// options override earlier ones.
//
//	s, err := graph.NewScheduler(
//	    graph.WithMaxConcurrency(8),
//	    graph.WithDispatchInterval(0),
//	    graph.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
type Option func(*schedulerConfig) error

type schedulerConfig struct {
	opts    Options
	emitter emit.Emitter
	logger  *slog.Logger
	metrics *PrometheusMetrics
	journal store.Store
}

func invalidOption(format string, args ...any) error {
	return &SchedulerError{Message: fmt.Sprintf(format, args...), Code: CodeInvalidOption}
}

// WithOptions replaces every value setting at once.
func WithOptions(o Options) Option {
	return func(cfg *schedulerConfig) error {
		cfg.opts = o
		return nil
	}
}

// WithMaxConcurrency bounds the number of executions in flight. 0 removes the
// bound.
func WithMaxConcurrency(n int) Option {
	return func(cfg *schedulerConfig) error {
		if n < 0 {
			return invalidOption("max concurrency must be >= 0, got %d", n)
		}
		cfg.opts.MaxConcurrency = n
		return nil
	}
}

// WithDispatchInterval spaces dispatch rounds at least d apart.
func WithDispatchInterval(d time.Duration) Option {
	return func(cfg *schedulerConfig) error {
		if d < 0 {
			return invalidOption("dispatch interval must be >= 0, got %v", d)
		}
		cfg.opts.DispatchInterval = d
		return nil
	}
}

// WithCheckInterval sets the safety poll period of the dispatch loop.
func WithCheckInterval(d time.Duration) Option {
	return func(cfg *schedulerConfig) error {
		if d <= 0 {
			return invalidOption("check interval must be > 0, got %v", d)
		}
		cfg.opts.CheckInterval = d
		return nil
	}
}

// WithDefaultTaskTimeout bounds OnLoad for tasks without WithTimeout.
func WithDefaultTaskTimeout(d time.Duration) Option {
	return func(cfg *schedulerConfig) error {
		if d < 0 {
			return invalidOption("task timeout must be >= 0, got %v", d)
		}
		cfg.opts.DefaultTaskTimeout = d
		return nil
	}
}

// WithVisibleBoost sets the priority floor for restarted visible tasks.
func WithVisibleBoost(p float64) Option {
	return func(cfg *schedulerConfig) error {
		cfg.opts.VisibleBoost = p
		return nil
	}
}

// WithRunID labels events and journal entries.
func WithRunID(id string) Option {
	return func(cfg *schedulerConfig) error {
		if id == "" {
			return invalidOption("run id cannot be empty")
		}
		cfg.opts.RunID = id
		return nil
	}
}

// WithEmitter sends lifecycle events to e.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *schedulerConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithLogger sets the logger used for scheduler diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *schedulerConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithMetrics records scheduler metrics into m.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *schedulerConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithJournal appends every status transition to st under runID. An empty
// runID keeps the current one.
func WithJournal(st store.Store, runID string) Option {
	return func(cfg *schedulerConfig) error {
		if st == nil {
			return invalidOption("journal store cannot be nil")
		}
		cfg.journal = st
		if runID != "" {
			cfg.opts.RunID = runID
		}
		return nil
	}
}

func (cfg *schedulerConfig) validate() error {
	o := cfg.opts
	switch {
	case o.MaxConcurrency < 0:
		return invalidOption("max concurrency must be >= 0, got %d", o.MaxConcurrency)
	case o.DispatchInterval < 0:
		return invalidOption("dispatch interval must be >= 0, got %v", o.DispatchInterval)
	case o.CheckInterval <= 0:
		return invalidOption("check interval must be > 0, got %v", o.CheckInterval)
	case o.DefaultTaskTimeout < 0:
		return invalidOption("task timeout must be >= 0, got %v", o.DefaultTaskTimeout)
	case o.RunID == "":
		return invalidOption("run id cannot be empty")
	}
	return nil
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
