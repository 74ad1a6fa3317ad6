// Package plan loads task graphs and scheduler settings from YAML.
//
// A plan file looks like:
//
//	scheduler:
//	  max_concurrency: 3
//	  dispatch_interval: 20ms
//	  task_timeout: 5s
//	tasks:
//	  - id: header
//	    priority: 5
//	    visible: true
//	  - id: chart
//	    timeout: 1s
//	edges:
//	  - source: header
//	    target: chart
//	    weight: 2
//
// The plan only describes the graph. What each task does comes from a Factory
// supplied to Build.
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v2"

	"github.com/dshills/lazygraph-go/graph"
)

// ErrInvalidPlan is wrapped by every validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is a parsed plan file.
type Plan struct {
	Scheduler SchedulerSpec `yaml:"scheduler"`
	Tasks     []TaskSpec    `yaml:"tasks"`
	Edges     []EdgeSpec    `yaml:"edges"`
}

// SchedulerSpec holds optional scheduler settings. Unset fields keep the
// scheduler defaults.
type SchedulerSpec struct {
	MaxConcurrency   *int           `yaml:"max_concurrency"`
	DispatchInterval *time.Duration `yaml:"dispatch_interval"`
	CheckInterval    *time.Duration `yaml:"check_interval"`
	TaskTimeout      *time.Duration `yaml:"task_timeout"`
	VisibleBoost     *float64       `yaml:"visible_boost"`
	RunID            string         `yaml:"run_id"`
}

// TaskSpec describes one task.
type TaskSpec struct {
	ID       string            `yaml:"id"`
	Priority float64           `yaml:"priority"`
	Timeout  time.Duration     `yaml:"timeout"`
	Visible  bool              `yaml:"visible"`
	Params   map[string]string `yaml:"params"`
}

// EdgeSpec makes Target depend on Source. Weight defaults to
// graph.DefaultWeight.
type EdgeSpec struct {
	Source string   `yaml:"source"`
	Target string   `yaml:"target"`
	Weight *float64 `yaml:"weight"`
}

// weight returns the edge weight with the default applied.
func (e EdgeSpec) weight() float64 {
	if e.Weight == nil {
		return graph.DefaultWeight
	}
	return *e.Weight
}

// Factory produces the work for a task.
type Factory func(spec TaskSpec) (graph.Lifecycle, error)

// Load parses and validates a plan. Unknown keys are rejected.
func Load(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var p Plan
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads a plan from path.
func LoadFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks task ids and edge endpoints. Cycles are detected by Build,
// when the edges are added to the scheduler.
func (p *Plan) Validate() error {
	ids := make(map[string]bool, len(p.Tasks))
	for i, t := range p.Tasks {
		switch {
		case t.ID == "":
			return fmt.Errorf("%w: task %d has no id", ErrInvalidPlan, i)
		case ids[t.ID]:
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidPlan, t.ID)
		case t.Timeout < 0:
			return fmt.Errorf("%w: task %q has a negative timeout", ErrInvalidPlan, t.ID)
		}
		ids[t.ID] = true
	}

	for _, e := range p.Edges {
		switch {
		case !ids[e.Source]:
			return fmt.Errorf("%w: edge source %q is not a task", ErrInvalidPlan, e.Source)
		case !ids[e.Target]:
			return fmt.Errorf("%w: edge target %q is not a task", ErrInvalidPlan, e.Target)
		case e.Source == e.Target:
			return fmt.Errorf("%w: task %q depends on itself", ErrInvalidPlan, e.Source)
		case e.weight() < 0:
			return fmt.Errorf("%w: edge %s -> %s has a negative weight", ErrInvalidPlan, e.Source, e.Target)
		}
	}
	return nil
}

// Options converts the scheduler section into scheduler options.
func (p *Plan) Options() []graph.Option {
	sc := p.Scheduler
	var opts []graph.Option
	if sc.MaxConcurrency != nil {
		opts = append(opts, graph.WithMaxConcurrency(*sc.MaxConcurrency))
	}
	if sc.DispatchInterval != nil {
		opts = append(opts, graph.WithDispatchInterval(*sc.DispatchInterval))
	}
	if sc.CheckInterval != nil {
		opts = append(opts, graph.WithCheckInterval(*sc.CheckInterval))
	}
	if sc.TaskTimeout != nil {
		opts = append(opts, graph.WithDefaultTaskTimeout(*sc.TaskTimeout))
	}
	if sc.VisibleBoost != nil {
		opts = append(opts, graph.WithVisibleBoost(*sc.VisibleBoost))
	}
	if sc.RunID != "" {
		opts = append(opts, graph.WithRunID(sc.RunID))
	}
	return opts
}

// Build registers every task and edge of the plan with s.
func (p *Plan) Build(s *graph.Scheduler, factory Factory) error {
	for _, spec := range p.Tasks {
		hooks, err := factory(spec)
		if err != nil {
			return fmt.Errorf("task %q: %w", spec.ID, err)
		}
		task := graph.NewTask(spec.ID, hooks,
			graph.WithPriority(spec.Priority),
			graph.WithTimeout(spec.Timeout),
			graph.WithVisible(spec.Visible),
		)
		if !s.Add(task) {
			return fmt.Errorf("%w: task %q already registered", ErrInvalidPlan, spec.ID)
		}
	}

	for _, e := range p.Edges {
		if err := s.Connect(e.Source, e.Target, e.weight()); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}
	return nil
}
