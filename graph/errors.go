// Package graph provides the dependency graph and the priority-aware scheduler
// that executes it.
package graph

import (
	"errors"
	"fmt"
)

// ErrCycle indicates that an edge would make a node reachable from itself.
// Structural operations return it wrapped in a *CycleError.
var ErrCycle = errors.New("edge would create a cycle")

// ErrNotFound indicates an operation on an id the graph does not know.
var ErrNotFound = errors.New("node not found")

// ErrCancelled marks an execution abandoned because its task was restarted
// or the scheduler was closed while it was in flight.
var ErrCancelled = errors.New("execution cancelled")

// ErrClosed is returned by scheduler operations after Close.
var ErrClosed = errors.New("scheduler closed")

// CycleError reports the edge that was rejected.
type CycleError struct {
	Source string
	Target string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("adding edge %s -> %s would create a cycle", e.Source, e.Target)
}

// Unwrap allows errors.Is(err, ErrCycle).
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// NotFoundError reports the id that could not be resolved.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "node not found: " + e.ID
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Error codes carried by NodeError.
const (
	CodeNodeFailed  = "NODE_FAILED"
	CodeNodePanic   = "NODE_PANIC"
	CodeNodeTimeout = "NODE_TIMEOUT"
)

// NodeError represents an error that occurred while a task was loading.
// It provides structured error information for observability and debugging.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which task produced this error.
	NodeID string

	// Cause is the underlying error returned by OnLoad, if any.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// SchedulerError codes.
const (
	CodeInvalidOption = "INVALID_OPTION"
	CodeNoJournal     = "NO_JOURNAL"
)

// SchedulerError reports a misconfiguration or misuse of the Scheduler.
type SchedulerError struct {
	Message string
	Code    string
}

func (e *SchedulerError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
