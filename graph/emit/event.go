package emit

// Messages emitted by the scheduler.
const (
	MsgNodeQueued    = "node_queued"
	MsgNodeStart     = "node_start"
	MsgNodeSuccess   = "node_success"
	MsgNodeFailed    = "node_failed"
	MsgNodeFinished  = "node_finished"
	MsgNodeCancelled = "node_cancelled"
	MsgNodeReset     = "node_reset"
	MsgNodeDropped   = "node_dropped"
	MsgReorder       = "reorder"
	MsgPaused        = "paused"
	MsgResumed       = "resumed"
)

// Event is a single observation of scheduler activity.
type Event struct {
	// RunID identifies the scheduler run that emitted this event.
	RunID string

	// Step is the version of the task the event belongs to. A restarted task
	// emits with a higher step than its abandoned execution.
	// Zero for scheduler-level events (reorder, paused, resumed).
	Step int

	// NodeID identifies the task. Empty for scheduler-level events.
	NodeID string

	// Msg is one of the Msg* constants.
	Msg string

	// Meta carries event-specific data. Common keys:
	//   - "latency_ms": load duration in milliseconds
	//   - "error": failure message
	//   - "code": NodeError code
	//   - "reason": why a task was dropped
	//   - "potential", "level": rank at dispatch time
	Meta map[string]any
}
