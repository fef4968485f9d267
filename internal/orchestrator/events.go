package orchestrator

import (
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventQueryQueued indicates a query is waiting for an in-flight slot.
	EventQueryQueued EventType = "query_queued"
	// EventQueryRejected indicates the queue was full.
	EventQueryRejected EventType = "query_rejected"
	// EventStateChanged indicates a query moved to a new pipeline state.
	EventStateChanged EventType = "state_changed"
	// EventWorkerFinished indicates a worker returned a result.
	EventWorkerFinished EventType = "worker_finished"
	// EventConflict indicates the resolver recorded a conflict.
	EventConflict EventType = "conflict"
	// EventQueryDone indicates a query reached a terminal state.
	EventQueryDone EventType = "query_done"
)

// Event represents an event emitted by the orchestrator.
// These events are used to update the TUI and trace queries.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// QueryID is the ID of the related query.
	QueryID string
	// State is the pipeline state after a state change.
	State State
	// Worker is the related worker, if applicable.
	Worker models.WorkerType
	// Status is the worker result status for worker events.
	Status models.ResultStatus
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time for worker and done events.
	Duration time.Duration
	// EstimatedWait is set on queued and rejected events.
	EstimatedWait time.Duration
}
