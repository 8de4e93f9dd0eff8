package workflow

import (
	"encoding/json"
	"time"

	"github.com/mizzle-dev/worlds/id"
)

// EventType tags an event with the state transition it represents.
// The set is closed: the engine's dispatch switch rejects anything outside it.
type EventType string

const (
	EventRunCreated   EventType = "run_created"
	EventRunStarted   EventType = "run_started"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
	EventRunCancelled EventType = "run_cancelled"

	EventStepCreated   EventType = "step_created"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventStepRetrying  EventType = "step_retrying"

	EventHookCreated  EventType = "hook_created"
	EventHookReceived EventType = "hook_received"
	EventHookDisposed EventType = "hook_disposed"
	// EventHookConflict is engine-emitted when hook_created races over a
	// taken token. It is never accepted as an incoming request.
	EventHookConflict EventType = "hook_conflict"

	// EventWaitCompleted records a durable timer elapsing. It has no entity
	// side effect beyond the append.
	EventWaitCompleted EventType = "wait_completed"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventRunCreated, EventRunStarted, EventRunCompleted, EventRunFailed,
		EventRunCancelled, EventStepCreated, EventStepStarted,
		EventStepCompleted, EventStepFailed, EventStepRetrying,
		EventHookCreated, EventHookReceived, EventHookDisposed,
		EventHookConflict, EventWaitCompleted:
		return true
	}
	return false
}

// RunLifecycle reports whether t transitions the run's own status.
func (t EventType) RunLifecycle() bool {
	switch t {
	case EventRunStarted, EventRunCompleted, EventRunFailed, EventRunCancelled:
		return true
	}
	return false
}

// StepLifecycle reports whether t mutates an existing step.
func (t EventType) StepLifecycle() bool {
	switch t {
	case EventStepStarted, EventStepCompleted, EventStepFailed, EventStepRetrying:
		return true
	}
	return false
}

// Event is one immutable record in a run's append-only log. Events are never
// mutated or deleted; replaying them in ascending ID order reproduces the
// run's state.
type Event struct {
	ID            id.EventID      `json:"id"`
	RunID         id.RunID        `json:"run_id"`
	Type          EventType       `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	SpecVersion   int             `json:"spec_version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	cp := *e
	cp.Data = cloneRaw(e.Data)
	return &cp
}

// EventRequest is an incoming event submitted to the engine.
type EventRequest struct {
	// Type is the transition requested.
	Type EventType `json:"type"`

	// SpecVersion is the protocol version of the caller. Stamped on the
	// appended event; for run_created it also becomes the run's version.
	SpecVersion int `json:"spec_version"`

	// RunID optionally fixes the new run's ID on run_created, for externally
	// orchestrated scenarios. Ignored for every other type.
	RunID string `json:"run_id,omitempty"`

	// CorrelationID names the step or hook the event concerns. Required for
	// step events and for hook_received/hook_disposed.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Data is the type-specific payload (see payload.go).
	Data json.RawMessage `json:"data,omitempty"`
}
