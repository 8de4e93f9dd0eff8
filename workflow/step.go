package workflow

import (
	"encoding/json"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
)

// StepStatus represents the lifecycle state of a step within a run.
type StepStatus string

const (
	// StepStatusPending means the step is created or scheduled for retry.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning means an attempt is in flight.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted means the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed means the step failed terminally.
	StepStatusFailed StepStatus = "failed"
)

// Terminal reports whether the step accepts no further mutations.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// Step is one durable unit of work inside a run. The ID is supplied by the
// caller and unique within the run; the runtime mints sortable IDs so step
// listings paginate in creation order.
type Step struct {
	worlds.Entity

	RunID       id.RunID        `json:"run_id"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      StepStatus      `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	Attempt     int             `json:"attempt"`
	RetryAfter  *time.Time      `json:"retry_after,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy.
func (s *Step) Clone() *Step {
	cp := *s
	cp.Input = cloneRaw(s.Input)
	cp.Output = cloneRaw(s.Output)
	cp.RetryAfter = cloneTime(s.RetryAfter)
	cp.StartedAt = cloneTime(s.StartedAt)
	cp.CompletedAt = cloneTime(s.CompletedAt)
	return &cp
}
