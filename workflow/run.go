package workflow

import (
	"encoding/json"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
)

// Spec protocol versions. A run is stamped with the version it was created
// under and keeps it for life.
const (
	// SpecVersionCurrent is the event-sourcing protocol implemented by the
	// engine package. Runs created under an older version are handled by the
	// legacy compatibility path; runs created under a newer version are
	// rejected with CodeRunNotSupported.
	SpecVersionCurrent = 2

	// SpecVersionLegacy is the last pre-event-sourcing protocol version.
	SpecVersionLegacy = 1
)

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	// RunStatusPending means the run is created but not yet executing.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning means the run is currently executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusPaused means the run is suspended awaiting an external signal.
	RunStatusPaused RunStatus = "paused"
	// RunStatusCompleted means the run finished successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means the run failed terminally.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled means the run was cancelled.
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transitions are accepted
// from this status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run represents a single execution of a workflow. Runs are created by a
// run_created event, mutated only by subsequent events, and never deleted.
type Run struct {
	worlds.Entity

	ID               id.RunID        `json:"id"`
	WorkflowName     string          `json:"workflow_name"`
	DeploymentID     string          `json:"deployment_id,omitempty"`
	Status           RunStatus       `json:"status"`
	SpecVersion      int             `json:"spec_version"`
	Input            json.RawMessage `json:"input,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`
	Error            string          `json:"error,omitempty"`
	ExecutionContext json.RawMessage `json:"execution_context,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Legacy reports whether the run predates the event-sourcing protocol.
func (r *Run) Legacy() bool {
	return r.SpecVersion < SpecVersionCurrent
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state through a returned pointer.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Input = cloneRaw(r.Input)
	cp.Output = cloneRaw(r.Output)
	cp.ExecutionContext = cloneRaw(r.ExecutionContext)
	cp.StartedAt = cloneTime(r.StartedAt)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	return &cp
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
