package workflow

import (
	"encoding/json"
	"time"
)

// Typed event payloads. EventRequest.Data decodes into one of these
// depending on the event type; fields the payload omits are left at their
// zero values.

// RunCreatedData is the payload of run_created.
type RunCreatedData struct {
	WorkflowName     string          `json:"workflow_name"`
	DeploymentID     string          `json:"deployment_id,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	ExecutionContext json.RawMessage `json:"execution_context,omitempty"`
}

// RunCompletedData is the payload of run_completed.
type RunCompletedData struct {
	Output json.RawMessage `json:"output,omitempty"`
}

// RunFailedData is the payload of run_failed.
type RunFailedData struct {
	Error string `json:"error,omitempty"`
}

// StepCreatedData is the payload of step_created. The step's ID travels in
// the request's CorrelationID, not here.
type StepCreatedData struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// StepCompletedData is the payload of step_completed.
type StepCompletedData struct {
	Output json.RawMessage `json:"output,omitempty"`
}

// StepFailedData is the payload of step_failed.
type StepFailedData struct {
	Error string `json:"error,omitempty"`
}

// StepRetryingData is the payload of step_retrying.
type StepRetryingData struct {
	Error      string    `json:"error,omitempty"`
	RetryAfter time.Time `json:"retry_after"`
}

// HookCreatedData is the payload of hook_created. Owner, project, and
// environment default to the scope identity on the context when empty.
type HookCreatedData struct {
	Token       string          `json:"token"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	Environment string          `json:"environment,omitempty"`
}

// HookConflictData is the payload of the engine-emitted hook_conflict event.
type HookConflictData struct {
	Token string `json:"token"`
}
