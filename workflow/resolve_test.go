package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
)

// Redaction must strip payload fields and nothing else.
func TestRedactedRun(t *testing.T) {
	t.Parallel()

	started := time.Now().UTC()
	run := &Run{
		Entity:           worlds.NewEntity(),
		ID:               id.NewRunID(),
		WorkflowName:     "billing",
		DeploymentID:     "dep-1",
		Status:           RunStatusRunning,
		SpecVersion:      SpecVersionCurrent,
		Input:            json.RawMessage(`{"x":1}`),
		Output:           json.RawMessage(`{"y":2}`),
		Error:            "boom",
		ExecutionContext: json.RawMessage(`{"env":"prod"}`),
		StartedAt:        &started,
	}

	got := run.Redacted()

	if got.Input != nil || got.Output != nil || got.Error != "" {
		t.Errorf("payload fields not stripped: %+v", got)
	}
	if string(got.ExecutionContext) != `{"env":"prod"}` {
		t.Errorf("execution context is structural and must survive redaction")
	}
	if got.ID != run.ID || got.WorkflowName != run.WorkflowName ||
		got.Status != run.Status || got.SpecVersion != run.SpecVersion ||
		!got.StartedAt.Equal(started) || !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("structural fields changed: %+v", got)
	}
	if string(run.Input) != `{"x":1}` {
		t.Error("redaction mutated the original")
	}
}

func TestRedactedStepEventHook(t *testing.T) {
	t.Parallel()

	step := &Step{
		RunID:  id.NewRunID(),
		ID:     "step-1",
		Status: StepStatusFailed,
		Input:  json.RawMessage(`1`),
		Output: json.RawMessage(`2`),
		Error:  "bad",
	}
	if got := step.Redacted(); got.Input != nil || got.Output != nil || got.Error != "" {
		t.Errorf("step payload not stripped: %+v", got)
	} else if got.Status != StepStatusFailed || got.ID != "step-1" {
		t.Errorf("step structural fields changed: %+v", got)
	}

	evt := &Event{
		ID:            id.NewEventID(),
		Type:          EventStepCompleted,
		CorrelationID: "step-1",
		Data:          json.RawMessage(`{"output":3}`),
	}
	if got := evt.Redacted(); got.Data != nil {
		t.Errorf("event data not stripped: %+v", got)
	} else if got.CorrelationID != "step-1" {
		t.Errorf("event structural fields changed: %+v", got)
	}

	hook := &Hook{
		ID:       id.NewHookID(),
		Token:    "tok",
		Metadata: json.RawMessage(`{"m":1}`),
	}
	if got := hook.Redacted(); got.Metadata != nil {
		t.Errorf("hook metadata not stripped: %+v", got)
	} else if got.Token != "tok" {
		t.Errorf("hook structural fields changed: %+v", got)
	}
}
