package workflow

import (
	"encoding/json"
	"testing"
)

func TestEventTypeValid(t *testing.T) {
	t.Parallel()

	known := []EventType{
		EventRunCreated, EventRunStarted, EventRunCompleted, EventRunFailed,
		EventRunCancelled, EventStepCreated, EventStepStarted,
		EventStepCompleted, EventStepFailed, EventStepRetrying,
		EventHookCreated, EventHookReceived, EventHookDisposed,
		EventHookConflict, EventWaitCompleted,
	}
	for _, et := range known {
		if !et.Valid() {
			t.Errorf("%s should be valid", et)
		}
	}

	for _, et := range []EventType{"", "run_exploded", "step_paused"} {
		if et.Valid() {
			t.Errorf("%q should be invalid", et)
		}
	}
}

func TestEventTypeClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		et       EventType
		run      bool
		step     bool
	}{
		{EventRunCreated, false, false},
		{EventRunStarted, true, false},
		{EventRunCompleted, true, false},
		{EventRunFailed, true, false},
		{EventRunCancelled, true, false},
		{EventStepCreated, false, false},
		{EventStepStarted, false, true},
		{EventStepCompleted, false, true},
		{EventStepFailed, false, true},
		{EventStepRetrying, false, true},
		{EventHookCreated, false, false},
		{EventWaitCompleted, false, false},
	}
	for _, tt := range tests {
		if got := tt.et.RunLifecycle(); got != tt.run {
			t.Errorf("%s.RunLifecycle() = %v, want %v", tt.et, got, tt.run)
		}
		if got := tt.et.StepLifecycle(); got != tt.step {
			t.Errorf("%s.StepLifecycle() = %v, want %v", tt.et, got, tt.step)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	runTerminal := map[RunStatus]bool{
		RunStatusPending:   false,
		RunStatusRunning:   false,
		RunStatusPaused:    false,
		RunStatusCompleted: true,
		RunStatusFailed:    true,
		RunStatusCancelled: true,
	}
	for status, want := range runTerminal {
		if got := status.Terminal(); got != want {
			t.Errorf("RunStatus(%s).Terminal() = %v, want %v", status, got, want)
		}
	}

	stepTerminal := map[StepStatus]bool{
		StepStatusPending:   false,
		StepStatusRunning:   false,
		StepStatusCompleted: true,
		StepStatusFailed:    true,
	}
	for status, want := range stepTerminal {
		if got := status.Terminal(); got != want {
			t.Errorf("StepStatus(%s).Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	t.Parallel()

	run := &Run{
		WorkflowName: "orig",
		Input:        json.RawMessage(`{"a":1}`),
	}
	cp := run.Clone()
	cp.Input[2] = 'b'
	cp.WorkflowName = "mutated"

	if string(run.Input) != `{"a":1}` {
		t.Errorf("clone shares input buffer: %s", run.Input)
	}
	if run.WorkflowName != "orig" {
		t.Errorf("clone shares scalar fields: %s", run.WorkflowName)
	}
}
