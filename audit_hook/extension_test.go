package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	ah "github.com/mizzle-dev/worlds/audit_hook"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// ── Test helpers ─────────────────────────────────────

func newTestRun() *workflow.Run {
	return &workflow.Run{
		ID:           id.NewRunID(),
		WorkflowName: "order-flow",
		Status:       workflow.RunStatusRunning,
		SpecVersion:  workflow.SpecVersionCurrent,
	}
}

func newTestStep(runID id.RunID) *workflow.Step {
	return &workflow.Step{
		RunID:   runID,
		ID:      "charge-card",
		Name:    "charge-card",
		Status:  workflow.StepStatusCompleted,
		Attempt: 2,
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_RunCreated(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()

	if err := e.OnRunCreated(context.Background(), r); err != nil {
		t.Fatalf("OnRunCreated: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionRunCreated {
		t.Errorf("Action: want %q, got %q", ah.ActionRunCreated, evt.Action)
	}
	if evt.Resource != ah.ResourceRun {
		t.Errorf("Resource: want %q, got %q", ah.ResourceRun, evt.Resource)
	}
	if evt.Category != ah.CategoryRun {
		t.Errorf("Category: want %q, got %q", ah.CategoryRun, evt.Category)
	}
	if evt.ResourceID != r.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", r.ID.String(), evt.ResourceID)
	}
	if evt.Severity != ah.SeverityInfo || evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("severity/outcome: %q/%q", evt.Severity, evt.Outcome)
	}
	if evt.Metadata["workflow_name"] != "order-flow" {
		t.Errorf("metadata = %v", evt.Metadata)
	}
}

func TestExtension_RunCompleted_Elapsed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()
	started := time.Now().UTC().Add(-3 * time.Second)
	done := time.Now().UTC()
	r.StartedAt = &started
	r.CompletedAt = &done

	if err := e.OnRunCompleted(context.Background(), r); err != nil {
		t.Fatalf("OnRunCompleted: %v", err)
	}
	evt := rec.last()
	if evt.Action != ah.ActionRunCompleted {
		t.Fatalf("Action = %q", evt.Action)
	}
	if _, ok := evt.Metadata["elapsed_ms"]; !ok {
		t.Errorf("elapsed_ms missing: %v", evt.Metadata)
	}
}

func TestExtension_RunFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()
	r.Status = workflow.RunStatusFailed
	r.Error = "payment declined"

	if err := e.OnRunFailed(context.Background(), r); err != nil {
		t.Fatalf("OnRunFailed: %v", err)
	}
	evt := rec.last()
	if evt.Severity != ah.SeverityCritical || evt.Outcome != ah.OutcomeFailure {
		t.Errorf("severity/outcome: %q/%q", evt.Severity, evt.Outcome)
	}
	if evt.Reason != "payment declined" {
		t.Errorf("Reason = %q", evt.Reason)
	}
	if evt.Metadata["error"] != "payment declined" {
		t.Errorf("metadata = %v", evt.Metadata)
	}
}

func TestExtension_RunCancelled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnRunCancelled(context.Background(), newTestRun()); err != nil {
		t.Fatalf("OnRunCancelled: %v", err)
	}
	evt := rec.last()
	if evt.Action != ah.ActionRunCancelled || evt.Severity != ah.SeverityWarning {
		t.Errorf("got %q/%q", evt.Action, evt.Severity)
	}
}

func TestExtension_StepCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()
	s := newTestStep(r.ID)

	if err := e.OnStepCompleted(context.Background(), s); err != nil {
		t.Fatalf("OnStepCompleted: %v", err)
	}
	evt := rec.last()
	if evt.Action != ah.ActionStepCompleted || evt.Resource != ah.ResourceStep {
		t.Errorf("got %q/%q", evt.Action, evt.Resource)
	}
	if evt.ResourceID != "charge-card" {
		t.Errorf("ResourceID = %q", evt.ResourceID)
	}
	if evt.Metadata["run_id"] != r.ID.String() || evt.Metadata["attempt"] != 2 {
		t.Errorf("metadata = %v", evt.Metadata)
	}
}

func TestExtension_StepFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	r := newTestRun()
	s := newTestStep(r.ID)
	s.Status = workflow.StepStatusFailed
	s.Error = "timeout"

	if err := e.OnStepFailed(context.Background(), s); err != nil {
		t.Fatalf("OnStepFailed: %v", err)
	}
	evt := rec.last()
	if evt.Severity != ah.SeverityCritical || evt.Reason != "timeout" {
		t.Errorf("got %q/%q", evt.Severity, evt.Reason)
	}
}

func TestExtension_HookConflict(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	runID := id.NewRunID()

	if err := e.OnHookConflict(context.Background(), runID, "tok-1"); err != nil {
		t.Fatalf("OnHookConflict: %v", err)
	}
	evt := rec.last()
	if evt.Action != ah.ActionHookConflict || evt.Category != ah.CategoryHook {
		t.Errorf("got %q/%q", evt.Action, evt.Category)
	}
	if evt.ResourceID != "tok-1" || evt.Metadata["run_id"] != runID.String() {
		t.Errorf("event = %+v", evt)
	}
}

// ── Filtering ────────────────────────────────────────

func TestExtension_WithActions_Filters(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionRunFailed))
	ctx := context.Background()
	r := newTestRun()

	if err := e.OnRunCreated(ctx, r); err != nil {
		t.Fatalf("OnRunCreated: %v", err)
	}
	if err := e.OnRunStarted(ctx, r); err != nil {
		t.Fatalf("OnRunStarted: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("filtered actions recorded %d events", rec.count())
	}

	r.Error = "boom"
	if err := e.OnRunFailed(ctx, r); err != nil {
		t.Fatalf("OnRunFailed: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("enabled action recorded %d events, want 1", rec.count())
	}
}

func TestAllActions_Complete(t *testing.T) {
	actions := ah.AllActions()
	if len(actions) != 8 {
		t.Fatalf("AllActions = %d entries, want 8", len(actions))
	}
	seen := make(map[string]bool)
	for _, a := range actions {
		if seen[a] {
			t.Fatalf("duplicate action %q", a)
		}
		seen[a] = true
	}
}

// ── Recorder failure handling ────────────────────────

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *ah.AuditEvent) error {
	return errors.New("audit backend down")
}

func TestExtension_RecorderErrorIsSwallowed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := ah.New(failingRecorder{}, ah.WithLogger(logger))

	// A failing audit backend must never fail the lifecycle hook.
	if err := e.OnRunCreated(context.Background(), newTestRun()); err != nil {
		t.Fatalf("recorder error escaped: %v", err)
	}
}
