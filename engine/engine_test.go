package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/engine"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/scope"
	"github.com/mizzle-dev/worlds/store/memory"
	"github.com/mizzle-dev/worlds/workflow"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	e, err := engine.New(s, opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e, s
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func createRun(t *testing.T, e *engine.Engine, name string) *workflow.Run {
	t.Helper()
	res, err := e.CreateEvent(context.Background(), id.Nil, workflow.EventRequest{
		Type: workflow.EventRunCreated,
		Data: mustJSON(t, workflow.RunCreatedData{
			WorkflowName: name,
			Input:        json.RawMessage(`{"order":42}`),
		}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if res.Run == nil {
		t.Fatal("run_created returned no run")
	}
	return res.Run
}

func createStep(t *testing.T, e *engine.Engine, runID id.RunID, stepID string) *workflow.Step {
	t.Helper()
	res, err := e.CreateEvent(context.Background(), runID, workflow.EventRequest{
		Type:          workflow.EventStepCreated,
		CorrelationID: stepID,
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("create step %s: %v", stepID, err)
	}
	return res.Step
}

func createHook(t *testing.T, e *engine.Engine, runID id.RunID, token string) *engine.Result {
	t.Helper()
	res, err := e.CreateEvent(context.Background(), runID, workflow.EventRequest{
		Type: workflow.EventHookCreated,
		Data: mustJSON(t, workflow.HookCreatedData{Token: token}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}
	return res
}

func wantCode(t *testing.T, err error, code worlds.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want code %s", code)
	}
	if got := worlds.CodeOf(err); got != code {
		t.Fatalf("code = %q (%v), want %s", got, err, code)
	}
}

// ──────────────────────────────────────────────────
// Run lifecycle
// ──────────────────────────────────────────────────

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "order-flow")

	if run.Status != workflow.RunStatusPending {
		t.Fatalf("new run status = %s, want pending", run.Status)
	}
	if run.SpecVersion != workflow.SpecVersionCurrent {
		t.Fatalf("spec version = %d, want %d", run.SpecVersion, workflow.SpecVersionCurrent)
	}

	res, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type: workflow.EventRunStarted,
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Run.Status != workflow.RunStatusRunning || res.Run.StartedAt == nil {
		t.Fatalf("after start: %+v", res.Run)
	}

	res, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type: workflow.EventRunCompleted,
		Data: mustJSON(t, workflow.RunCompletedData{Output: json.RawMessage(`{"ok":true}`)}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Run.Status != workflow.RunStatusCompleted || res.Run.CompletedAt == nil {
		t.Fatalf("after complete: %+v", res.Run)
	}
	if string(res.Run.Output) != `{"ok":true}` {
		t.Fatalf("output = %s", res.Run.Output)
	}
}

func TestRunCreatedWithCallerID(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	want := id.NewRunID()

	res, err := e.CreateEvent(context.Background(), id.Nil, workflow.EventRequest{
		Type:  workflow.EventRunCreated,
		RunID: want.String(),
		Data:  mustJSON(t, workflow.RunCreatedData{WorkflowName: "fixed-id"}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Run.ID != want {
		t.Fatalf("run id = %s, want %s", res.Run.ID, want)
	}

	// Creating it again is a conflict, not a silent overwrite.
	_, err = e.CreateEvent(context.Background(), id.Nil, workflow.EventRequest{
		Type:  workflow.EventRunCreated,
		RunID: want.String(),
		Data:  mustJSON(t, workflow.RunCreatedData{WorkflowName: "fixed-id"}),
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
	if !errors.Is(err, worlds.ErrRunExists) {
		t.Fatalf("err = %v, want wrapped ErrRunExists", err)
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()

	// Unknown event type.
	_, err := e.CreateEvent(ctx, id.NewRunID(), workflow.EventRequest{Type: "made_up"}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeBadRequest)

	// hook_conflict is engine-emitted only.
	_, err = e.CreateEvent(ctx, id.NewRunID(), workflow.EventRequest{Type: workflow.EventHookConflict}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeBadRequest)

	// run_created needs a workflow name.
	_, err = e.CreateEvent(ctx, id.Nil, workflow.EventRequest{Type: workflow.EventRunCreated}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeBadRequest)

	// Non-create events need a run ID.
	_, err = e.CreateEvent(ctx, id.Nil, workflow.EventRequest{Type: workflow.EventRunStarted}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeBadRequest)

	// And the run must exist.
	_, err = e.CreateEvent(ctx, id.NewRunID(), workflow.EventRequest{Type: workflow.EventRunStarted}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeNotFound)
	if !errors.Is(err, worlds.ErrRunNotFound) {
		t.Fatalf("err = %v, want wrapped ErrRunNotFound", err)
	}
}

func TestTerminalRunRejectsLifecycle(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "done")

	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCompleted}, workflow.GetOpts{}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// No further lifecycle transitions.
	_, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunStarted}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
	_, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunFailed}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)

	// No new entities either.
	_, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepCreated,
		CorrelationID: "late",
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
	_, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type: workflow.EventHookCreated,
		Data: mustJSON(t, workflow.HookCreatedData{Token: "late"}),
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
}

func TestIdempotentCancel(t *testing.T) {
	t.Parallel()
	e, s := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "cancel-me")

	first, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Run.Status != workflow.RunStatusCancelled || first.Run.CompletedAt == nil {
		t.Fatalf("after cancel: %+v", first.Run)
	}
	stamped := *first.Run.CompletedAt

	// Cancelling again succeeds, appends an event, and keeps the original
	// completion timestamp.
	second, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("re-cancel: %v", err)
	}
	if second.Run.Status != workflow.RunStatusCancelled {
		t.Fatalf("re-cancel status = %s", second.Run.Status)
	}
	if second.Run.CompletedAt == nil || !second.Run.CompletedAt.Equal(stamped) {
		t.Fatalf("completedAt changed on re-cancel: %v != %v", second.Run.CompletedAt, stamped)
	}

	events, err := s.ListEvents(ctx, run.ID, workflow.ListOpts{Limit: 10, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	cancels := 0
	for _, evt := range events {
		if evt.Type == workflow.EventRunCancelled {
			cancels++
		}
	}
	if cancels != 2 {
		t.Fatalf("run_cancelled events = %d, want 2", cancels)
	}
}

// ──────────────────────────────────────────────────
// Steps
// ──────────────────────────────────────────────────

func TestStepLifecycle(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "steps")
	step := createStep(t, e, run.ID, "charge-card")

	if step.Status != workflow.StepStatusPending || step.Attempt != 0 {
		t.Fatalf("new step: %+v", step)
	}
	if step.Name != "charge-card" {
		t.Fatalf("name defaulted wrong: %q", step.Name)
	}

	res, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepStarted,
		CorrelationID: "charge-card",
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("start step: %v", err)
	}
	if res.Step.Status != workflow.StepStatusRunning || res.Step.Attempt != 1 {
		t.Fatalf("after start: %+v", res.Step)
	}

	res, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepCompleted,
		CorrelationID: "charge-card",
		Data:          mustJSON(t, workflow.StepCompletedData{Output: json.RawMessage(`{"txn":"abc"}`)}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("complete step: %v", err)
	}
	if res.Step.Status != workflow.StepStatusCompleted || res.Step.CompletedAt == nil {
		t.Fatalf("after complete: %+v", res.Step)
	}

	// Terminal step accepts no further mutation.
	_, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepStarted,
		CorrelationID: "charge-card",
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
}

func TestDuplicateStepID(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	run := createRun(t, e, "dup-step")
	createStep(t, e, run.ID, "once")

	_, err := e.CreateEvent(context.Background(), run.ID, workflow.EventRequest{
		Type:          workflow.EventStepCreated,
		CorrelationID: "once",
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)
	if !errors.Is(err, worlds.ErrStepExists) {
		t.Fatalf("err = %v, want wrapped ErrStepExists", err)
	}
}

func TestStepRetryGate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	e, _ := newEngine(t, engine.WithClock(clock.Now))
	ctx := context.Background()
	run := createRun(t, e, "retries")
	createStep(t, e, run.ID, "flaky")

	start := func() error {
		_, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
			Type:          workflow.EventStepStarted,
			CorrelationID: "flaky",
		}, workflow.GetOpts{})
		return err
	}
	if err := start(); err != nil {
		t.Fatalf("first start: %v", err)
	}

	deadline := now.Add(5 * time.Minute)
	_, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepRetrying,
		CorrelationID: "flaky",
		Data:          mustJSON(t, workflow.StepRetryingData{Error: "boom", RetryAfter: deadline}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("retrying: %v", err)
	}

	// Starting before the deadline is rejected with the deadline attached.
	err = start()
	wantCode(t, err, worlds.CodeTooEarly)
	got, ok := worlds.RetryAfterOf(err)
	if !ok || !got.Equal(deadline) {
		t.Fatalf("retryAfter = %v (%v), want %v", got, ok, deadline)
	}

	// After the deadline the gate opens and the attempt counter advances.
	clock.Advance(6 * time.Minute)
	if err = start(); err != nil {
		t.Fatalf("start past deadline: %v", err)
	}
	step, err := e.GetStep(ctx, run.ID, "flaky", workflow.GetOpts{})
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if step.Attempt != 2 || step.RetryAfter != nil {
		t.Fatalf("after retry: attempt=%d retryAfter=%v", step.Attempt, step.RetryAfter)
	}
}

func TestRunningStepSurvivesRunTermination(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "mid-flight")
	createStep(t, e, run.ID, "in-flight")
	createStep(t, e, run.ID, "parked")

	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepStarted,
		CorrelationID: "in-flight",
	}, workflow.GetOpts{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{}); err != nil {
		t.Fatalf("cancel run: %v", err)
	}

	// The running attempt may still report its outcome.
	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepCompleted,
		CorrelationID: "in-flight",
	}, workflow.GetOpts{}); err != nil {
		t.Fatalf("complete in-flight step: %v", err)
	}

	// A step that never started is gone.
	_, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventStepStarted,
		CorrelationID: "parked",
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeGone)
}

// ──────────────────────────────────────────────────
// Hooks
// ──────────────────────────────────────────────────

func TestHookConflictSoftFail(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "hooks")

	first := createHook(t, e, run.ID, "secret-token")
	if first.Hook == nil || first.Hook.Token != "secret-token" {
		t.Fatalf("first hook: %+v", first.Hook)
	}

	// Claiming the same token again is not an error; it yields a
	// hook_conflict event and no hook.
	second := createHook(t, e, run.ID, "secret-token")
	if second.Hook != nil {
		t.Fatalf("conflicting claim produced a hook: %+v", second.Hook)
	}
	if second.Event.Type != workflow.EventHookConflict {
		t.Fatalf("event type = %s, want hook_conflict", second.Event.Type)
	}
	var data workflow.HookConflictData
	if err := json.Unmarshal(second.Event.Data, &data); err != nil || data.Token != "secret-token" {
		t.Fatalf("conflict data = %s (%v)", second.Event.Data, err)
	}

	// The original hook is untouched.
	got, err := e.GetHookByToken(ctx, "secret-token", workflow.GetOpts{})
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.ID != first.Hook.ID {
		t.Fatalf("token now resolves to %s", got.ID)
	}
}

func TestHookTokenReuseAfterTermination(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()

	runA := createRun(t, e, "tenant-a")
	createHook(t, e, runA.ID, "webhook-tok")

	if _, err := e.CreateEvent(ctx, runA.ID, workflow.EventRequest{Type: workflow.EventRunCompleted}, workflow.GetOpts{}); err != nil {
		t.Fatalf("complete run A: %v", err)
	}

	// Termination released the token; run B claims it cleanly.
	runB := createRun(t, e, "tenant-b")
	res := createHook(t, e, runB.ID, "webhook-tok")
	if res.Hook == nil {
		t.Fatalf("reuse after release failed: %+v", res.Event)
	}
	got, err := e.GetHookByToken(ctx, "webhook-tok", workflow.GetOpts{})
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got.RunID != runB.ID {
		t.Fatalf("token owned by %s, want run B", got.RunID)
	}
}

func TestHookReceiveAndDispose(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	ctx := context.Background()
	run := createRun(t, e, "signals")
	hook := createHook(t, e, run.ID, "sig-tok").Hook

	res, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventHookReceived,
		CorrelationID: hook.ID.String(),
		Data:          json.RawMessage(`{"payload":"ping"}`),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if res.Hook == nil || res.Hook.ID != hook.ID {
		t.Fatalf("receive result: %+v", res)
	}

	if _, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventHookDisposed,
		CorrelationID: hook.ID.String(),
	}, workflow.GetOpts{}); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	_, err = e.GetHook(ctx, hook.ID, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeNotFound)

	// Events targeting the disposed hook now miss.
	_, err = e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type:          workflow.EventHookReceived,
		CorrelationID: hook.ID.String(),
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeNotFound)
}

func TestHookIdentityFromScope(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)
	run := createRun(t, e, "tenants")

	ctx := scope.With(context.Background(), scope.Identity{
		OwnerID:     "owner-1",
		ProjectID:   "proj-1",
		Environment: "staging",
	})
	res, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{
		Type: workflow.EventHookCreated,
		Data: mustJSON(t, workflow.HookCreatedData{Token: "scoped-tok"}),
	}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("create hook: %v", err)
	}
	h := res.Hook
	if h.OwnerID != "owner-1" || h.ProjectID != "proj-1" || h.Environment != "staging" {
		t.Fatalf("identity not captured: %+v", h)
	}
}

// ──────────────────────────────────────────────────
// Versioning
// ──────────────────────────────────────────────────

func TestLegacyRunRestrictions(t *testing.T) {
	t.Parallel()
	e, s := newEngine(t)
	ctx := context.Background()

	// A run written under the pre-event-sourcing protocol, seeded directly.
	legacy := &workflow.Run{
		Entity:       worlds.NewEntity(),
		ID:           id.NewRunID(),
		WorkflowName: "old-school",
		Status:       workflow.RunStatusRunning,
		SpecVersion:  workflow.SpecVersionLegacy,
	}
	if err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event: &workflow.Event{
			ID:          id.NewEventID(),
			RunID:       legacy.ID,
			Type:        workflow.EventRunCreated,
			SpecVersion: workflow.SpecVersionLegacy,
			CreatedAt:   time.Now().UTC(),
		},
		CreateRun: legacy,
	}); err != nil {
		t.Fatalf("seed legacy run: %v", err)
	}

	// Step creation is not available on legacy runs.
	_, err := e.CreateEvent(ctx, legacy.ID, workflow.EventRequest{
		Type:          workflow.EventStepCreated,
		CorrelationID: "s1",
	}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeConflict)

	// Pure appends are.
	if _, err = e.CreateEvent(ctx, legacy.ID, workflow.EventRequest{
		Type: workflow.EventWaitCompleted,
	}, workflow.GetOpts{}); err != nil {
		t.Fatalf("wait_completed on legacy run: %v", err)
	}

	// Cancellation is, and is idempotent.
	res, err := e.CreateEvent(ctx, legacy.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{})
	if err != nil {
		t.Fatalf("cancel legacy run: %v", err)
	}
	if res.Run.Status != workflow.RunStatusCancelled {
		t.Fatalf("status = %s", res.Run.Status)
	}
	if _, err = e.CreateEvent(ctx, legacy.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{}); err != nil {
		t.Fatalf("re-cancel legacy run: %v", err)
	}
}

func TestFutureVersionRunRejected(t *testing.T) {
	t.Parallel()
	e, s := newEngine(t)
	ctx := context.Background()

	future := &workflow.Run{
		Entity:       worlds.NewEntity(),
		ID:           id.NewRunID(),
		WorkflowName: "from-the-future",
		Status:       workflow.RunStatusRunning,
		SpecVersion:  workflow.SpecVersionCurrent + 1,
	}
	if err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event: &workflow.Event{
			ID:          id.NewEventID(),
			RunID:       future.ID,
			Type:        workflow.EventRunCreated,
			SpecVersion: future.SpecVersion,
			CreatedAt:   time.Now().UTC(),
		},
		CreateRun: future,
	}); err != nil {
		t.Fatalf("seed future run: %v", err)
	}

	// Even cancellation is refused; this engine must not touch it.
	_, err := e.CreateEvent(ctx, future.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{})
	wantCode(t, err, worlds.CodeRunNotSupported)
}

// ──────────────────────────────────────────────────
// Extensions
// ──────────────────────────────────────────────────

type recordingExt struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingExt) Name() string { return "recording" }

func (r *recordingExt) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	return nil
}

func (r *recordingExt) OnRunCreated(context.Context, *workflow.Run) error {
	return r.record("run.created")
}

func (r *recordingExt) OnRunCancelled(context.Context, *workflow.Run) error {
	return r.record("run.cancelled")
}

func (r *recordingExt) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestExtensionEmission(t *testing.T) {
	t.Parallel()
	rec := &recordingExt{}
	e, _ := newEngine(t, engine.WithExtension(rec))
	ctx := context.Background()

	run := createRun(t, e, "observed")
	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Re-cancel must not re-fire the cancel hook.
	if _, err := e.CreateEvent(ctx, run.ID, workflow.EventRequest{Type: workflow.EventRunCancelled}, workflow.GetOpts{}); err != nil {
		t.Fatalf("re-cancel: %v", err)
	}

	got := rec.snapshot()
	want := []string{"run.created", "run.cancelled"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

// ──────────────────────────────────────────────────
// Clock
// ──────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
