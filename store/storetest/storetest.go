// Package storetest exports the backend contract suite. Every World must
// pass it: the engine's invariants only hold if each backend reproduces the
// same storage semantics, so the suite is the conformance bar for a new
// backend.
//
// Usage from a backend's test file:
//
//	func TestContract(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) workflow.Store {
//	        return memory.New()
//	    })
//	}
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Factory builds a fresh, empty store for one test. Implementations
// register cleanup via t.Cleanup.
type Factory func(t *testing.T) workflow.Store

// Run executes the full contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s workflow.Store)
	}{
		{"RunRoundTrip", testRunRoundTrip},
		{"RunNotFound", testRunNotFound},
		{"DuplicateRun", testDuplicateRun},
		{"RunListFilterAndCursor", testRunListFilterAndCursor},
		{"CloneIsolation", testCloneIsolation},
		{"StepRoundTrip", testStepRoundTrip},
		{"DuplicateStep", testDuplicateStep},
		{"HookTokenClaim", testHookTokenClaim},
		{"HookTokenRelease", testHookTokenRelease},
		{"HookDispose", testHookDispose},
		{"EventOrdering", testEventOrdering},
		{"EventsByCorrelationID", testEventsByCorrelationID},
		{"AtomicChangeSet", testAtomicChangeSet},
		{"RunLockSerializes", testRunLockSerializes},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// ──────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────

func newRun(name string) *workflow.Run {
	return &workflow.Run{
		Entity:       worlds.NewEntity(),
		ID:           id.NewRunID(),
		WorkflowName: name,
		Status:       workflow.RunStatusPending,
		SpecVersion:  workflow.SpecVersionCurrent,
		Input:        []byte(`{"n":1}`),
	}
}

func newEvent(runID id.RunID, typ workflow.EventType, correlationID string) *workflow.Event {
	return &workflow.Event{
		ID:            id.NewEventID(),
		RunID:         runID,
		Type:          typ,
		CorrelationID: correlationID,
		SpecVersion:   workflow.SpecVersionCurrent,
		CreatedAt:     time.Now().UTC(),
	}
}

// seedRun persists a fresh run with its run_created event.
func seedRun(t *testing.T, s workflow.Store, name string) *workflow.Run {
	t.Helper()
	run := newRun(name)
	err := s.ApplyChange(context.Background(), &workflow.ChangeSet{
		Event:     newEvent(run.ID, workflow.EventRunCreated, ""),
		CreateRun: run,
	})
	if err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return run
}

func seedStep(t *testing.T, s workflow.Store, run *workflow.Run, stepID string) *workflow.Step {
	t.Helper()
	step := &workflow.Step{
		Entity: worlds.NewEntity(),
		RunID:  run.ID,
		ID:     stepID,
		Name:   stepID,
		Status: workflow.StepStatusPending,
	}
	err := s.ApplyChange(context.Background(), &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventStepCreated, stepID),
		CreateStep: step,
	})
	if err != nil {
		t.Fatalf("seed step: %v", err)
	}
	return step
}

func seedHook(t *testing.T, s workflow.Store, run *workflow.Run, token string) *workflow.Hook {
	t.Helper()
	hook := &workflow.Hook{
		RunID:     run.ID,
		ID:        id.NewHookID(),
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	err := s.ApplyChange(context.Background(), &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventHookCreated, hook.ID.String()),
		CreateHook: hook,
	})
	if err != nil {
		t.Fatalf("seed hook: %v", err)
	}
	return hook
}

func countEvents(t *testing.T, s workflow.Store, runID id.RunID) int {
	t.Helper()
	events, err := s.ListEvents(context.Background(), runID, workflow.ListOpts{Limit: 1000, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return len(events)
}

// ──────────────────────────────────────────────────
// Runs
// ──────────────────────────────────────────────────

func testRunRoundTrip(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "round-trip")

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.ID != run.ID || got.WorkflowName != "round-trip" || got.Status != workflow.RunStatusPending {
		t.Fatalf("got %+v, want seeded run", got)
	}
	if string(got.Input) != `{"n":1}` {
		t.Fatalf("input = %s, want {\"n\":1}", got.Input)
	}

	// Update through a change set.
	now := time.Now().UTC()
	got.Status = workflow.RunStatusRunning
	got.StartedAt = &now
	err = s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:     newEvent(run.ID, workflow.EventRunStarted, ""),
		UpdateRun: got,
	})
	if err != nil {
		t.Fatalf("update run: %v", err)
	}

	got2, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run after update: %v", err)
	}
	if got2.Status != workflow.RunStatusRunning || got2.StartedAt == nil {
		t.Fatalf("update not persisted: %+v", got2)
	}
}

func testRunNotFound(t *testing.T, s workflow.Store) {
	_, err := s.GetRun(context.Background(), id.NewRunID())
	if !errors.Is(err, worlds.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func testDuplicateRun(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "dup")

	before := countEvents(t, s, run.ID)
	dup := newRun("dup")
	dup.ID = run.ID
	err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:     newEvent(run.ID, workflow.EventRunCreated, ""),
		CreateRun: dup,
	})
	if !errors.Is(err, worlds.ErrRunExists) {
		t.Fatalf("err = %v, want ErrRunExists", err)
	}
	// The failed change must leave zero side effects, including the event.
	if after := countEvents(t, s, run.ID); after != before {
		t.Fatalf("events = %d, want %d (failed change persisted its event)", after, before)
	}
}

func testRunListFilterAndCursor(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		r := seedRun(t, s, "listed")
		ids = append(ids, r.ID.String())
	}
	seedRun(t, s, "other")

	filter := workflow.RunFilter{WorkflowName: "listed"}

	// Descending, first page of 2.
	page1, err := s.ListRuns(ctx, filter, workflow.ListOpts{Limit: 2, Order: workflow.SortDesc})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 len = %d, want 2", len(page1))
	}
	if page1[0].ID.String() != ids[4] || page1[1].ID.String() != ids[3] {
		t.Fatalf("page1 order wrong: %s, %s", page1[0].ID, page1[1].ID)
	}

	// Next page from cursor.
	page2, err := s.ListRuns(ctx, filter, workflow.ListOpts{
		Limit: 2, Order: workflow.SortDesc, Cursor: page1[1].ID.String(),
	})
	if err != nil {
		t.Fatalf("list runs page2: %v", err)
	}
	if len(page2) != 2 || page2[0].ID.String() != ids[2] {
		t.Fatalf("page2 wrong: %+v", page2)
	}

	// Status filter matches nothing yet.
	none, err := s.ListRuns(ctx, workflow.RunFilter{Status: workflow.RunStatusFailed}, workflow.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no failed runs, got %d", len(none))
	}
}

func testCloneIsolation(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "isolated")

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	got.WorkflowName = "mutated"
	got.Input[0] = 'X'

	again, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run again: %v", err)
	}
	if again.WorkflowName != "isolated" || string(again.Input) != `{"n":1}` {
		t.Fatalf("stored state mutated through a returned pointer: %+v", again)
	}
}

// ──────────────────────────────────────────────────
// Steps
// ──────────────────────────────────────────────────

func testStepRoundTrip(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "steps")
	seedStep(t, s, run, "s1")
	seedStep(t, s, run, "s2")

	got, err := s.GetStep(ctx, run.ID, "s1")
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if got.Status != workflow.StepStatusPending || got.RunID != run.ID {
		t.Fatalf("got %+v", got)
	}

	got.Status = workflow.StepStatusRunning
	got.Attempt = 1
	err = s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventStepStarted, "s1"),
		UpdateStep: got,
	})
	if err != nil {
		t.Fatalf("update step: %v", err)
	}

	got2, err := s.GetStep(ctx, run.ID, "s1")
	if err != nil {
		t.Fatalf("get step after update: %v", err)
	}
	if got2.Status != workflow.StepStatusRunning || got2.Attempt != 1 {
		t.Fatalf("update not persisted: %+v", got2)
	}

	// Unknown step and wrong run both miss.
	if _, err = s.GetStep(ctx, run.ID, "nope"); !errors.Is(err, worlds.ErrStepNotFound) {
		t.Fatalf("err = %v, want ErrStepNotFound", err)
	}
	other := seedRun(t, s, "other")
	if _, err = s.GetStep(ctx, other.ID, "s1"); !errors.Is(err, worlds.ErrStepNotFound) {
		t.Fatalf("step leaked across runs: err = %v", err)
	}

	steps, err := s.ListSteps(ctx, run.ID, workflow.ListOpts{Limit: 10, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != 2 || steps[0].ID != "s1" || steps[1].ID != "s2" {
		t.Fatalf("list steps wrong: %+v", steps)
	}
}

func testDuplicateStep(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "dup-step")
	seedStep(t, s, run, "s1")

	before := countEvents(t, s, run.ID)
	dup := &workflow.Step{
		Entity: worlds.NewEntity(),
		RunID:  run.ID,
		ID:     "s1",
		Name:   "imposter",
		Status: workflow.StepStatusPending,
	}
	err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventStepCreated, "s1"),
		CreateStep: dup,
	})
	if !errors.Is(err, worlds.ErrStepExists) {
		t.Fatalf("err = %v, want ErrStepExists", err)
	}
	if after := countEvents(t, s, run.ID); after != before {
		t.Fatalf("failed step create persisted its event")
	}

	// First step unaffected.
	got, err := s.GetStep(ctx, run.ID, "s1")
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if got.Name != "s1" {
		t.Fatalf("first step clobbered: %+v", got)
	}

	// The same step ID on a different run is fine.
	other := seedRun(t, s, "dup-step-2")
	seedStep(t, s, other, "s1")
}

// ──────────────────────────────────────────────────
// Hooks
// ──────────────────────────────────────────────────

func testHookTokenClaim(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "hooks")
	hook := seedHook(t, s, run, "tok-1")

	got, err := s.GetHook(ctx, hook.ID)
	if err != nil {
		t.Fatalf("get hook: %v", err)
	}
	if got.Token != "tok-1" || got.RunID != run.ID {
		t.Fatalf("got %+v", got)
	}

	byToken, err := s.GetHookByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get hook by token: %v", err)
	}
	if byToken.ID != hook.ID {
		t.Fatalf("token resolves to %s, want %s", byToken.ID, hook.ID)
	}

	// Claiming the same token again fails atomically.
	before := countEvents(t, s, run.ID)
	clash := &workflow.Hook{
		RunID:     run.ID,
		ID:        id.NewHookID(),
		Token:     "tok-1",
		CreatedAt: time.Now().UTC(),
	}
	err = s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventHookCreated, clash.ID.String()),
		CreateHook: clash,
	})
	if !errors.Is(err, worlds.ErrHookTokenTaken) {
		t.Fatalf("err = %v, want ErrHookTokenTaken", err)
	}
	if after := countEvents(t, s, run.ID); after != before {
		t.Fatalf("failed token claim persisted its event")
	}
	if _, err = s.GetHook(ctx, clash.ID); !errors.Is(err, worlds.ErrHookNotFound) {
		t.Fatalf("losing hook was persisted: err = %v", err)
	}
}

func testHookTokenRelease(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	runA := seedRun(t, s, "release-a")
	hookA := seedHook(t, s, runA, "tok-shared")

	// Terminating run A releases every hook it owns.
	now := time.Now().UTC()
	runA.Status = workflow.RunStatusCompleted
	runA.CompletedAt = &now
	err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:           newEvent(runA.ID, workflow.EventRunCompleted, ""),
		UpdateRun:       runA,
		ReleaseRunHooks: runA.ID,
	})
	if err != nil {
		t.Fatalf("terminate run: %v", err)
	}
	if _, err = s.GetHook(ctx, hookA.ID); !errors.Is(err, worlds.ErrHookNotFound) {
		t.Fatalf("hook survived run termination: err = %v", err)
	}
	if _, err = s.GetHookByToken(ctx, "tok-shared"); !errors.Is(err, worlds.ErrHookNotFound) {
		t.Fatalf("token not released: err = %v", err)
	}

	// The token is immediately reusable by a later run.
	runB := seedRun(t, s, "release-b")
	hookB := seedHook(t, s, runB, "tok-shared")
	byToken, err := s.GetHookByToken(ctx, "tok-shared")
	if err != nil {
		t.Fatalf("get reused token: %v", err)
	}
	if byToken.ID != hookB.ID || byToken.RunID != runB.ID {
		t.Fatalf("token resolves to %+v, want run B's hook", byToken)
	}
}

func testHookDispose(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "dispose")
	hook := seedHook(t, s, run, "tok-d")
	keep := seedHook(t, s, run, "tok-k")

	err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:      newEvent(run.ID, workflow.EventHookDisposed, hook.ID.String()),
		DeleteHook: hook.ID,
	})
	if err != nil {
		t.Fatalf("dispose hook: %v", err)
	}
	if _, err = s.GetHook(ctx, hook.ID); !errors.Is(err, worlds.ErrHookNotFound) {
		t.Fatalf("disposed hook still present: err = %v", err)
	}
	if _, err = s.GetHookByToken(ctx, "tok-d"); !errors.Is(err, worlds.ErrHookNotFound) {
		t.Fatalf("disposed token still claimed: err = %v", err)
	}

	// The run's other hook is untouched.
	hooks, err := s.ListHooks(ctx, run.ID, workflow.ListOpts{Limit: 10, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list hooks: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != keep.ID {
		t.Fatalf("hooks = %+v, want only the kept hook", hooks)
	}
}

// ──────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────

func testEventOrdering(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "ordered")

	var ids []string
	for i := 0; i < 4; i++ {
		evt := newEvent(run.ID, workflow.EventWaitCompleted, "")
		if err := s.ApplyChange(ctx, &workflow.ChangeSet{Event: evt}); err != nil {
			t.Fatalf("append event: %v", err)
		}
		ids = append(ids, evt.ID.String())
	}

	asc, err := s.ListEvents(ctx, run.ID, workflow.ListOpts{Limit: 10, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list asc: %v", err)
	}
	// run_created plus four appends, strictly increasing.
	if len(asc) != 5 {
		t.Fatalf("asc len = %d, want 5", len(asc))
	}
	for i := 1; i < len(asc); i++ {
		if asc[i-1].ID.String() >= asc[i].ID.String() {
			t.Fatalf("ascending order violated at %d: %s >= %s", i, asc[i-1].ID, asc[i].ID)
		}
	}

	desc, err := s.ListEvents(ctx, run.ID, workflow.ListOpts{Limit: 10, Order: workflow.SortDesc})
	if err != nil {
		t.Fatalf("list desc: %v", err)
	}
	if desc[0].ID.String() != ids[3] {
		t.Fatalf("desc head = %s, want %s", desc[0].ID, ids[3])
	}

	// Cursor resumes strictly past the given event.
	rest, err := s.ListEvents(ctx, run.ID, workflow.ListOpts{
		Limit: 10, Order: workflow.SortAsc, Cursor: ids[1],
	})
	if err != nil {
		t.Fatalf("list from cursor: %v", err)
	}
	if len(rest) != 2 || rest[0].ID.String() != ids[2] {
		t.Fatalf("cursor page wrong: %+v", rest)
	}
}

func testEventsByCorrelationID(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	runA := seedRun(t, s, "corr-a")
	runB := seedRun(t, s, "corr-b")

	// The same correlation ID appears on both runs.
	for _, run := range []*workflow.Run{runA, runB} {
		evt := newEvent(run.ID, workflow.EventStepCreated, "shared-step")
		if err := s.ApplyChange(ctx, &workflow.ChangeSet{Event: evt}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	evt := newEvent(runA.ID, workflow.EventStepCompleted, "other-step")
	if err := s.ApplyChange(ctx, &workflow.ChangeSet{Event: evt}); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := s.ListEventsByCorrelationID(ctx, "shared-step", workflow.ListOpts{Limit: 10, Order: workflow.SortAsc})
	if err != nil {
		t.Fatalf("list by correlation: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.CorrelationID != "shared-step" {
			t.Fatalf("stray event %+v", e)
		}
	}
}

// ──────────────────────────────────────────────────
// Atomicity and locking
// ──────────────────────────────────────────────────

func testAtomicChangeSet(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "atomic")
	seedHook(t, s, run, "tok-atomic")

	// A change set whose hook claim fails must also not apply its run
	// update or append its event.
	now := time.Now().UTC()
	updated := run.Clone()
	updated.Status = workflow.RunStatusRunning
	updated.StartedAt = &now
	before := countEvents(t, s, run.ID)

	err := s.ApplyChange(ctx, &workflow.ChangeSet{
		Event:     newEvent(run.ID, workflow.EventHookCreated, ""),
		UpdateRun: updated,
		CreateHook: &workflow.Hook{
			RunID:     run.ID,
			ID:        id.NewHookID(),
			Token:     "tok-atomic",
			CreatedAt: now,
		},
	})
	if !errors.Is(err, worlds.ErrHookTokenTaken) {
		t.Fatalf("err = %v, want ErrHookTokenTaken", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != workflow.RunStatusPending {
		t.Fatalf("partial change applied: run is %s", got.Status)
	}
	if after := countEvents(t, s, run.ID); after != before {
		t.Fatalf("partial change appended its event")
	}
}

func testRunLockSerializes(t *testing.T, s workflow.Store) {
	ctx := context.Background()
	run := seedRun(t, s, "locked")
	seedStep(t, s, run, "s1")

	// Each worker performs a read-modify-write under the run lock. Without
	// serialization the increments interleave and the final count is short.
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithRunLock(ctx, run.ID, func(ctx context.Context) error {
				step, err := s.GetStep(ctx, run.ID, "s1")
				if err != nil {
					return err
				}
				step.Attempt++
				return s.ApplyChange(ctx, &workflow.ChangeSet{
					Event:      newEvent(run.ID, workflow.EventStepStarted, "s1"),
					UpdateStep: step,
				})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("locked apply: %v", err)
		}
	}

	step, err := s.GetStep(ctx, run.ID, "s1")
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if step.Attempt != workers {
		t.Fatalf("attempt = %d, want %d (lost update)", step.Attempt, workers)
	}
}
