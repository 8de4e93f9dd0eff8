package ext

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// recorder implements every hook interface and records what fired.
type recorder struct {
	name  string
	calls []string
	err   error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnRunCreated(ctx context.Context, run *workflow.Run) error {
	r.calls = append(r.calls, "run_created")
	return r.err
}

func (r *recorder) OnRunStarted(ctx context.Context, run *workflow.Run) error {
	r.calls = append(r.calls, "run_started")
	return r.err
}

func (r *recorder) OnRunCompleted(ctx context.Context, run *workflow.Run) error {
	r.calls = append(r.calls, "run_completed")
	return r.err
}

func (r *recorder) OnRunFailed(ctx context.Context, run *workflow.Run) error {
	r.calls = append(r.calls, "run_failed")
	return r.err
}

func (r *recorder) OnRunCancelled(ctx context.Context, run *workflow.Run) error {
	r.calls = append(r.calls, "run_cancelled")
	return r.err
}

func (r *recorder) OnStepCompleted(ctx context.Context, step *workflow.Step) error {
	r.calls = append(r.calls, "step_completed")
	return r.err
}

func (r *recorder) OnStepFailed(ctx context.Context, step *workflow.Step) error {
	r.calls = append(r.calls, "step_failed")
	return r.err
}

func (r *recorder) OnHookConflict(ctx context.Context, runID id.RunID, token string) error {
	r.calls = append(r.calls, "hook_conflict:"+token)
	return r.err
}

// runOnly implements only the run-created hook.
type runOnly struct {
	calls int
}

func (e *runOnly) Name() string { return "run-only" }

func (e *runOnly) OnRunCreated(ctx context.Context, run *workflow.Run) error {
	e.calls++
	return nil
}

func TestRegistryEmit(t *testing.T) {
	t.Parallel()

	rec := &recorder{name: "recorder"}
	reg := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(rec)

	ctx := context.Background()
	run := &workflow.Run{ID: id.NewRunID()}
	step := &workflow.Step{ID: "charge", RunID: run.ID}

	reg.EmitRunCreated(ctx, run)
	reg.EmitRunStarted(ctx, run)
	reg.EmitRunCompleted(ctx, run)
	reg.EmitRunFailed(ctx, run)
	reg.EmitRunCancelled(ctx, run)
	reg.EmitStepCompleted(ctx, step)
	reg.EmitStepFailed(ctx, step)
	reg.EmitHookConflict(ctx, run.ID, "tok-1")

	want := []string{
		"run_created", "run_started", "run_completed", "run_failed",
		"run_cancelled", "step_completed", "step_failed", "hook_conflict:tok-1",
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i, c := range rec.calls {
		if c != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, c, want[i])
		}
	}
}

func TestRegistryPartialImplementation(t *testing.T) {
	t.Parallel()

	e := &runOnly{}
	reg := NewRegistry(nil)
	reg.Register(e)

	ctx := context.Background()
	run := &workflow.Run{ID: id.NewRunID()}

	reg.EmitRunCreated(ctx, run)
	reg.EmitRunCompleted(ctx, run)
	reg.EmitStepFailed(ctx, &workflow.Step{ID: "s", RunID: run.ID})

	if e.calls != 1 {
		t.Fatalf("calls = %d, want 1", e.calls)
	}
}

func TestRegistryHookErrorsDoNotPropagate(t *testing.T) {
	t.Parallel()

	failing := &recorder{name: "failing", err: errors.New("boom")}
	healthy := &recorder{name: "healthy"}
	reg := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(failing)
	reg.Register(healthy)

	reg.EmitRunCreated(context.Background(), &workflow.Run{ID: id.NewRunID()})

	// Both extensions still fire despite the first one erroring.
	if len(failing.calls) != 1 || len(healthy.calls) != 1 {
		t.Fatalf("failing=%v healthy=%v, want one call each", failing.calls, healthy.calls)
	}
}

func TestRegistryExtensions(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(&recorder{name: "a"})
	reg.Register(&runOnly{})

	exts := reg.Extensions()
	if len(exts) != 2 {
		t.Fatalf("len(Extensions()) = %d, want 2", len(exts))
	}
	if exts[0].Name() != "a" || exts[1].Name() != "run-only" {
		t.Errorf("extension order = [%s, %s]", exts[0].Name(), exts[1].Name())
	}
}
