// Package ext defines the extension system for Worlds.
// Extensions are notified after the engine successfully applies a lifecycle
// event and can react to it — logging, metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about. Hooks observe already-committed state;
// returning an error never rolls anything back, it is only logged.
package ext

import (
	"context"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// RunCreated is called after a run is created.
type RunCreated interface {
	OnRunCreated(ctx context.Context, r *workflow.Run) error
}

// RunStarted is called after a run transitions to running.
type RunStarted interface {
	OnRunStarted(ctx context.Context, r *workflow.Run) error
}

// RunCompleted is called after a run completes successfully.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, r *workflow.Run) error
}

// RunFailed is called after a run fails terminally.
type RunFailed interface {
	OnRunFailed(ctx context.Context, r *workflow.Run) error
}

// RunCancelled is called after a run is cancelled. Idempotent re-cancels
// do not re-fire it.
type RunCancelled interface {
	OnRunCancelled(ctx context.Context, r *workflow.Run) error
}

// ──────────────────────────────────────────────────
// Step lifecycle hooks
// ──────────────────────────────────────────────────

// StepCompleted is called after a step completes successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, s *workflow.Step) error
}

// StepFailed is called after a step fails terminally.
type StepFailed interface {
	OnStepFailed(ctx context.Context, s *workflow.Step) error
}

// ──────────────────────────────────────────────────
// Hook lifecycle hooks
// ──────────────────────────────────────────────────

// HookConflict is called when hook_created loses a race over a token and the
// engine emits a hook_conflict event instead of creating the hook.
type HookConflict interface {
	OnHookConflict(ctx context.Context, runID id.RunID, token string) error
}
