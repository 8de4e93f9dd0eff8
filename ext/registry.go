package ext

import (
	"context"
	"log/slog"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type runCreatedEntry struct {
	name string
	hook RunCreated
}

type runStartedEntry struct {
	name string
	hook RunStarted
}

type runCompletedEntry struct {
	name string
	hook RunCompleted
}

type runFailedEntry struct {
	name string
	hook RunFailed
}

type runCancelledEntry struct {
	name string
	hook RunCancelled
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepFailedEntry struct {
	name string
	hook StepFailed
}

type hookConflictEntry struct {
	name string
	hook HookConflict
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	runCreated    []runCreatedEntry
	runStarted    []runStartedEntry
	runCompleted  []runCompletedEntry
	runFailed     []runFailedEntry
	runCancelled  []runCancelledEntry
	stepCompleted []stepCompletedEntry
	stepFailed    []stepFailedEntry
	hookConflict  []hookConflictEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RunCreated); ok {
		r.runCreated = append(r.runCreated, runCreatedEntry{name, h})
	}
	if h, ok := e.(RunStarted); ok {
		r.runStarted = append(r.runStarted, runStartedEntry{name, h})
	}
	if h, ok := e.(RunCompleted); ok {
		r.runCompleted = append(r.runCompleted, runCompletedEntry{name, h})
	}
	if h, ok := e.(RunFailed); ok {
		r.runFailed = append(r.runFailed, runFailedEntry{name, h})
	}
	if h, ok := e.(RunCancelled); ok {
		r.runCancelled = append(r.runCancelled, runCancelledEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepFailed); ok {
		r.stepFailed = append(r.stepFailed, stepFailedEntry{name, h})
	}
	if h, ok := e.(HookConflict); ok {
		r.hookConflict = append(r.hookConflict, hookConflictEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Run event emitters
// ──────────────────────────────────────────────────

// EmitRunCreated notifies all extensions that implement RunCreated.
func (r *Registry) EmitRunCreated(ctx context.Context, run *workflow.Run) {
	for _, e := range r.runCreated {
		if err := e.hook.OnRunCreated(ctx, run); err != nil {
			r.logHookError("OnRunCreated", e.name, err)
		}
	}
}

// EmitRunStarted notifies all extensions that implement RunStarted.
func (r *Registry) EmitRunStarted(ctx context.Context, run *workflow.Run) {
	for _, e := range r.runStarted {
		if err := e.hook.OnRunStarted(ctx, run); err != nil {
			r.logHookError("OnRunStarted", e.name, err)
		}
	}
}

// EmitRunCompleted notifies all extensions that implement RunCompleted.
func (r *Registry) EmitRunCompleted(ctx context.Context, run *workflow.Run) {
	for _, e := range r.runCompleted {
		if err := e.hook.OnRunCompleted(ctx, run); err != nil {
			r.logHookError("OnRunCompleted", e.name, err)
		}
	}
}

// EmitRunFailed notifies all extensions that implement RunFailed.
func (r *Registry) EmitRunFailed(ctx context.Context, run *workflow.Run) {
	for _, e := range r.runFailed {
		if err := e.hook.OnRunFailed(ctx, run); err != nil {
			r.logHookError("OnRunFailed", e.name, err)
		}
	}
}

// EmitRunCancelled notifies all extensions that implement RunCancelled.
func (r *Registry) EmitRunCancelled(ctx context.Context, run *workflow.Run) {
	for _, e := range r.runCancelled {
		if err := e.hook.OnRunCancelled(ctx, run); err != nil {
			r.logHookError("OnRunCancelled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step and hook event emitters
// ──────────────────────────────────────────────────

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, step *workflow.Step) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, step); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// EmitStepFailed notifies all extensions that implement StepFailed.
func (r *Registry) EmitStepFailed(ctx context.Context, step *workflow.Step) {
	for _, e := range r.stepFailed {
		if err := e.hook.OnStepFailed(ctx, step); err != nil {
			r.logHookError("OnStepFailed", e.name, err)
		}
	}
}

// EmitHookConflict notifies all extensions that implement HookConflict.
func (r *Registry) EmitHookConflict(ctx context.Context, runID id.RunID, token string) {
	for _, e := range r.hookConflict {
		if err := e.hook.OnHookConflict(ctx, runID, token); err != nil {
			r.logHookError("OnHookConflict", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Extension errors never propagate to the
// engine caller.
func (r *Registry) logHookError(hook, extension string, err error) {
	r.logger.Error("extension hook failed",
		slog.String("hook", hook),
		slog.String("extension", extension),
		slog.String("error", err.Error()),
	)
}
