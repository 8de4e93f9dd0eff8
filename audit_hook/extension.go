package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mizzle-dev/worlds/ext"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.RunCreated    = (*Extension)(nil)
	_ ext.RunStarted    = (*Extension)(nil)
	_ ext.RunCompleted  = (*Extension)(nil)
	_ ext.RunFailed     = (*Extension)(nil)
	_ ext.RunCancelled  = (*Extension)(nil)
	_ ext.StepCompleted = (*Extension)(nil)
	_ ext.StepFailed    = (*Extension)(nil)
	_ ext.HookConflict  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
// Callers provide a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
//
// Example bridging to Chronicle:
//
//	audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    b := chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome)
//	    for k, v := range evt.Metadata {
//	        b = b.Meta(k, v)
//	    }
//	    return b.Record()
//	})
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants (mirror chronicle/audit).
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants (mirror chronicle/audit).
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Worlds lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Run lifecycle hooks ─────────────────────────────

// OnRunCreated implements ext.RunCreated.
func (e *Extension) OnRunCreated(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionRunCreated, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.ID.String(), CategoryRun, nil,
		"workflow_name", r.WorkflowName,
		"spec_version", r.SpecVersion,
	)
}

// OnRunStarted implements ext.RunStarted.
func (e *Extension) OnRunStarted(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionRunStarted, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.ID.String(), CategoryRun, nil,
		"workflow_name", r.WorkflowName,
	)
}

// OnRunCompleted implements ext.RunCompleted.
func (e *Extension) OnRunCompleted(ctx context.Context, r *workflow.Run) error {
	meta := []any{"workflow_name", r.WorkflowName}
	if r.StartedAt != nil && r.CompletedAt != nil {
		meta = append(meta, "elapsed_ms", r.CompletedAt.Sub(*r.StartedAt).Milliseconds())
	}
	return e.record(ctx, ActionRunCompleted, SeverityInfo, OutcomeSuccess,
		ResourceRun, r.ID.String(), CategoryRun, nil, meta...)
}

// OnRunFailed implements ext.RunFailed.
func (e *Extension) OnRunFailed(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionRunFailed, SeverityCritical, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryRun, errorOf(r.Error),
		"workflow_name", r.WorkflowName,
	)
}

// OnRunCancelled implements ext.RunCancelled.
func (e *Extension) OnRunCancelled(ctx context.Context, r *workflow.Run) error {
	return e.record(ctx, ActionRunCancelled, SeverityWarning, OutcomeFailure,
		ResourceRun, r.ID.String(), CategoryRun, nil,
		"workflow_name", r.WorkflowName,
	)
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements ext.StepCompleted.
func (e *Extension) OnStepCompleted(ctx context.Context, s *workflow.Step) error {
	meta := []any{
		"run_id", s.RunID.String(),
		"step_name", s.Name,
		"attempt", s.Attempt,
	}
	if s.StartedAt != nil && s.CompletedAt != nil {
		meta = append(meta, "elapsed_ms", s.CompletedAt.Sub(*s.StartedAt).Milliseconds())
	}
	return e.record(ctx, ActionStepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceStep, s.ID, CategoryStep, nil, meta...)
}

// OnStepFailed implements ext.StepFailed.
func (e *Extension) OnStepFailed(ctx context.Context, s *workflow.Step) error {
	return e.record(ctx, ActionStepFailed, SeverityCritical, OutcomeFailure,
		ResourceStep, s.ID, CategoryStep, errorOf(s.Error),
		"run_id", s.RunID.String(),
		"step_name", s.Name,
		"attempt", s.Attempt,
	)
}

// ── Hook lifecycle hooks ────────────────────────────

// OnHookConflict implements ext.HookConflict.
func (e *Extension) OnHookConflict(ctx context.Context, runID id.RunID, token string) error {
	return e.record(ctx, ActionHookConflict, SeverityWarning, OutcomeFailure,
		ResourceHook, token, CategoryHook, nil,
		"run_id", runID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// errorOf turns a persisted error string back into an error for metadata.
func errorOf(msg string) error {
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%s", msg)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
