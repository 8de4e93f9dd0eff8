package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/scope"
	"github.com/mizzle-dev/worlds/workflow"
)

// createRun handles run_created: mints or honors the run ID, builds the new
// run in pending, and persists run + event atomically under the run's lock.
func (e *Engine) createRun(ctx context.Context, runID id.RunID, req workflow.EventRequest) (*Result, error) {
	newID := runID
	if newID.IsNil() && req.RunID != "" {
		parsed, err := id.ParseRunID(req.RunID)
		if err != nil {
			return nil, worlds.Errorf(worlds.CodeBadRequest, "invalid run id %q", req.RunID)
		}
		newID = parsed
	}
	if newID.IsNil() {
		newID = id.NewRunID()
	}

	var data workflow.RunCreatedData
	if err := unmarshalData(req.Data, &data); err != nil {
		return nil, err
	}
	if data.WorkflowName == "" {
		return nil, worlds.NewError(worlds.CodeBadRequest, "workflow_name is required for run_created")
	}

	var res *Result
	err := e.store.WithRunLock(ctx, newID, func(ctx context.Context) error {
		now := e.clock()
		run := &workflow.Run{
			Entity:           worlds.NewEntityAt(now),
			ID:               newID,
			WorkflowName:     data.WorkflowName,
			DeploymentID:     data.DeploymentID,
			Status:           workflow.RunStatusPending,
			SpecVersion:      specVersion(req.SpecVersion),
			Input:            data.Input,
			ExecutionContext: data.ExecutionContext,
		}
		evt := e.newEvent(newID, req, now)

		if err := e.store.ApplyChange(ctx, &workflow.ChangeSet{Event: evt, CreateRun: run}); err != nil {
			if errors.Is(err, worlds.ErrRunExists) {
				return worlds.WrapError(worlds.CodeConflict, err, fmt.Sprintf("run %s already exists", newID))
			}
			return err
		}
		res = &Result{Event: evt, Run: run}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// applyLocked runs the full validation pipeline and transition for every
// event type except run_created. The caller holds the run's lock.
func (e *Engine) applyLocked(ctx context.Context, runID id.RunID, req workflow.EventRequest) (*Result, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, worlds.ErrRunNotFound) {
			return nil, worlds.WrapError(worlds.CodeNotFound, err, fmt.Sprintf("run %s not found", runID))
		}
		return nil, err
	}

	// Future-version guard, before anything else: this engine must not
	// apply its rules to a run written under a newer protocol.
	if run.SpecVersion > workflow.SpecVersionCurrent {
		return nil, worlds.Errorf(worlds.CodeRunNotSupported,
			"run %s uses spec version %d, newer than supported %d",
			run.ID, run.SpecVersion, workflow.SpecVersionCurrent)
	}

	if run.Legacy() {
		return e.applyLegacy(ctx, run, req)
	}

	// Terminal-state guard. The one exception is the idempotent re-cancel,
	// which falls through to the transition switch.
	if run.Status.Terminal() {
		reCancel := req.Type == workflow.EventRunCancelled && run.Status == workflow.RunStatusCancelled
		switch {
		case reCancel:
		case req.Type.RunLifecycle():
			return nil, worlds.Errorf(worlds.CodeConflict,
				"run %s is %s and accepts no further lifecycle events", run.ID, run.Status)
		case req.Type == workflow.EventStepCreated || req.Type == workflow.EventHookCreated:
			return nil, worlds.Errorf(worlds.CodeConflict,
				"cannot create entities on %s run %s", run.Status, run.ID)
		}
	}

	// Step-lifecycle validation.
	var step *workflow.Step
	if req.Type.StepLifecycle() {
		if req.CorrelationID == "" {
			return nil, worlds.Errorf(worlds.CodeBadRequest, "correlation_id is required for %s", req.Type)
		}
		step, err = e.store.GetStep(ctx, run.ID, req.CorrelationID)
		if err != nil {
			if errors.Is(err, worlds.ErrStepNotFound) {
				return nil, worlds.WrapError(worlds.CodeNotFound, err,
					fmt.Sprintf("step %s not found in run %s", req.CorrelationID, run.ID))
			}
			return nil, err
		}
		if step.Status.Terminal() {
			return nil, worlds.Errorf(worlds.CodeConflict, "step %s is %s", step.ID, step.Status)
		}
		// The run may have terminated mid-flight while the step was still
		// pending; only an attempt already running may report its outcome.
		if run.Status.Terminal() && step.Status != workflow.StepStatusRunning {
			return nil, worlds.Errorf(worlds.CodeGone,
				"run %s terminated while step %s was %s", run.ID, step.ID, step.Status)
		}
		if req.Type == workflow.EventStepStarted && step.RetryAfter != nil && step.RetryAfter.After(e.clock()) {
			return nil, worlds.TooEarly(
				fmt.Sprintf("step %s may not start before %s", step.ID, step.RetryAfter.Format(time.RFC3339)),
				*step.RetryAfter)
		}
	}

	// Hook existence check.
	var hook *workflow.Hook
	if req.Type == workflow.EventHookReceived || req.Type == workflow.EventHookDisposed {
		if req.CorrelationID == "" {
			return nil, worlds.Errorf(worlds.CodeBadRequest, "correlation_id is required for %s", req.Type)
		}
		hookID, perr := id.ParseHookID(req.CorrelationID)
		if perr != nil {
			return nil, worlds.Errorf(worlds.CodeBadRequest, "invalid hook id %q", req.CorrelationID)
		}
		hook, err = e.store.GetHook(ctx, hookID)
		if err != nil {
			if errors.Is(err, worlds.ErrHookNotFound) {
				return nil, worlds.WrapError(worlds.CodeNotFound, err, fmt.Sprintf("hook %s not found", hookID))
			}
			return nil, err
		}
	}

	if req.Type == workflow.EventHookCreated {
		return e.createHook(ctx, run, req)
	}

	return e.transition(ctx, run, step, hook, req)
}

// transition applies the type-specific mutation and persists it. The switch
// is exhaustive over the event types that reach it; a new type must be
// handled here explicitly.
func (e *Engine) transition(ctx context.Context, run *workflow.Run, step *workflow.Step, hook *workflow.Hook, req workflow.EventRequest) (*Result, error) {
	now := e.clock()
	evt := e.newEvent(run.ID, req, now)
	change := &workflow.ChangeSet{Event: evt}
	res := &Result{Event: evt}

	switch req.Type {
	case workflow.EventRunStarted:
		run.Status = workflow.RunStatusRunning
		if run.StartedAt == nil {
			run.StartedAt = &now
		}
		run.UpdatedAt = now
		change.UpdateRun = run
		res.Run = run

	case workflow.EventRunCompleted:
		var data workflow.RunCompletedData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		run.Output = data.Output
		e.terminate(run, workflow.RunStatusCompleted, now, change)
		res.Run = run

	case workflow.EventRunFailed:
		var data workflow.RunFailedData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		run.Error = data.Error
		e.terminate(run, workflow.RunStatusFailed, now, change)
		res.Run = run

	case workflow.EventRunCancelled:
		if run.Status == workflow.RunStatusCancelled {
			// Idempotent re-cancel: append the event, return the run
			// unchanged, keep the original completedAt.
			res.Run = run
			res.reCancel = true
		} else {
			e.terminate(run, workflow.RunStatusCancelled, now, change)
			res.Run = run
		}

	case workflow.EventStepCreated:
		if req.CorrelationID == "" {
			return nil, worlds.NewError(worlds.CodeBadRequest, "correlation_id (step id) is required for step_created")
		}
		var data workflow.StepCreatedData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		name := data.Name
		if name == "" {
			name = req.CorrelationID
		}
		newStep := &workflow.Step{
			Entity: worlds.NewEntityAt(now),
			RunID:  run.ID,
			ID:     req.CorrelationID,
			Name:   name,
			Status: workflow.StepStatusPending,
			Input:  data.Input,
		}
		change.CreateStep = newStep
		res.Step = newStep

	case workflow.EventStepStarted:
		step.Status = workflow.StepStatusRunning
		step.Attempt++
		step.RetryAfter = nil
		if step.StartedAt == nil {
			step.StartedAt = &now
		}
		step.UpdatedAt = now
		change.UpdateStep = step
		res.Step = step

	case workflow.EventStepCompleted:
		var data workflow.StepCompletedData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		step.Status = workflow.StepStatusCompleted
		step.Output = data.Output
		step.CompletedAt = &now
		step.UpdatedAt = now
		change.UpdateStep = step
		res.Step = step

	case workflow.EventStepFailed:
		var data workflow.StepFailedData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		step.Status = workflow.StepStatusFailed
		step.Error = data.Error
		step.CompletedAt = &now
		step.UpdatedAt = now
		change.UpdateStep = step
		res.Step = step

	case workflow.EventStepRetrying:
		var data workflow.StepRetryingData
		if err := unmarshalData(req.Data, &data); err != nil {
			return nil, err
		}
		step.Status = workflow.StepStatusPending
		step.Error = data.Error
		if !data.RetryAfter.IsZero() {
			retryAt := data.RetryAfter
			step.RetryAfter = &retryAt
		}
		step.UpdatedAt = now
		change.UpdateStep = step
		res.Step = step

	case workflow.EventHookReceived:
		// Pure append; the hook itself is unchanged.
		res.Hook = hook

	case workflow.EventHookDisposed:
		change.DeleteHook = hook.ID
		res.Hook = hook

	case workflow.EventWaitCompleted:
		// Durable timer elapsed; nothing to mutate, just the append.

	default:
		return nil, worlds.Errorf(worlds.CodeBadRequest, "unknown event type %q", req.Type)
	}

	if err := e.store.ApplyChange(ctx, change); err != nil {
		if errors.Is(err, worlds.ErrStepExists) {
			return nil, worlds.WrapError(worlds.CodeConflict, err,
				fmt.Sprintf("step %s already exists in run %s", req.CorrelationID, run.ID))
		}
		return nil, err
	}
	return res, nil
}

// createHook handles hook_created: it claims the token atomically with the
// hook insert. Losing the claim is not a hard failure; a hook_conflict
// event is appended instead and the result carries no hook.
func (e *Engine) createHook(ctx context.Context, run *workflow.Run, req workflow.EventRequest) (*Result, error) {
	var data workflow.HookCreatedData
	if err := unmarshalData(req.Data, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, worlds.NewError(worlds.CodeBadRequest, "token is required for hook_created")
	}

	// Honor a caller-supplied hook ID when the correlation ID parses as
	// one; otherwise mint. The appended event always carries the hook ID.
	hookID := id.NewHookID()
	if req.CorrelationID != "" {
		if parsed, err := id.ParseHookID(req.CorrelationID); err == nil {
			hookID = parsed
		}
	}

	// Identity defaults come from the caller's context.
	ident := scope.Capture(ctx)
	if data.OwnerID == "" {
		data.OwnerID = ident.OwnerID
	}
	if data.ProjectID == "" {
		data.ProjectID = ident.ProjectID
	}
	if data.Environment == "" {
		data.Environment = ident.Environment
	}

	now := e.clock()
	hook := &workflow.Hook{
		RunID:       run.ID,
		ID:          hookID,
		Token:       data.Token,
		Metadata:    data.Metadata,
		OwnerID:     data.OwnerID,
		ProjectID:   data.ProjectID,
		Environment: data.Environment,
		CreatedAt:   now,
	}
	evt := e.newEvent(run.ID, req, now)
	evt.CorrelationID = hookID.String()

	err := e.store.ApplyChange(ctx, &workflow.ChangeSet{Event: evt, CreateHook: hook})
	if err == nil {
		return &Result{Event: evt, Hook: hook}, nil
	}
	if !errors.Is(err, worlds.ErrHookTokenTaken) {
		return nil, err
	}

	// Token already claimed by a live hook. Soft-fail: record the conflict
	// as an event so the caller can react without a hard error.
	conflictData, merr := json.Marshal(workflow.HookConflictData{Token: data.Token})
	if merr != nil {
		return nil, fmt.Errorf("worlds/engine: marshal hook_conflict data: %w", merr)
	}
	conflict := &workflow.Event{
		ID:            id.NewEventID(),
		RunID:         run.ID,
		Type:          workflow.EventHookConflict,
		CorrelationID: req.CorrelationID,
		Data:          conflictData,
		SpecVersion:   specVersion(req.SpecVersion),
		CreatedAt:     e.clock(),
	}
	if aerr := e.store.ApplyChange(ctx, &workflow.ChangeSet{Event: conflict}); aerr != nil {
		return nil, aerr
	}
	e.logger.Warn("hook token conflict",
		slog.String("run_id", run.ID.String()),
		slog.String("token", data.Token),
	)
	return &Result{Event: conflict}, nil
}

// terminate moves the run into a terminal status, stamps completedAt once,
// and releases every hook the run owns so their tokens become reusable.
func (e *Engine) terminate(run *workflow.Run, status workflow.RunStatus, now time.Time, change *workflow.ChangeSet) {
	run.Status = status
	if run.CompletedAt == nil {
		run.CompletedAt = &now
	}
	run.UpdatedAt = now
	change.UpdateRun = run
	change.ReleaseRunHooks = run.ID
}

// newEvent builds the immutable log record for a request.
func (e *Engine) newEvent(runID id.RunID, req workflow.EventRequest, now time.Time) *workflow.Event {
	return &workflow.Event{
		ID:            id.NewEventID(),
		RunID:         runID,
		Type:          req.Type,
		CorrelationID: req.CorrelationID,
		Data:          req.Data,
		SpecVersion:   specVersion(req.SpecVersion),
		CreatedAt:     now,
	}
}

// specVersion defaults an unset request version to the current protocol.
func specVersion(v int) int {
	if v == 0 {
		return workflow.SpecVersionCurrent
	}
	return v
}

// unmarshalData decodes an event payload, mapping malformed JSON to a
// BadRequest so callers never see a bare encoding error.
func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return worlds.WrapError(worlds.CodeBadRequest, err, "invalid event data")
	}
	return nil
}
