package engine

import (
	"context"
	"log/slog"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/workflow"
)

// applyLegacy handles events for runs created under a pre-event-sourcing
// protocol version. Legacy runs accept only cancellation and the two pure
// append types; everything else is rejected so legacy behavior cannot drift
// as the main engine's rules evolve. The caller holds the run's lock.
func (e *Engine) applyLegacy(ctx context.Context, run *workflow.Run, req workflow.EventRequest) (*Result, error) {
	switch req.Type {
	case workflow.EventRunCancelled:
		now := e.clock()
		evt := e.newEvent(run.ID, req, now)
		change := &workflow.ChangeSet{Event: evt}
		res := &Result{Event: evt, Run: run}

		if run.Status == workflow.RunStatusCancelled {
			res.reCancel = true
		} else {
			e.terminate(run, workflow.RunStatusCancelled, now, change)
		}
		if err := e.store.ApplyChange(ctx, change); err != nil {
			return nil, err
		}
		e.logger.Debug("cancelled legacy run",
			slog.String("run_id", run.ID.String()),
			slog.Int("spec_version", run.SpecVersion),
		)
		return res, nil

	case workflow.EventWaitCompleted, workflow.EventHookReceived:
		// Appended as-is; legacy runs get no entity side effects.
		evt := e.newEvent(run.ID, req, e.clock())
		if err := e.store.ApplyChange(ctx, &workflow.ChangeSet{Event: evt}); err != nil {
			return nil, err
		}
		return &Result{Event: evt}, nil

	default:
		return nil, worlds.Errorf(worlds.CodeConflict,
			"event %s not supported for legacy runs", req.Type)
	}
}
