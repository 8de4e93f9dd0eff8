package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Read paths. Queries never mutate state and take no per-run lock; they see
// whatever state the last committed change set produced.
//
// All list operations are cursor-paginated: the store is asked for one row
// beyond the limit to compute HasMore, and the returned cursor is the last
// item's natural sort key. Default order is descending (newest first) for
// runs, steps, and hooks, and ascending for events, because ascending order
// is what replay needs.

// GetRun retrieves a run by ID.
func (e *Engine) GetRun(ctx context.Context, runID id.RunID, opts workflow.GetOpts) (*workflow.Run, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, worlds.ErrRunNotFound) {
			return nil, worlds.WrapError(worlds.CodeNotFound, err, fmt.Sprintf("run %s not found", runID))
		}
		return nil, err
	}
	if opts.Resolve.None() {
		return run.Redacted(), nil
	}
	return run, nil
}

// ListRuns returns a page of runs matching the filter, newest first by
// default.
func (e *Engine) ListRuns(ctx context.Context, filter workflow.RunFilter, opts workflow.ListOpts) (*workflow.Page[*workflow.Run], error) {
	return listPage(ctx, opts, workflow.SortDesc,
		func(ctx context.Context, o workflow.ListOpts) ([]*workflow.Run, error) {
			return e.store.ListRuns(ctx, filter, o)
		},
		func(r *workflow.Run) string { return r.ID.String() },
		func(r *workflow.Run) *workflow.Run { return r.Redacted() },
	)
}

// GetStep retrieves a step by run and step ID.
func (e *Engine) GetStep(ctx context.Context, runID id.RunID, stepID string, opts workflow.GetOpts) (*workflow.Step, error) {
	step, err := e.store.GetStep(ctx, runID, stepID)
	if err != nil {
		if errors.Is(err, worlds.ErrStepNotFound) {
			return nil, worlds.WrapError(worlds.CodeNotFound, err,
				fmt.Sprintf("step %s not found in run %s", stepID, runID))
		}
		return nil, err
	}
	if opts.Resolve.None() {
		return step.Redacted(), nil
	}
	return step, nil
}

// ListSteps returns a page of the run's steps.
func (e *Engine) ListSteps(ctx context.Context, runID id.RunID, opts workflow.ListOpts) (*workflow.Page[*workflow.Step], error) {
	return listPage(ctx, opts, workflow.SortDesc,
		func(ctx context.Context, o workflow.ListOpts) ([]*workflow.Step, error) {
			return e.store.ListSteps(ctx, runID, o)
		},
		func(s *workflow.Step) string { return s.ID },
		func(s *workflow.Step) *workflow.Step { return s.Redacted() },
	)
}

// ListEvents returns a page of the run's events, oldest first by default.
func (e *Engine) ListEvents(ctx context.Context, runID id.RunID, opts workflow.ListOpts) (*workflow.Page[*workflow.Event], error) {
	return listPage(ctx, opts, workflow.SortAsc,
		func(ctx context.Context, o workflow.ListOpts) ([]*workflow.Event, error) {
			return e.store.ListEvents(ctx, runID, o)
		},
		func(ev *workflow.Event) string { return ev.ID.String() },
		func(ev *workflow.Event) *workflow.Event { return ev.Redacted() },
	)
}

// ListEventsByCorrelationID returns a page of events across runs whose
// correlation ID matches, oldest first by default.
func (e *Engine) ListEventsByCorrelationID(ctx context.Context, correlationID string, opts workflow.ListOpts) (*workflow.Page[*workflow.Event], error) {
	if correlationID == "" {
		return nil, worlds.NewError(worlds.CodeBadRequest, "correlation_id is required")
	}
	return listPage(ctx, opts, workflow.SortAsc,
		func(ctx context.Context, o workflow.ListOpts) ([]*workflow.Event, error) {
			return e.store.ListEventsByCorrelationID(ctx, correlationID, o)
		},
		func(ev *workflow.Event) string { return ev.ID.String() },
		func(ev *workflow.Event) *workflow.Event { return ev.Redacted() },
	)
}

// GetHook retrieves a hook by ID.
func (e *Engine) GetHook(ctx context.Context, hookID id.HookID, opts workflow.GetOpts) (*workflow.Hook, error) {
	hook, err := e.store.GetHook(ctx, hookID)
	if err != nil {
		if errors.Is(err, worlds.ErrHookNotFound) {
			return nil, worlds.WrapError(worlds.CodeNotFound, err, fmt.Sprintf("hook %s not found", hookID))
		}
		return nil, err
	}
	if opts.Resolve.None() {
		return hook.Redacted(), nil
	}
	return hook, nil
}

// GetHookByToken retrieves the live hook holding the token.
func (e *Engine) GetHookByToken(ctx context.Context, token string, opts workflow.GetOpts) (*workflow.Hook, error) {
	if token == "" {
		return nil, worlds.NewError(worlds.CodeBadRequest, "token is required")
	}
	hook, err := e.store.GetHookByToken(ctx, token)
	if err != nil {
		if errors.Is(err, worlds.ErrHookNotFound) {
			return nil, worlds.WrapError(worlds.CodeNotFound, err, "no hook holds this token")
		}
		return nil, err
	}
	if opts.Resolve.None() {
		return hook.Redacted(), nil
	}
	return hook, nil
}

// ListHooks returns a page of hooks. Pass id.Nil to list across all runs.
func (e *Engine) ListHooks(ctx context.Context, runID id.RunID, opts workflow.ListOpts) (*workflow.Page[*workflow.Hook], error) {
	return listPage(ctx, opts, workflow.SortDesc,
		func(ctx context.Context, o workflow.ListOpts) ([]*workflow.Hook, error) {
			return e.store.ListHooks(ctx, runID, o)
		},
		func(h *workflow.Hook) string { return h.ID.String() },
		func(h *workflow.Hook) *workflow.Hook { return h.Redacted() },
	)
}

// listPage implements the limit+1 pagination dance shared by every list
// operation.
func listPage[T any](
	ctx context.Context,
	opts workflow.ListOpts,
	defaultOrder workflow.SortOrder,
	fetch func(context.Context, workflow.ListOpts) ([]T, error),
	key func(T) string,
	redact func(T) T,
) (*workflow.Page[T], error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	order := opts.Order
	if order == "" {
		order = defaultOrder
	}

	items, err := fetch(ctx, workflow.ListOpts{
		Limit:  limit + 1,
		Cursor: opts.Cursor,
		Order:  order,
	})
	if err != nil {
		return nil, err
	}

	page := &workflow.Page[T]{}
	if len(items) > limit {
		items = items[:limit]
		page.HasMore = true
	}
	if opts.Resolve.None() {
		for i, item := range items {
			items[i] = redact(item)
		}
	}
	page.Items = items
	if len(items) > 0 {
		page.Cursor = key(items[len(items)-1])
	}
	return page, nil
}
