package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetHook retrieves a hook by ID.
func (s *Store) GetHook(ctx context.Context, hookID id.HookID) (*workflow.Hook, error) {
	model := new(hookModel)
	err := s.db.NewSelect().Model(model).
		Where("id = ?", hookID.String()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/bun: get hook: %w", err)
	}
	return fromHookModel(model)
}

// GetHookByToken retrieves the live hook holding the token.
func (s *Store) GetHookByToken(ctx context.Context, token string) (*workflow.Hook, error) {
	model := new(hookModel)
	err := s.db.NewSelect().Model(model).
		Where("token = ?", token).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/bun: get hook by token: %w", err)
	}
	return fromHookModel(model)
}

// ListHooks returns hooks ordered by hook ID. A Nil runID lists all hooks.
func (s *Store) ListHooks(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Hook, error) {
	var models []hookModel
	q := s.db.NewSelect().Model(&models)
	if !runID.IsNil() {
		q = q.Where("run_id = ?", runID.String())
	}
	q = applyListOpts(q, "id", opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("worlds/bun: list hooks: %w", err)
	}

	hooks := make([]*workflow.Hook, 0, len(models))
	for i := range models {
		h, err := fromHookModel(&models[i])
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}
