package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetHook retrieves a hook by ID.
func (s *Store) GetHook(ctx context.Context, hookID id.HookID) (*workflow.Hook, error) {
	vals, err := s.client.HGetAll(ctx, hookKey(hookID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: get hook: %w", err)
	}
	if len(vals) == 0 {
		return nil, worlds.ErrHookNotFound
	}
	return mapToHook(vals)
}

// GetHookByToken retrieves the live hook holding the token via the token
// claim key.
func (s *Store) GetHookByToken(ctx context.Context, token string) (*workflow.Hook, error) {
	hID, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/redis: get hook by token: %w", err)
	}
	hookID, err := id.ParseHookID(hID)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: parse claimed hook id: %w", err)
	}
	return s.GetHook(ctx, hookID)
}

// ListHooks returns hooks ordered by hook ID. A Nil runID lists all hooks;
// otherwise only the run's hooks are returned.
func (s *Store) ListHooks(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Hook, error) {
	ids, err := s.rangeLex(ctx, hookIDsKey, opts.Cursor, opts.Order, 0)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: list hooks: %w", err)
	}

	var hooks []*workflow.Hook
	for _, hID := range ids {
		vals, getErr := s.client.HGetAll(ctx, hookKey(hID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		h, convErr := mapToHook(vals)
		if convErr != nil {
			continue
		}
		if !runID.IsNil() && h.RunID != runID {
			continue
		}
		hooks = append(hooks, h)
		if opts.Limit > 0 && len(hooks) >= opts.Limit {
			break
		}
	}
	return hooks, nil
}
