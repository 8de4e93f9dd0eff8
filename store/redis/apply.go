package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/workflow"
)

// ApplyChange atomically persists the change set. Uniqueness checks run
// first, before any write: a duplicate run or step fails on EXISTS, and the
// hook token is claimed with SET NX — the one atomic cross-run operation.
// All writes then go through a single MULTI/EXEC pipeline. Per-run
// serialization is the caller's job via WithRunLock.
func (s *Store) ApplyChange(ctx context.Context, change *workflow.ChangeSet) error {
	if r := change.CreateRun; r != nil {
		exists, err := s.client.Exists(ctx, runKey(r.ID.String())).Result()
		if err != nil {
			return fmt.Errorf("worlds/redis: create run exists: %w", err)
		}
		if exists > 0 {
			return worlds.ErrRunExists
		}
	}
	if st := change.CreateStep; st != nil {
		exists, err := s.client.Exists(ctx, stepKey(st.RunID.String(), st.ID)).Result()
		if err != nil {
			return fmt.Errorf("worlds/redis: create step exists: %w", err)
		}
		if exists > 0 {
			return worlds.ErrStepExists
		}
	}

	var claimedToken string
	if h := change.CreateHook; h != nil {
		ok, err := s.client.SetNX(ctx, tokenKey(h.Token), h.ID.String(), 0).Result()
		if err != nil {
			return fmt.Errorf("worlds/redis: claim hook token: %w", err)
		}
		if !ok {
			return worlds.ErrHookTokenTaken
		}
		claimedToken = h.Token
	}

	// Resolve hooks to delete before the pipeline; their tokens must be
	// released alongside the hash removal.
	doomed, err := s.doomedHooks(ctx, change)
	if err != nil {
		s.rollbackClaim(ctx, claimedToken)
		return err
	}

	pipe := s.client.TxPipeline()

	if r := change.CreateRun; r != nil {
		rID := r.ID.String()
		pipe.HSet(ctx, runKey(rID), runToMap(r))
		pipe.ZAdd(ctx, runIDsKey, goredis.Z{Member: rID})
	}
	if r := change.UpdateRun; r != nil {
		pipe.HSet(ctx, runKey(r.ID.String()), runToMap(r))
	}
	if st := change.CreateStep; st != nil {
		rID := st.RunID.String()
		pipe.HSet(ctx, stepKey(rID, st.ID), stepToMap(st))
		pipe.ZAdd(ctx, stepIDsKey(rID), goredis.Z{Member: st.ID})
	}
	if st := change.UpdateStep; st != nil {
		pipe.HSet(ctx, stepKey(st.RunID.String(), st.ID), stepToMap(st))
	}
	if h := change.CreateHook; h != nil {
		hID := h.ID.String()
		pipe.HSet(ctx, hookKey(hID), hookToMap(h))
		pipe.ZAdd(ctx, hookIDsKey, goredis.Z{Member: hID})
		pipe.SAdd(ctx, runHooksKey(h.RunID.String()), hID)
	}
	for _, h := range doomed {
		hID := h.ID.String()
		pipe.Del(ctx, hookKey(hID))
		pipe.ZRem(ctx, hookIDsKey, hID)
		pipe.SRem(ctx, runHooksKey(h.RunID.String()), hID)
		pipe.Del(ctx, tokenKey(h.Token))
	}
	if e := change.Event; e != nil {
		eID := e.ID.String()
		pipe.HSet(ctx, eventKey(eID), eventToMap(e))
		pipe.ZAdd(ctx, runEventsKey(e.RunID.String()), goredis.Z{Member: eID})
		if e.CorrelationID != "" {
			pipe.ZAdd(ctx, corrEventsKey(e.CorrelationID), goredis.Z{Member: eID})
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.rollbackClaim(ctx, claimedToken)
		return fmt.Errorf("worlds/redis: apply change: %w", err)
	}
	return nil
}

// doomedHooks loads the hooks the change set deletes, directly and via
// ReleaseRunHooks.
func (s *Store) doomedHooks(ctx context.Context, change *workflow.ChangeSet) ([]*workflow.Hook, error) {
	var doomed []*workflow.Hook

	if !change.DeleteHook.IsNil() {
		h, err := s.GetHook(ctx, change.DeleteHook)
		if err != nil && !errors.Is(err, worlds.ErrHookNotFound) {
			return nil, err
		}
		if h != nil {
			doomed = append(doomed, h)
		}
	}

	if !change.ReleaseRunHooks.IsNil() {
		ids, err := s.client.SMembers(ctx, runHooksKey(change.ReleaseRunHooks.String())).Result()
		if err != nil {
			return nil, fmt.Errorf("worlds/redis: list run hooks: %w", err)
		}
		for _, hID := range ids {
			vals, getErr := s.client.HGetAll(ctx, hookKey(hID)).Result()
			if getErr != nil || len(vals) == 0 {
				continue
			}
			h, convErr := mapToHook(vals)
			if convErr != nil {
				continue
			}
			doomed = append(doomed, h)
		}
	}
	return doomed, nil
}

// rollbackClaim releases a token claimed earlier in a failed ApplyChange.
func (s *Store) rollbackClaim(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.client.Del(context.WithoutCancel(ctx), tokenKey(token)).Err(); err != nil {
		s.logger.Warn("rollback token claim", "token", token, "error", err)
	}
}
