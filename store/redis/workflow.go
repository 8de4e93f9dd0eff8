package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	vals, err := s.client.HGetAll(ctx, runKey(runID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: get run: %w", err)
	}
	if len(vals) == 0 {
		return nil, worlds.ErrRunNotFound
	}
	return mapToRun(vals)
}

// ListRuns returns runs matching the filter, ordered by ID. The filter is
// applied client-side over the ordered ID scan, so the cursor stays the run
// ID regardless of the filter.
func (s *Store) ListRuns(ctx context.Context, filter workflow.RunFilter, opts workflow.ListOpts) ([]*workflow.Run, error) {
	ids, err := s.rangeLex(ctx, runIDsKey, opts.Cursor, opts.Order, 0)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: list runs: %w", err)
	}

	var runs []*workflow.Run
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, runKey(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		r, convErr := mapToRun(vals)
		if convErr != nil {
			continue
		}
		if filter.WorkflowName != "" && r.WorkflowName != filter.WorkflowName {
			continue
		}
		if filter.DeploymentID != "" && r.DeploymentID != filter.DeploymentID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		runs = append(runs, r)
		if opts.Limit > 0 && len(runs) >= opts.Limit {
			break
		}
	}
	return runs, nil
}

// GetStep retrieves a step by run and step ID.
func (s *Store) GetStep(ctx context.Context, runID id.RunID, stepID string) (*workflow.Step, error) {
	vals, err := s.client.HGetAll(ctx, stepKey(runID.String(), stepID)).Result()
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: get step: %w", err)
	}
	if len(vals) == 0 {
		return nil, worlds.ErrStepNotFound
	}
	return mapToStep(vals)
}

// ListSteps returns the run's steps ordered by step ID.
func (s *Store) ListSteps(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Step, error) {
	rID := runID.String()
	ids, err := s.rangeLex(ctx, stepIDsKey(rID), opts.Cursor, opts.Order, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: list steps: %w", err)
	}

	steps := make([]*workflow.Step, 0, len(ids))
	for _, stepID := range ids {
		vals, getErr := s.client.HGetAll(ctx, stepKey(rID, stepID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		st, convErr := mapToStep(vals)
		if convErr != nil {
			continue
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// rangeLex scans a lex-ordered sorted set past the cursor in the given
// direction. A zero limit returns the full range.
func (s *Store) rangeLex(ctx context.Context, zkey, cursor string, order workflow.SortOrder, limit int) ([]string, error) {
	rng := &goredis.ZRangeBy{Min: "-", Max: "+"}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	if order == workflow.SortDesc {
		if cursor != "" {
			rng.Max = "(" + cursor
		}
		return s.client.ZRevRangeByLex(ctx, zkey, rng).Result()
	}
	if cursor != "" {
		rng.Min = "(" + cursor
	}
	return s.client.ZRangeByLex(ctx, zkey, rng).Result()
}
