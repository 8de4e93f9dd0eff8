package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	model := new(runModel)
	err := s.db.NewSelect().Model(model).
		Where("id = ?", runID.String()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, worlds.ErrRunNotFound
		}
		return nil, fmt.Errorf("worlds/bun: get run: %w", err)
	}
	return fromRunModel(model)
}

// ListRuns returns runs matching the filter, ordered by ID.
func (s *Store) ListRuns(ctx context.Context, filter workflow.RunFilter, opts workflow.ListOpts) ([]*workflow.Run, error) {
	var models []runModel
	q := s.db.NewSelect().Model(&models)
	if filter.WorkflowName != "" {
		q = q.Where("workflow_name = ?", filter.WorkflowName)
	}
	if filter.DeploymentID != "" {
		q = q.Where("deployment_id = ?", filter.DeploymentID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	q = applyListOpts(q, "id", opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("worlds/bun: list runs: %w", err)
	}

	runs := make([]*workflow.Run, 0, len(models))
	for i := range models {
		r, err := fromRunModel(&models[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// GetStep retrieves a step by run and step ID.
func (s *Store) GetStep(ctx context.Context, runID id.RunID, stepID string) (*workflow.Step, error) {
	model := new(stepModel)
	err := s.db.NewSelect().Model(model).
		Where("run_id = ?", runID.String()).
		Where("id = ?", stepID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, worlds.ErrStepNotFound
		}
		return nil, fmt.Errorf("worlds/bun: get step: %w", err)
	}
	return fromStepModel(model)
}

// ListSteps returns the run's steps ordered by step ID.
func (s *Store) ListSteps(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Step, error) {
	var models []stepModel
	q := s.db.NewSelect().Model(&models).
		Where("run_id = ?", runID.String())
	q = applyListOpts(q, "id", opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("worlds/bun: list steps: %w", err)
	}

	steps := make([]*workflow.Step, 0, len(models))
	for i := range models {
		st, err := fromStepModel(&models[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// applyListOpts adds cursor, order, and limit clauses for a scan keyed on
// column. The cursor is exclusive in the scan direction.
func applyListOpts(q *bun.SelectQuery, column string, opts workflow.ListOpts) *bun.SelectQuery {
	desc := opts.Order == workflow.SortDesc
	if opts.Cursor != "" {
		if desc {
			q = q.Where("? < ?", bun.Ident(column), opts.Cursor)
		} else {
			q = q.Where("? > ?", bun.Ident(column), opts.Cursor)
		}
	}
	if desc {
		q = q.OrderExpr("? DESC", bun.Ident(column))
	} else {
		q = q.OrderExpr("? ASC", bun.Ident(column))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	return q
}
