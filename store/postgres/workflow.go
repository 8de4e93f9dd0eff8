package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

const runColumns = `
	id, workflow_name, deployment_id, status, spec_version,
	input, output, error, execution_context,
	started_at, completed_at, created_at, updated_at`

const stepColumns = `
	run_id, id, name, status, input, output, error, attempt,
	retry_after, started_at, completed_at, created_at, updated_at`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM worlds_runs WHERE id = $1`,
		runID.String(),
	)
	r, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, worlds.ErrRunNotFound
		}
		return nil, fmt.Errorf("worlds/postgres: get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs matching the filter, ordered by ID.
func (s *Store) ListRuns(ctx context.Context, filter workflow.RunFilter, opts workflow.ListOpts) ([]*workflow.Run, error) {
	query := `SELECT ` + runColumns + ` FROM worlds_runs WHERE TRUE`
	var args []any

	if filter.WorkflowName != "" {
		args = append(args, filter.WorkflowName)
		query += fmt.Sprintf(" AND workflow_name = $%d", len(args))
	}
	if filter.DeploymentID != "" {
		args = append(args, filter.DeploymentID)
		query += fmt.Sprintf(" AND deployment_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += listSuffix("id", opts, &args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("worlds/postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		r, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("worlds/postgres: scan run row: %w", scanErr)
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("worlds/postgres: iterate run rows: %w", err)
	}
	return runs, nil
}

// GetStep retrieves a step by run and step ID.
func (s *Store) GetStep(ctx context.Context, runID id.RunID, stepID string) (*workflow.Step, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM worlds_steps WHERE run_id = $1 AND id = $2`,
		runID.String(), stepID,
	)
	st, err := scanStep(row)
	if err != nil {
		if isNoRows(err) {
			return nil, worlds.ErrStepNotFound
		}
		return nil, fmt.Errorf("worlds/postgres: get step: %w", err)
	}
	return st, nil
}

// ListSteps returns the run's steps ordered by step ID.
func (s *Store) ListSteps(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM worlds_steps WHERE run_id = $1`
	args := []any{runID.String()}
	query += listSuffix("id", opts, &args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("worlds/postgres: list steps: %w", err)
	}
	defer rows.Close()

	var steps []*workflow.Step
	for rows.Next() {
		st, scanErr := scanStep(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("worlds/postgres: scan step row: %w", scanErr)
		}
		steps = append(steps, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("worlds/postgres: iterate step rows: %w", err)
	}
	return steps, nil
}

func scanRun(row pgx.Row) (*workflow.Run, error) {
	var (
		r     workflow.Run
		runID string
	)
	err := row.Scan(
		&runID, &r.WorkflowName, &r.DeploymentID, &r.Status, &r.SpecVersion,
		&r.Input, &r.Output, &r.Error, &r.ExecutionContext,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID, err = id.ParseRunID(runID)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", runID, err)
	}
	return &r, nil
}

func scanStep(row pgx.Row) (*workflow.Step, error) {
	var (
		st    workflow.Step
		runID string
	)
	err := row.Scan(
		&runID, &st.ID, &st.Name, &st.Status, &st.Input, &st.Output,
		&st.Error, &st.Attempt, &st.RetryAfter,
		&st.StartedAt, &st.CompletedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.RunID, err = id.ParseRunID(runID)
	if err != nil {
		return nil, fmt.Errorf("parse step run id %q: %w", runID, err)
	}
	return &st, nil
}
