package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

const hookColumns = `
	id, run_id, token, metadata, owner_id, project_id, environment, created_at`

// GetHook retrieves a hook by ID.
func (s *Store) GetHook(ctx context.Context, hookID id.HookID) (*workflow.Hook, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+hookColumns+` FROM worlds_hooks WHERE id = $1`,
		hookID.String(),
	)
	h, err := scanHook(row)
	if err != nil {
		if isNoRows(err) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/postgres: get hook: %w", err)
	}
	return h, nil
}

// GetHookByToken retrieves the live hook holding the token.
func (s *Store) GetHookByToken(ctx context.Context, token string) (*workflow.Hook, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+hookColumns+` FROM worlds_hooks WHERE token = $1`,
		token,
	)
	h, err := scanHook(row)
	if err != nil {
		if isNoRows(err) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/postgres: get hook by token: %w", err)
	}
	return h, nil
}

// ListHooks returns hooks ordered by hook ID. A Nil runID lists all hooks.
func (s *Store) ListHooks(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Hook, error) {
	query := `SELECT ` + hookColumns + ` FROM worlds_hooks WHERE TRUE`
	var args []any

	if !runID.IsNil() {
		args = append(args, runID.String())
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	query += listSuffix("id", opts, &args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("worlds/postgres: list hooks: %w", err)
	}
	defer rows.Close()

	var hooks []*workflow.Hook
	for rows.Next() {
		h, scanErr := scanHook(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("worlds/postgres: scan hook row: %w", scanErr)
		}
		hooks = append(hooks, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("worlds/postgres: iterate hook rows: %w", err)
	}
	return hooks, nil
}

func scanHook(row pgx.Row) (*workflow.Hook, error) {
	var (
		h      workflow.Hook
		hookID string
		runID  string
	)
	err := row.Scan(
		&hookID, &runID, &h.Token, &h.Metadata,
		&h.OwnerID, &h.ProjectID, &h.Environment, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.ID, err = id.ParseHookID(hookID)
	if err != nil {
		return nil, fmt.Errorf("parse hook id %q: %w", hookID, err)
	}
	h.RunID, err = id.ParseRunID(runID)
	if err != nil {
		return nil, fmt.Errorf("parse hook run id %q: %w", runID, err)
	}
	return &h, nil
}
