package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/workflow"
)

// ApplyChange atomically persists the change set in one transaction.
// Uniqueness is enforced by the primary keys and the UNIQUE token
// constraint: the first insert that violates one rolls the transaction
// back, mapped to the matching sentinel, with zero side effects.
func (s *Store) ApplyChange(ctx context.Context, change *workflow.ChangeSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("worlds/postgres: begin apply: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err = s.applyInTx(ctx, tx, change); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("worlds/postgres: commit apply: %w", err)
	}
	return nil
}

func (s *Store) applyInTx(ctx context.Context, tx pgx.Tx, change *workflow.ChangeSet) error {
	if r := change.CreateRun; r != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO worlds_runs (`+runColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			r.ID.String(), r.WorkflowName, r.DeploymentID, string(r.Status),
			r.SpecVersion, []byte(r.Input), []byte(r.Output), r.Error,
			[]byte(r.ExecutionContext), r.StartedAt, r.CompletedAt,
			r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrRunExists
			}
			return fmt.Errorf("worlds/postgres: insert run: %w", err)
		}
	}
	if r := change.UpdateRun; r != nil {
		_, err := tx.Exec(ctx, `
			UPDATE worlds_runs SET
				workflow_name = $2, deployment_id = $3, status = $4,
				spec_version = $5, input = $6, output = $7, error = $8,
				execution_context = $9, started_at = $10, completed_at = $11,
				updated_at = $12
			WHERE id = $1`,
			r.ID.String(), r.WorkflowName, r.DeploymentID, string(r.Status),
			r.SpecVersion, []byte(r.Input), []byte(r.Output), r.Error,
			[]byte(r.ExecutionContext), r.StartedAt, r.CompletedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("worlds/postgres: update run: %w", err)
		}
	}

	if st := change.CreateStep; st != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO worlds_steps (`+stepColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			st.RunID.String(), st.ID, st.Name, string(st.Status),
			[]byte(st.Input), []byte(st.Output), st.Error, st.Attempt,
			st.RetryAfter, st.StartedAt, st.CompletedAt,
			st.CreatedAt, st.UpdatedAt,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrStepExists
			}
			return fmt.Errorf("worlds/postgres: insert step: %w", err)
		}
	}
	if st := change.UpdateStep; st != nil {
		_, err := tx.Exec(ctx, `
			UPDATE worlds_steps SET
				name = $3, status = $4, input = $5, output = $6, error = $7,
				attempt = $8, retry_after = $9, started_at = $10,
				completed_at = $11, updated_at = $12
			WHERE run_id = $1 AND id = $2`,
			st.RunID.String(), st.ID, st.Name, string(st.Status),
			[]byte(st.Input), []byte(st.Output), st.Error, st.Attempt,
			st.RetryAfter, st.StartedAt, st.CompletedAt, st.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("worlds/postgres: update step: %w", err)
		}
	}

	if h := change.CreateHook; h != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO worlds_hooks (`+hookColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			h.ID.String(), h.RunID.String(), h.Token, []byte(h.Metadata),
			h.OwnerID, h.ProjectID, h.Environment, h.CreatedAt,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrHookTokenTaken
			}
			return fmt.Errorf("worlds/postgres: insert hook: %w", err)
		}
	}
	if !change.DeleteHook.IsNil() {
		_, err := tx.Exec(ctx,
			`DELETE FROM worlds_hooks WHERE id = $1`,
			change.DeleteHook.String(),
		)
		if err != nil {
			return fmt.Errorf("worlds/postgres: delete hook: %w", err)
		}
	}
	if !change.ReleaseRunHooks.IsNil() {
		_, err := tx.Exec(ctx,
			`DELETE FROM worlds_hooks WHERE run_id = $1`,
			change.ReleaseRunHooks.String(),
		)
		if err != nil {
			return fmt.Errorf("worlds/postgres: release run hooks: %w", err)
		}
	}

	if e := change.Event; e != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO worlds_events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID.String(), e.RunID.String(), string(e.Type), e.CorrelationID,
			[]byte(e.Data), e.SpecVersion, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("worlds/postgres: insert event: %w", err)
		}
	}
	return nil
}
