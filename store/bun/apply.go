package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/workflow"
)

// ApplyChange atomically persists the change set in a single SQL
// transaction. Uniqueness checks run inside the transaction before any
// write, so a failed check rolls back with zero side effects. The UNIQUE
// constraint on hooks.token backs up the token check against writers that
// bypass the per-run lock.
func (s *Store) ApplyChange(ctx context.Context, change *workflow.ChangeSet) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if r := change.CreateRun; r != nil {
			exists, err := tx.NewSelect().Model((*runModel)(nil)).
				Where("id = ?", r.ID.String()).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("worlds/bun: check run exists: %w", err)
			}
			if exists {
				return worlds.ErrRunExists
			}
		}
		if st := change.CreateStep; st != nil {
			exists, err := tx.NewSelect().Model((*stepModel)(nil)).
				Where("run_id = ?", st.RunID.String()).
				Where("id = ?", st.ID).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("worlds/bun: check step exists: %w", err)
			}
			if exists {
				return worlds.ErrStepExists
			}
		}
		if h := change.CreateHook; h != nil {
			taken, err := tx.NewSelect().Model((*hookModel)(nil)).
				Where("token = ?", h.Token).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("worlds/bun: check hook token: %w", err)
			}
			if taken {
				return worlds.ErrHookTokenTaken
			}
		}

		if r := change.CreateRun; r != nil {
			if _, err := tx.NewInsert().Model(toRunModel(r)).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return worlds.ErrRunExists
				}
				return fmt.Errorf("worlds/bun: insert run: %w", err)
			}
		}
		if r := change.UpdateRun; r != nil {
			if _, err := tx.NewUpdate().Model(toRunModel(r)).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("worlds/bun: update run: %w", err)
			}
		}
		if st := change.CreateStep; st != nil {
			if _, err := tx.NewInsert().Model(toStepModel(st)).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return worlds.ErrStepExists
				}
				return fmt.Errorf("worlds/bun: insert step: %w", err)
			}
		}
		if st := change.UpdateStep; st != nil {
			if _, err := tx.NewUpdate().Model(toStepModel(st)).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("worlds/bun: update step: %w", err)
			}
		}
		if h := change.CreateHook; h != nil {
			if _, err := tx.NewInsert().Model(toHookModel(h)).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return worlds.ErrHookTokenTaken
				}
				return fmt.Errorf("worlds/bun: insert hook: %w", err)
			}
		}
		if !change.DeleteHook.IsNil() {
			_, err := tx.NewDelete().Model((*hookModel)(nil)).
				Where("id = ?", change.DeleteHook.String()).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("worlds/bun: delete hook: %w", err)
			}
		}
		if !change.ReleaseRunHooks.IsNil() {
			_, err := tx.NewDelete().Model((*hookModel)(nil)).
				Where("run_id = ?", change.ReleaseRunHooks.String()).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("worlds/bun: release run hooks: %w", err)
			}
		}

		if e := change.Event; e != nil {
			if _, err := tx.NewInsert().Model(toEventModel(e)).Exec(ctx); err != nil {
				return fmt.Errorf("worlds/bun: insert event: %w", err)
			}
		}
		return nil
	})
}

// isUniqueViolation matches SQLite's constraint error text. Both the cgo and
// pure-Go drivers behind sqliteshim surface it this way.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
