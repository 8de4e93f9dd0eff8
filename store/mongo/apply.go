package mongo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Lease lock tuning for WithRunLock.
const (
	lockTTL       = 30 * time.Second
	lockRetryWait = 10 * time.Millisecond
)

// ApplyChange atomically persists the change set inside a session
// transaction. Uniqueness violations surface as duplicate key errors on the
// inserts — the run and composite step document IDs guard ID uniqueness,
// and the unique token index on hooks is the atomic cross-run claim — and
// abort the transaction, leaving zero side effects.
func (s *Store) ApplyChange(ctx context.Context, change *workflow.ChangeSet) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("worlds/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, s.applyInTxn(ctx, change)
	})
	return err
}

func (s *Store) applyInTxn(ctx context.Context, change *workflow.ChangeSet) error {
	if r := change.CreateRun; r != nil {
		_, err := s.db.Collection(colRuns).InsertOne(ctx, toRunModel(r))
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrRunExists
			}
			return fmt.Errorf("worlds/mongo: create run: %w", err)
		}
	}
	if r := change.UpdateRun; r != nil {
		m := toRunModel(r)
		res, err := s.db.Collection(colRuns).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
		if err != nil {
			return fmt.Errorf("worlds/mongo: update run: %w", err)
		}
		if res.MatchedCount == 0 {
			return worlds.ErrRunNotFound
		}
	}
	if st := change.CreateStep; st != nil {
		_, err := s.db.Collection(colSteps).InsertOne(ctx, toStepModel(st))
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrStepExists
			}
			return fmt.Errorf("worlds/mongo: create step: %w", err)
		}
	}
	if st := change.UpdateStep; st != nil {
		m := toStepModel(st)
		res, err := s.db.Collection(colSteps).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
		if err != nil {
			return fmt.Errorf("worlds/mongo: update step: %w", err)
		}
		if res.MatchedCount == 0 {
			return worlds.ErrStepNotFound
		}
	}
	if h := change.CreateHook; h != nil {
		_, err := s.db.Collection(colHooks).InsertOne(ctx, toHookModel(h))
		if err != nil {
			if isDuplicateKey(err) {
				return worlds.ErrHookTokenTaken
			}
			return fmt.Errorf("worlds/mongo: create hook: %w", err)
		}
	}
	if !change.DeleteHook.IsNil() {
		_, err := s.db.Collection(colHooks).DeleteOne(ctx, bson.M{"_id": change.DeleteHook.String()})
		if err != nil {
			return fmt.Errorf("worlds/mongo: delete hook: %w", err)
		}
	}
	if !change.ReleaseRunHooks.IsNil() {
		_, err := s.db.Collection(colHooks).DeleteMany(ctx, bson.M{"run_id": change.ReleaseRunHooks.String()})
		if err != nil {
			return fmt.Errorf("worlds/mongo: release run hooks: %w", err)
		}
	}
	if e := change.Event; e != nil {
		_, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(e))
		if err != nil {
			return fmt.Errorf("worlds/mongo: append event: %w", err)
		}
	}
	return nil
}

// WithRunLock runs fn while holding a lease document for the run.
// Acquisition is a conditional upsert: it takes a free or expired lease, and
// a live lease makes the upsert collide on _id, which reads as "locked, try
// again".
func (s *Store) WithRunLock(ctx context.Context, runID id.RunID, fn func(ctx context.Context) error) error {
	col := s.db.Collection(colRunLocks)
	rID := runID.String()
	holder := lockHolder()

	for {
		now := time.Now().UTC()
		_, err := col.UpdateOne(ctx,
			bson.M{"_id": rID, "expires_at": bson.M{"$lt": now}},
			bson.M{"$set": bson.M{
				"holder":     holder,
				"expires_at": now.Add(lockTTL),
			}},
			options.UpdateOne().SetUpsert(true),
		)
		if err == nil {
			break
		}
		if !isDuplicateKey(err) {
			return fmt.Errorf("worlds/mongo: acquire run lock: %w", err)
		}
		timer := time.NewTimer(lockRetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	defer func() {
		_, err := col.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": rID, "holder": holder})
		if err != nil {
			s.logger.Warn("release run lock", "run_id", rID, "error", err)
		}
	}()

	return fn(ctx)
}

// lockHolder returns a random lock owner value.
func lockHolder() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
