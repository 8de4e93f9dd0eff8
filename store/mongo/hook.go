package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetHook retrieves a hook by ID.
func (s *Store) GetHook(ctx context.Context, hookID id.HookID) (*workflow.Hook, error) {
	var m hookModel
	err := s.db.Collection(colHooks).FindOne(ctx, bson.M{"_id": hookID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/mongo: get hook: %w", err)
	}
	return fromHookModel(&m)
}

// GetHookByToken retrieves the live hook holding the token.
func (s *Store) GetHookByToken(ctx context.Context, token string) (*workflow.Hook, error) {
	var m hookModel
	err := s.db.Collection(colHooks).FindOne(ctx, bson.M{"token": token}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, worlds.ErrHookNotFound
		}
		return nil, fmt.Errorf("worlds/mongo: get hook by token: %w", err)
	}
	return fromHookModel(&m)
}

// ListHooks returns hooks ordered by hook ID. A Nil runID lists all hooks.
func (s *Store) ListHooks(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Hook, error) {
	query := bson.M{}
	if !runID.IsNil() {
		query["run_id"] = runID.String()
	}
	applyCursor(query, "_id", opts)

	cursor, err := s.db.Collection(colHooks).Find(ctx, query, findOpts("_id", opts))
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: list hooks: %w", err)
	}
	defer cursor.Close(ctx)

	var models []hookModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("worlds/mongo: list hooks decode: %w", err)
	}

	hooks := make([]*workflow.Hook, 0, len(models))
	for i := range models {
		h, convErr := fromHookModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("worlds/mongo: list hooks convert: %w", convErr)
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}
