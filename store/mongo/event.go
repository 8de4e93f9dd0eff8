package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ListEvents returns the run's events ordered by event ID.
func (s *Store) ListEvents(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Event, error) {
	query := bson.M{"run_id": runID.String()}
	applyCursor(query, "_id", opts)
	return s.findEvents(ctx, query, opts)
}

// ListEventsByCorrelationID returns events across runs whose correlation ID
// matches, ordered by event ID.
func (s *Store) ListEventsByCorrelationID(ctx context.Context, correlationID string, opts workflow.ListOpts) ([]*workflow.Event, error) {
	query := bson.M{"correlation_id": correlationID}
	applyCursor(query, "_id", opts)
	return s.findEvents(ctx, query, opts)
}

func (s *Store) findEvents(ctx context.Context, query bson.M, opts workflow.ListOpts) ([]*workflow.Event, error) {
	cursor, err := s.db.Collection(colEvents).Find(ctx, query, findOpts("_id", opts))
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: list events: %w", err)
	}
	defer cursor.Close(ctx)

	var models []eventModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("worlds/mongo: list events decode: %w", err)
	}

	events := make([]*workflow.Event, 0, len(models))
	for i := range models {
		e, convErr := fromEventModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("worlds/mongo: list events convert: %w", convErr)
		}
		events = append(events, e)
	}
	return events, nil
}
