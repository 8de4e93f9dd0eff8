package bunstore

import (
	"context"
	"fmt"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ListEvents returns the run's events ordered by event ID.
func (s *Store) ListEvents(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Event, error) {
	var models []eventModel
	q := s.db.NewSelect().Model(&models).
		Where("run_id = ?", runID.String())
	q = applyListOpts(q, "id", opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("worlds/bun: list events: %w", err)
	}
	return eventsFromModels(models)
}

// ListEventsByCorrelationID returns events across runs whose correlation ID
// matches, ordered by event ID.
func (s *Store) ListEventsByCorrelationID(ctx context.Context, correlationID string, opts workflow.ListOpts) ([]*workflow.Event, error) {
	var models []eventModel
	q := s.db.NewSelect().Model(&models).
		Where("correlation_id = ?", correlationID)
	q = applyListOpts(q, "id", opts)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("worlds/bun: list events by correlation: %w", err)
	}
	return eventsFromModels(models)
}

func eventsFromModels(models []eventModel) ([]*workflow.Event, error) {
	events := make([]*workflow.Event, 0, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
