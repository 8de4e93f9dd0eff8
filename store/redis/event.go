package redis

import (
	"context"
	"fmt"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// ListEvents returns the run's events ordered by event ID.
func (s *Store) ListEvents(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Event, error) {
	ids, err := s.rangeLex(ctx, runEventsKey(runID.String()), opts.Cursor, opts.Order, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: list events: %w", err)
	}
	return s.eventsByID(ctx, ids)
}

// ListEventsByCorrelationID returns events across runs whose correlation ID
// matches, ordered by event ID.
func (s *Store) ListEventsByCorrelationID(ctx context.Context, correlationID string, opts workflow.ListOpts) ([]*workflow.Event, error) {
	ids, err := s.rangeLex(ctx, corrEventsKey(correlationID), opts.Cursor, opts.Order, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("worlds/redis: list events by correlation: %w", err)
	}
	return s.eventsByID(ctx, ids)
}

func (s *Store) eventsByID(ctx context.Context, ids []string) ([]*workflow.Event, error) {
	events := make([]*workflow.Event, 0, len(ids))
	for _, eID := range ids {
		vals, err := s.client.HGetAll(ctx, eventKey(eID)).Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToEvent(vals)
		if convErr != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
