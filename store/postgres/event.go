package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

const eventColumns = `
	id, run_id, type, correlation_id, data, spec_version, created_at`

// ListEvents returns the run's events ordered by event ID.
func (s *Store) ListEvents(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM worlds_events WHERE run_id = $1`
	args := []any{runID.String()}
	query += listSuffix("id", opts, &args)

	return s.queryEvents(ctx, query, args...)
}

// ListEventsByCorrelationID returns events across runs whose correlation ID
// matches, ordered by event ID.
func (s *Store) ListEventsByCorrelationID(ctx context.Context, correlationID string, opts workflow.ListOpts) ([]*workflow.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM worlds_events WHERE correlation_id = $1`
	args := []any{correlationID}
	query += listSuffix("id", opts, &args)

	return s.queryEvents(ctx, query, args...)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]*workflow.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("worlds/postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []*workflow.Event
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("worlds/postgres: scan event row: %w", scanErr)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("worlds/postgres: iterate event rows: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (*workflow.Event, error) {
	var (
		e       workflow.Event
		eventID string
		runID   string
	)
	err := row.Scan(
		&eventID, &runID, &e.Type, &e.CorrelationID,
		&e.Data, &e.SpecVersion, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ID, err = id.ParseEventID(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", eventID, err)
	}
	e.RunID, err = id.ParseRunID(runID)
	if err != nil {
		return nil, fmt.Errorf("parse event run id %q: %w", runID, err)
	}
	return &e, nil
}
