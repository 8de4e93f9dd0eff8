package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	var m runModel
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": runID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, worlds.ErrRunNotFound
		}
		return nil, fmt.Errorf("worlds/mongo: get run: %w", err)
	}
	return fromRunModel(&m)
}

// ListRuns returns runs matching the filter, ordered by ID.
func (s *Store) ListRuns(ctx context.Context, filter workflow.RunFilter, opts workflow.ListOpts) ([]*workflow.Run, error) {
	query := bson.M{}
	if filter.WorkflowName != "" {
		query["workflow_name"] = filter.WorkflowName
	}
	if filter.DeploymentID != "" {
		query["deployment_id"] = filter.DeploymentID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	applyCursor(query, "_id", opts)

	cursor, err := s.db.Collection(colRuns).Find(ctx, query, findOpts("_id", opts))
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: list runs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []runModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("worlds/mongo: list runs decode: %w", err)
	}

	runs := make([]*workflow.Run, 0, len(models))
	for i := range models {
		r, convErr := fromRunModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("worlds/mongo: list runs convert: %w", convErr)
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// GetStep retrieves a step by run and step ID.
func (s *Store) GetStep(ctx context.Context, runID id.RunID, stepID string) (*workflow.Step, error) {
	var m stepModel
	err := s.db.Collection(colSteps).
		FindOne(ctx, bson.M{"_id": stepDocID(runID.String(), stepID)}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, worlds.ErrStepNotFound
		}
		return nil, fmt.Errorf("worlds/mongo: get step: %w", err)
	}
	return fromStepModel(&m)
}

// ListSteps returns the run's steps ordered by step ID.
func (s *Store) ListSteps(ctx context.Context, runID id.RunID, opts workflow.ListOpts) ([]*workflow.Step, error) {
	query := bson.M{"run_id": runID.String()}
	applyCursor(query, "step_id", opts)

	cursor, err := s.db.Collection(colSteps).Find(ctx, query, findOpts("step_id", opts))
	if err != nil {
		return nil, fmt.Errorf("worlds/mongo: list steps: %w", err)
	}
	defer cursor.Close(ctx)

	var models []stepModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("worlds/mongo: list steps decode: %w", err)
	}

	steps := make([]*workflow.Step, 0, len(models))
	for i := range models {
		st, convErr := fromStepModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("worlds/mongo: list steps convert: %w", convErr)
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// applyCursor adds the exclusive cursor bound on the sort field.
func applyCursor(query bson.M, field string, opts workflow.ListOpts) {
	if opts.Cursor == "" {
		return
	}
	if opts.Order == workflow.SortDesc {
		query[field] = bson.M{"$lt": opts.Cursor}
	} else {
		query[field] = bson.M{"$gt": opts.Cursor}
	}
}

// findOpts builds sort and limit options for a cursor-paginated scan.
func findOpts(field string, opts workflow.ListOpts) *options.FindOptionsBuilder {
	dir := 1
	if opts.Order == workflow.SortDesc {
		dir = -1
	}
	fo := options.Find().SetSort(bson.D{{Key: field, Value: dir}})
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	return fo
}
