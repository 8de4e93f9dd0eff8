// Package mongo implements store.Store on MongoDB. Entities live in one
// collection each; change sets are applied inside a session transaction, so
// the database must be a replica set (or sharded cluster). The per-run
// serialization primitive is a lease document taken with a conditional
// upsert.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mizzle-dev/worlds/workflow"
)

// Collection name constants.
const (
	colRuns     = "worlds_runs"
	colSteps    = "worlds_steps"
	colHooks    = "worlds_hooks"
	colEvents   = "worlds_events"
	colRunLocks = "worlds_run_locks"
)

// Compile-time interface check.
var _ workflow.Store = (*Store)(nil)

// Store is a MongoDB implementation of the Worlds store contract.
// The caller owns the *mongo.Client lifecycle; Store never closes it.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store over the named database. The caller owns
// the client lifecycle — the Store will not disconnect it on Close().
func New(client *mongod.Client, database string, opts ...Option) *Store {
	s := &Store{
		client: client,
		db:     client.Database(database),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database handle for advanced usage.
func (s *Store) Database() *mongod.Database { return s.db }

// Migrate creates indexes for all Worlds collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("worlds/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error { return nil }

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return mongod.IsDuplicateKeyError(err) ||
		strings.Contains(err.Error(), "E11000")
}

// migrationIndexes returns the index definitions for all Worlds collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colRuns: {
			{Keys: bson.D{{Key: "workflow_name", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colSteps: {
			// Listing index: one run's steps in step-ID order.
			{Keys: bson.D{
				{Key: "run_id", Value: 1},
				{Key: "step_id", Value: 1},
			}},
		},
		colHooks: {
			// The unique token index is the cross-run claim: a second live
			// hook with the same token fails the insert.
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "run_id", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "run_id", Value: 1}}},
			{Keys: bson.D{{Key: "correlation_id", Value: 1}}},
		},
		colRunLocks: nil,
	}
}
