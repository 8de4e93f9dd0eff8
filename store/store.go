// Package store defines the aggregate persistence interface. The workflow
// package defines the entity store contract; the composite Store adds
// backend lifecycle on top. Backends: Memory, Mongo, Redis, Bun (SQLite),
// and Postgres.
package store

import (
	"context"

	"github.com/mizzle-dev/worlds/workflow"
)

// Store is the aggregate persistence interface a backend ("World")
// implements: the workflow entity contract plus lifecycle management.
// A single backend implements all of it; the engine only ever sees
// workflow.Store.
type Store interface {
	workflow.Store

	// Migrate creates or updates the backend's schema and indexes.
	// Schemaless backends treat it as a no-op.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store. Stores built over a
	// caller-provided client never close it.
	Close() error
}
