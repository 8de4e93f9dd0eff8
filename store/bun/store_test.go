package bunstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	bunstore "github.com/mizzle-dev/worlds/store/bun"
	"github.com/mizzle-dev/worlds/store/storetest"
	"github.com/mizzle-dev/worlds/workflow"
)

var dbSeq atomic.Int64

// newStore opens a fresh in-memory SQLite database, migrates it, and
// returns the store. Each call gets its own database so tests stay
// isolated.
func newStore(t *testing.T) *bunstore.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:worlds-test-%d?mode=memory&cache=shared", dbSeq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Shared-cache in-memory databases vanish when the last connection
	// closes; a single pooled connection also sidesteps SQLITE_LOCKED.
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())
	s := bunstore.New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) workflow.Store {
		return newStore(t)
	})
}

func TestLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// Migrate must be idempotent: re-running applies nothing new.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
