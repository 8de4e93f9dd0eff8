package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mizzle-dev/worlds"
	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/store/memory"
	"github.com/mizzle-dev/worlds/store/storetest"
	"github.com/mizzle-dev/worlds/workflow"
)

func TestContract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(_ *testing.T) workflow.Store {
		return memory.New()
	})
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// Writers on different runs must not block each other beyond shard
// collisions; this mostly guards against a regression to one global lock
// held across fn.
func TestRunLocksIndependent(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	const runs = 16
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runID := id.NewRunID()
			err := s.WithRunLock(ctx, runID, func(ctx context.Context) error {
				return s.ApplyChange(ctx, &workflow.ChangeSet{
					Event: &workflow.Event{
						ID:          id.NewEventID(),
						RunID:       runID,
						Type:        workflow.EventRunCreated,
						SpecVersion: workflow.SpecVersionCurrent,
						CreatedAt:   time.Now().UTC(),
					},
					CreateRun: &workflow.Run{
						Entity:       worlds.NewEntity(),
						ID:           runID,
						WorkflowName: "parallel",
						Status:       workflow.RunStatusPending,
						SpecVersion:  workflow.SpecVersionCurrent,
					},
				})
			})
			if err != nil {
				t.Errorf("apply: %v", err)
			}
		}()
	}
	wg.Wait()

	listed, err := s.ListRuns(ctx, workflow.RunFilter{WorkflowName: "parallel"}, workflow.ListOpts{Limit: runs + 1})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != runs {
		t.Fatalf("runs = %d, want %d", len(listed), runs)
	}
}
