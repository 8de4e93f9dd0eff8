//go:build integration

package redis_test

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	redisstore "github.com/mizzle-dev/worlds/store/redis"
	"github.com/mizzle-dev/worlds/store/storetest"
	"github.com/mizzle-dev/worlds/workflow"
)

// setupClient starts a Redis container and returns a connected client.
// Each test gets a flushed database.
func setupClient(t *testing.T) goredis.UniversalClient {
	t.Helper()

	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := goredis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestContract(t *testing.T) {
	client := setupClient(t)
	storetest.Run(t, func(t *testing.T) workflow.Store {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
		return redisstore.New(client)
	})
}

func TestLifecycle(t *testing.T) {
	client := setupClient(t)
	s := redisstore.New(client)
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
