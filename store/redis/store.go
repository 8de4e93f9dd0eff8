// Package redis implements store.Store using Redis for high-throughput
// workloads. Entities are stored as Hashes, ordered listings use
// lex-ordered Sorted Sets, hook tokens are claimed with SET NX, and the
// per-run serialization primitive is a SET NX PX lease lock.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mizzle-dev/worlds/id"
	"github.com/mizzle-dev/worlds/workflow"
)

// Compile-time interface check.
var _ workflow.Store = (*Store)(nil)

// Lease lock tuning. The TTL only bounds how long a crashed holder can
// block a run; live holders finish well inside it.
const (
	lockTTL       = 30 * time.Second
	lockRetryWait = 10 * time.Millisecond
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the Worlds store contract backed by Redis.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// releaseScript deletes the lock key only while we still hold it, so an
// expired-and-reacquired lock is never released out from under its new
// holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WithRunLock runs fn while holding the run's lease lock. Acquisition
// polls SET NX PX until it wins or the context is cancelled.
func (s *Store) WithRunLock(ctx context.Context, runID id.RunID, fn func(ctx context.Context) error) error {
	key := runLockKey(runID.String())
	holder := lockHolder()

	for {
		ok, err := s.client.SetNX(ctx, key, holder, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("worlds/redis: acquire run lock: %w", err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(lockRetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	defer func() {
		if _, err := releaseScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, holder).Result(); err != nil {
			s.logger.Warn("release run lock", "run_id", runID.String(), "error", err)
		}
	}()

	return fn(ctx)
}

// lockHolder returns a random lock owner value.
func lockHolder() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
