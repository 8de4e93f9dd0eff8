// Package keylock provides a sharded mutex keyed by string. In-process
// backends use it as their per-run serialization primitive: calls for the
// same key serialize, calls for different keys proceed in parallel (modulo
// shard collisions, which only cost contention, never correctness).
package keylock

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

// KeyedMutex is a fixed-shard set of mutexes. The zero value is ready to use.
type KeyedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the shard for key and returns its unlock function.
//
//	unlock := km.Lock(runID.String())
//	defer unlock()
func (m *KeyedMutex) Lock(key string) func() {
	shard := &m.shards[shardIndex(key)]
	shard.Lock()
	return shard.Unlock
}

// WithLock runs fn while holding the shard for key.
func (m *KeyedMutex) WithLock(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
