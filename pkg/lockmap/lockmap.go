// Package lockmap provides a sharded per-key mutex map.
//
// It serializes work scoped to a single key (such as a session token)
// without one global lock: keys are hashed onto a fixed set of shards
// and each shard owns an independent mutex table. Lock entries are
// reference counted and removed when the last holder releases them,
// so the map does not grow with the token space.
package lockmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 16

// Map is a sharded map of per-key mutexes.
type Map struct {
	shards    []*shard
	shardMask uint32
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a lock map with the default shard count.
func New() *Map {
	return NewWithShards(DefaultShardCount)
}

// NewWithShards creates a lock map with the specified shard count.
// shardCount must be a power of 2.
func NewWithShards(shardCount int) *Map {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}

	m := &Map{
		shards:    make([]*shard, shardCount),
		shardMask: uint32(shardCount - 1),
	}
	for i := range m.shards {
		m.shards[i] = &shard{locks: make(map[string]*entry)}
	}
	return m
}

// Lock acquires the mutex for key, blocking until it is available.
// The returned function releases it and must be called exactly once.
func (m *Map) Lock(key string) (unlock func()) {
	sh := m.shards[murmur3.Sum32([]byte(key))&m.shardMask]

	sh.mu.Lock()
	e, ok := sh.locks[key]
	if !ok {
		e = &entry{}
		sh.locks[key] = e
	}
	e.refs++
	sh.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		sh.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(sh.locks, key)
		}
		sh.mu.Unlock()
	}
}

// Len returns the number of keys currently holding or waiting on a lock.
func (m *Map) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.locks)
		sh.mu.Unlock()
	}
	return n
}
