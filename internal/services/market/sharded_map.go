package market

import (
	"sync"
)

const numShards = 16

// ShardedBackendMap is a sharded map of backends keyed by pool address to reduce lock contention
type ShardedBackendMap struct {
	shards [numShards]backendShard
}

type backendShard struct {
	mu       sync.RWMutex
	backends map[Address]Backend
}

func NewShardedBackendMap() *ShardedBackendMap {
	m := &ShardedBackendMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].backends = make(map[Address]Backend)
	}
	return m
}

func (m *ShardedBackendMap) getShard(key Address) *backendShard {
	// first byte of the address is uniformly distributed
	idx := key[0] % numShards
	return &m.shards[idx]
}

func (m *ShardedBackendMap) Get(key Address) (Backend, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	b, ok := shard.backends[key]
	shard.mu.RUnlock()
	return b, ok
}

// SetIfAbsent stores b unless the address is taken and reports whether it did.
func (m *ShardedBackendMap) SetIfAbsent(key Address, b Backend) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.backends[key]; ok {
		return false
	}
	shard.backends[key] = b
	return true
}

func (m *ShardedBackendMap) Delete(key Address) {
	shard := m.getShard(key)
	shard.mu.Lock()
	delete(shard.backends, key)
	shard.mu.Unlock()
}

// Len returns total count across all shards
func (m *ShardedBackendMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].backends)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all backends (acquires locks per shard)
func (m *ShardedBackendMap) Range(f func(key Address, b Backend) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].backends {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}
