package cache

import (
	"hash/maphash"

	"github.com/hupe1980/specfit/internal/resource"
)

const numShards = 64

// ShardedLRU distributes entries across 64 LRU shards to reduce lock contention.
type ShardedLRU[K comparable, V any] struct {
	shards [numShards]*LRU[K, V]
	seed   maphash.Seed
}

// NewShardedLRU creates a new sharded LRU cache.
// The capacity is divided evenly across all shards.
func NewShardedLRU[K comparable, V any](capacity int64, sizeOf SizeFunc[V], rc *resource.Controller) *ShardedLRU[K, V] {
	shardCapacity := max(capacity/numShards, 1)

	s := &ShardedLRU[K, V]{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU[K, V](shardCapacity, sizeOf, rc)
	}
	return s
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns a cached value.
func (s *ShardedLRU[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

// Set caches a value.
func (s *ShardedLRU[K, V]) Set(key K, value V) {
	s.shard(key).Set(key, value)
}

// Invalidate removes entries matching the predicate from all shards.
func (s *ShardedLRU[K, V]) Invalidate(predicate func(key K) bool) {
	for _, sh := range s.shards {
		sh.Invalidate(predicate)
	}
}

// Purge empties all shards.
func (s *ShardedLRU[K, V]) Purge() {
	for _, sh := range s.shards {
		sh.Purge()
	}
}

// Stats returns aggregated hit and miss counts.
func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total size of all shards in bytes.
func (s *ShardedLRU[K, V]) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}
