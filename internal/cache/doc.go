// Package cache provides byte-bounded LRU caches for immutable values.
//
// LRU keeps entries in recency order and evicts from the tail once the sum of
// entry sizes exceeds its capacity. ShardedLRU spreads keys over 64 LRU shards
// so that concurrent fits looking up templates rarely contend on one mutex.
//
// Both caches can be attached to a resource.Controller; entries then reserve
// memory from the shared budget and an entry is simply not cached when the
// budget is exhausted.
package cache
