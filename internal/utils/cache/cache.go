// Package cache is a sharded in-memory map. Keys are distributed over
// shards by xxhash so writers on different shards never contend.
package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type Cache[K comparable, V any] interface {
	Set(k K, v V)
	Get(k K) (V, bool)
	Del(keys ...K)
}

// New builds a cache with the given shard count, which must be a power of
// two. Non-positive counts fall back to a single shard.
func New[K comparable, V any](shards int) Cache[K, V] {
	if shards <= 0 {
		shards = 1
	}
	c := &cache[K, V]{
		shards:    make([]*shard[K, V], shards),
		shardMask: uint64(shards - 1),
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{entries: map[K]V{}}
	}
	return c
}

type cache[K comparable, V any] struct {
	shards    []*shard[K, V]
	shardMask uint64
}

func (c *cache[K, V]) Set(k K, v V) {
	c.shardFor(k).set(k, v)
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	return c.shardFor(k).get(k)
}

func (c *cache[K, V]) Del(ks ...K) {
	for _, k := range ks {
		c.shardFor(k).del(k)
	}
}

func (c *cache[K, V]) shardFor(k K) *shard[K, V] {
	hashed := xxhash.Sum64String(fmt.Sprintf("%v", k))
	return c.shards[hashed&c.shardMask]
}
