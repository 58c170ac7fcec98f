package visioncache

import (
	"context"
	"sync"
	"time"
)

// Cache is the two-tier AI vision response cache: memory LRU in front
// of a durable PersistentTier. Store I/O errors on the persistent tier
// are advisory; callers treat a store failure as a cache miss.
type Cache struct {
	memory     *memoryTier
	persistent PersistentTier
	ttl        time.Duration

	countersMu  sync.Mutex
	hits        int64
	misses      int64
	storeErrors int64
}

// NewCache constructs a two-tier cache. memoryCapacity <= 0 uses the
// default capacity; ttl <= 0 uses DefaultTTL.
func NewCache(persistent PersistentTier, memoryCapacity int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		memory:     newMemoryTier(memoryCapacity),
		persistent: persistent,
		ttl:        ttl,
	}
}

// Get implements the two-tier lookup: memory hit promotes to LRU head
// and increments the persistent hit counter; memory miss falls through
// to the persistent tier, promoting into memory if the entry has not
// expired.
func (c *Cache) Get(ctx context.Context, key string) (*Response, bool) {
	if e, ok := c.memory.get(key); ok {
		_ = c.persistent.IncrementHits(ctx, key)
		c.recordHit()
		v := e.Value
		return &v, true
	}

	entry, err := c.persistent.Get(ctx, key)
	if err != nil {
		c.recordStoreError()
		c.recordMiss()
		return nil, false
	}
	if entry == nil {
		c.recordMiss()
		return nil, false
	}

	if time.Since(entry.Timestamp) > c.ttl {
		_ = c.persistent.Delete(ctx, key)
		c.recordMiss()
		return nil, false
	}

	entry.Hits++
	c.memory.set(key, *entry)
	_ = c.persistent.IncrementHits(ctx, key)
	c.recordHit()

	v := entry.Value
	return &v, true
}

// Set writes to both tiers.
func (c *Cache) Set(ctx context.Context, key string, value Response, provider, model string) {
	entry := Entry{Key: key, Value: value, Timestamp: time.Now().UTC(), Provider: provider, Model: model}
	c.memory.set(key, entry)
	if err := c.persistent.Set(ctx, key, entry); err != nil {
		c.recordStoreError()
	}
}

func (c *Cache) recordHit() {
	c.countersMu.Lock()
	c.hits++
	c.countersMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.countersMu.Lock()
	c.misses++
	c.countersMu.Unlock()
}

func (c *Cache) recordStoreError() {
	c.countersMu.Lock()
	c.storeErrors++
	c.countersMu.Unlock()
}

func (c *Cache) counts() (hits, misses int64) {
	c.countersMu.Lock()
	defer c.countersMu.Unlock()
	return c.hits, c.misses
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.memory.delete(key)
	_ = c.persistent.Delete(ctx, key)
}

// Clear empties the memory tier. The persistent tier is left intact;
// callers that want full eviction should also prune the persistent
// store directly.
func (c *Cache) Clear() {
	c.memory.clear()
}

// PruneExpired sweeps the persistent tier for entries older than TTL.
func (c *Cache) PruneExpired(ctx context.Context) (int, error) {
	return c.persistent.PruneExpired(ctx, c.ttl)
}

// Stats reports combined memory+persistent occupancy and hit ratio.
func (c *Cache) Stats(ctx context.Context) Stats {
	_, _, evictions := c.memory.counts()
	persistentSize, _ := c.persistent.Len(ctx)
	hits, misses := c.counts()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		MemorySize:     c.memory.len(),
		PersistentSize: persistentSize,
		Hits:           hits,
		Misses:         misses,
		Evictions:      evictions,
		HitRate:        hitRate,
	}
}
