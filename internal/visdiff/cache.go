package visdiff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	maxCacheEntries   = 100
	maxCacheBytes     = 100 * 1024 * 1024
	evictToBytes      = 75 * 1024 * 1024
	maxCacheableBytes = 10 * 1024 * 1024
)

// cacheKey identifies a cached comparison by the hash of both inputs and
// an options fingerprint, per the specification.
type cacheKey string

func newCacheKey(baselineHash, currentHash string, opts Options) cacheKey {
	h := sha256.New()
	h.Write([]byte(baselineHash))
	h.Write([]byte(":"))
	h.Write([]byte(currentHash))
	h.Write([]byte(":"))
	fmt.Fprintf(h, "%.4f|%t|%t|%d", opts.PixelThreshold, opts.AntiAliasingIgnored, opts.SemanticAnalysisEnabled, opts.DimensionTolerance)
	for _, r := range opts.Regions {
		fmt.Fprintf(h, "|%s:%s:%.2f", r.Name, r.Selector, r.Weight)
	}
	return cacheKey(hex.EncodeToString(h.Sum(nil)))
}

// CacheStats reports the bounded image cache's occupancy, per the
// specification's getCacheStats() contract.
type CacheStats struct {
	Entries   int
	Evictions int64
	Hits      int64
	Misses    int64
}

// MemoryStats reports byte accounting for the bounded image cache, per
// the specification's getMemoryStats() contract.
type MemoryStats struct {
	TotalBytes   int64
	CeilingBytes int64
	EvictToBytes int64
}

// boundedCache is the diff engine's in-process result cache: LRU at 100
// entries plus a 100MB total-bytes ceiling with eviction down to 75MB.
// Entries of 10MB or more are never cached, mirroring the
// bytesPerImage-budgeted cache sizing idiom used by image-diffing
// services in the examples.
type boundedCache struct {
	mu         sync.Mutex
	lru        *lru.Cache[cacheKey, *Result]
	sizes      map[cacheKey]int
	totalBytes int64
	hits       int64
	misses     int64
	evictions  int64
}

func newBoundedCache() *boundedCache {
	// The hashicorp LRU enforces the 100-entry cap directly; byte-ceiling
	// eviction is layered on top in evictToCeiling.
	l, _ := lru.New[cacheKey, *Result](maxCacheEntries)
	return &boundedCache{lru: l, sizes: make(map[cacheKey]int)}
}

func (c *boundedCache) get(key cacheKey) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return v, true
}

// set stores result under key unless its estimated size (the combined
// baseline+current byte length, not a single image) is at or above the
// per-entry ceiling. Returns false when the entry was rejected as too
// large to cache.
func (c *boundedCache) set(key cacheKey, result *Result, size int) bool {
	if size >= maxCacheableBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if oldSize, existed := c.sizes[key]; existed {
		c.totalBytes -= int64(oldSize)
	}

	before := c.lru.Keys()
	c.lru.Add(key, result)
	after := c.lru.Keys()

	if len(after) < len(before)+1 {
		afterSet := make(map[cacheKey]struct{}, len(after))
		for _, k := range after {
			afterSet[k] = struct{}{}
		}
		for _, k := range before {
			if _, still := afterSet[k]; !still {
				if sz, ok := c.sizes[k]; ok {
					c.totalBytes -= int64(sz)
					delete(c.sizes, k)
					c.evictions++
				}
			}
		}
	}

	c.sizes[key] = size
	c.totalBytes += int64(size)

	c.evictToCeiling()
	return true
}

// evictToCeiling drops least-recently-used entries until total bytes is
// at or below evictToBytes, or the cache is empty.
func (c *boundedCache) evictToCeiling() {
	if c.totalBytes <= maxCacheBytes {
		return
	}
	for c.totalBytes > evictToBytes {
		keys := c.lru.Keys()
		if len(keys) == 0 {
			break
		}
		oldest := keys[0]
		c.lru.Remove(oldest)
		if sz, ok := c.sizes[oldest]; ok {
			c.totalBytes -= int64(sz)
			delete(c.sizes, oldest)
		}
		c.evictions++
	}
}

func (c *boundedCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:   c.lru.Len(),
		Evictions: c.evictions,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}

func (c *boundedCache) memoryStats() MemoryStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MemoryStats{
		TotalBytes:   c.totalBytes,
		CeilingBytes: maxCacheBytes,
		EvictToBytes: evictToBytes,
	}
}
