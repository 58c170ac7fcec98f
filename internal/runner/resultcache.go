package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vrtest-dev/vrtest/internal/visdiff"
)

const (
	defaultResultCacheTTL      = 7 * 24 * time.Hour
	defaultResultCacheMaxBytes = 1024 * 1024 * 1024
	resultCacheEvictToBytes    = defaultResultCacheMaxBytes * 3 / 4
	resultCacheMaxEntries      = 10000
)

// resultCacheKey identifies a cached run result by the hash of both
// compared images and a fingerprint of the compare options, mirroring
// the structural-diff cache's key construction.
type resultCacheKey string

func newResultCacheKey(baselineHash, currentHash string, opts visdiff.Options) resultCacheKey {
	h := sha256.New()
	h.Write([]byte(baselineHash))
	h.Write([]byte(":"))
	h.Write([]byte(currentHash))
	h.Write([]byte(":"))
	fmt.Fprintf(h, "%.4f|%t|%t|%d", opts.PixelThreshold, opts.AntiAliasingIgnored, opts.SemanticAnalysisEnabled, opts.DimensionTolerance)
	for _, r := range opts.Regions {
		fmt.Fprintf(h, "|%s:%s:%.2f", r.Name, r.Selector, r.Weight)
	}
	return resultCacheKey(hex.EncodeToString(h.Sum(nil)))
}

type resultCacheEntry struct {
	result    DiffResult
	storedAt  time.Time
	sizeBytes int
}

// resultCache is the runner's advisory, run-to-run result cache: a
// miss (whether from absence, expiry, or eviction) never fails a run,
// it only means the page is recomputed. Bounded the same way the
// structural diff cache is — an LRU entry cap plus a total-bytes
// ceiling with eviction down to a lower watermark — with a TTL layered
// on top so stale entries are never served even if still resident.
type resultCache struct {
	mu         sync.Mutex
	lru        *lru.Cache[resultCacheKey, resultCacheEntry]
	totalBytes int64
	ttl        time.Duration
	maxBytes   int64
	evictTo    int64
	hits       int64
	misses     int64
	evictions  int64
}

func newResultCache(ttl time.Duration, maxBytes int64) *resultCache {
	if ttl <= 0 {
		ttl = defaultResultCacheTTL
	}
	if maxBytes <= 0 {
		maxBytes = defaultResultCacheMaxBytes
	}
	l, _ := lru.New[resultCacheKey, resultCacheEntry](resultCacheMaxEntries)
	return &resultCache{
		lru:      l,
		ttl:      ttl,
		maxBytes: maxBytes,
		evictTo:  maxBytes * 3 / 4,
	}
}

func estimateSize(r DiffResult) int {
	size := len(r.Page)
	if r.Structural != nil {
		size += len(r.Structural.Regions)*64 + 256
	}
	if r.Semantic != nil {
		size += len(r.Semantic.Reasoning)
		for _, c := range r.Semantic.Categories {
			size += len(c)
		}
	}
	return size
}

func (c *resultCache) get(key resultCacheKey, now time.Time) (DiffResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return DiffResult{}, false
	}
	if now.Sub(entry.storedAt) > c.ttl {
		c.lru.Remove(key)
		c.totalBytes -= int64(entry.sizeBytes)
		c.misses++
		return DiffResult{}, false
	}
	c.hits++
	result := entry.result
	result.CacheHit = true
	return result, true
}

func (c *resultCache) set(key resultCacheKey, result DiffResult, now time.Time) {
	size := estimateSize(result)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, existed := c.lru.Get(key); existed {
		c.totalBytes -= int64(old.sizeBytes)
	}

	before := c.lru.Keys()
	c.lru.Add(key, resultCacheEntry{result: result, storedAt: now, sizeBytes: size})
	after := c.lru.Keys()

	if len(after) < len(before)+1 {
		afterSet := make(map[resultCacheKey]struct{}, len(after))
		for _, k := range after {
			afterSet[k] = struct{}{}
		}
		for _, k := range before {
			if _, still := afterSet[k]; !still {
				c.evictions++
			}
		}
	}

	c.totalBytes += int64(size)
	c.evictToCeiling()
}

func (c *resultCache) evictToCeiling() {
	if c.totalBytes <= c.maxBytes {
		return
	}
	for c.totalBytes > c.evictTo {
		keys := c.lru.Keys()
		if len(keys) == 0 {
			break
		}
		oldest := keys[0]
		if entry, ok := c.lru.Get(oldest); ok {
			c.totalBytes -= int64(entry.sizeBytes)
		}
		c.lru.Remove(oldest)
		c.evictions++
	}
}

type resultCacheStats struct {
	Entries    int
	TotalBytes int64
	Hits       int64
	Misses     int64
	Evictions  int64
}

func (c *resultCache) stats() resultCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return resultCacheStats{
		Entries:    c.lru.Len(),
		TotalBytes: c.totalBytes,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}
