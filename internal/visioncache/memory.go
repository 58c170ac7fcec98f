package visioncache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryTier is the LRU front tier. It counts hits/misses/evictions
// itself, the same hit-accounting-decorator idiom this codebase applies
// to its asynq-backed clients, generalized from task dispatch to a pure
// cache lookup.
type memoryTier struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, Entry]
	hits      int64
	misses    int64
	evictions int64
}

func newMemoryTier(capacity int) *memoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	l, _ := lru.New[string, Entry](capacity)
	return &memoryTier{lru: l}
}

func (m *memoryTier) get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lru.Get(key)
	if !ok {
		m.misses++
		return Entry{}, false
	}
	m.hits++
	return e, true
}

func (m *memoryTier) set(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evicted := m.lru.Add(key, e); evicted {
		m.evictions++
	}
}

func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

func (m *memoryTier) counts() (hits, misses, evictions int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses, m.evictions
}
