package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/starterp/core"
)

const (
	defaultTTL     = 5 * time.Minute
	defaultMaxSize = 500
)

// Memory is an in-process TTL cache with bounded size.
type Memory[V any] struct {
	entries map[string]entry[V]
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type entry[V any] struct {
	value    V
	cachedAt time.Time
}

var _ core.CacheWithStats[*core.Session] = (*Memory[*core.Session])(nil)

func NewMemory[V any](c core.CacheConfig) *Memory[V] {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = defaultMaxSize
	}

	return &Memory[V]{
		entries: make(map[string]entry[V]),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// NewSessionCache is the cache used by the session manager.
func NewSessionCache(c core.CacheConfig) *Memory[*core.Session] {
	return NewMemory[*core.Session](c)
}

func (c *Memory[V]) Get(key string) (V, error) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return zero, core.ErrCacheNotFound
	}

	if c.now().Sub(e.cachedAt) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		_ = c.Delete(key)
		return zero, core.ErrCacheNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	return e.value, nil
}

func (c *Memory[V]) Set(key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = entry[V]{value: value, cachedAt: c.now()}
	atomic.AddInt64(&c.sets, 1)
	return nil
}

func (c *Memory[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.cachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *Memory[V]) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[key]; existed {
		delete(c.entries, key)
		atomic.AddInt64(&c.deletes, 1)
	}
	return nil
}

func (c *Memory[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
	return nil
}

func (c *Memory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory[V]) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
