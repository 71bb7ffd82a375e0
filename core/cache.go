package core

import "time"

// Cache is a keyed TTL cache. Get returns ErrCacheNotFound on a miss.
type Cache[V any] interface {
	Get(key string) (V, error)
	Set(key string, value V) error
	Delete(key string) error
	Clear() error
}

type CacheWithStats[V any] interface {
	Cache[V]
	Stats() CacheStats
}

// SessionCache caches sessions by token hash.
type SessionCache = Cache[*Session]

type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}
