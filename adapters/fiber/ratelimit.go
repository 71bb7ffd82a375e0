package fiber

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

type RateLimitConfig struct {
	// PerMinute is the sustained number of requests per client address.
	// Zero disables limiting.
	PerMinute int
	Burst     int
}

// ipLimiter keeps one token bucket per client address. Idle buckets are
// dropped on the next sweep.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.PerMinute
	}
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	if ip == "" {
		ip = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
