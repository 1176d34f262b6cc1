package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// localLimiter sheds load in-process before a request ever reaches the
// distributed Redis rate limiter inside connectorsvc.Service (spec §5:
// "an additional in-process limiter layered in front of the distributed
// rate limiter to shed load locally before a round-trip"). It is
// deliberately coarser than the Redis-backed per-operation limits in
// connectorsvc/ratelimit_config.go — those remain the source of truth for
// business rate limits; this one only protects the process itself from a
// single caller hammering it faster than any round-trip could possibly
// need.
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// defaultLocalLimiterRate and defaultLocalLimiterBurst bound each
// (source, source_id) pair to a generous local ceiling; the real business
// limits (spec §4.E.i's per-platform/operation table) are enforced later,
// inside connectorsvc.Service, against Redis.
const (
	defaultLocalLimiterRate  = 5
	defaultLocalLimiterBurst = 10
)

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        defaultLocalLimiterRate,
		burst:    defaultLocalLimiterBurst,
	}
}

// Allow reports whether a request identified by key may proceed, creating
// that key's limiter lazily on first use.
func (l *localLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
