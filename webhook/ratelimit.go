package webhook

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter keeps one token bucket per client address. Buckets idle longer
// than a full refill are dropped; a fresh bucket is identical to them.
type limiter struct {
	mu        sync.Mutex
	entries   map[string]*bucket
	rps       float64
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLimiter(rps float64, burst int, now func() time.Time) *limiter {
	idle := time.Duration(float64(burst) / rps * float64(time.Second))
	if idle < time.Minute {
		idle = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &limiter{
		entries:   make(map[string]*bucket),
		rps:       rps,
		burst:     burst,
		idle:      idle,
		now:       now,
		lastSweep: now(),
	}
}

// Allow reports whether key may make a request now.
func (l *limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.entries[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.entries[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func (l *limiter) sweep(now time.Time) {
	for k, b := range l.entries {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

// Len is the number of tracked clients.
func (l *limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
