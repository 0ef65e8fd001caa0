package directory

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// attemptLimiter applies a per-key token bucket to sign-in attempts so a
// burst of bad passwords for one address surfaces the too-many-requests
// code instead of hammering bcrypt.
type attemptLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*attemptEntry
	lastSweep time.Time
}

type attemptEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newAttemptLimiter(limit rate.Limit, burst int) *attemptLimiter {
	return &attemptLimiter{
		limit:     limit,
		burst:     burst,
		entries:   make(map[string]*attemptEntry),
		lastSweep: time.Now(),
	}
}

// allow reports whether another attempt for key may proceed now.
func (l *attemptLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > 10*time.Minute {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > 30*time.Minute {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &attemptEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}
