package router

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandshakeLimiter applies a token bucket per peer route key, so a listener
// cannot be made to spend unbounded CPU on cheap-to-send garbage handshake
// attempts. Idle keys are evicted periodically.
type HandshakeLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewHandshakeLimiter creates a per-key limiter; returns nil (meaning
// unlimited) if rps or burst are non-positive.
func NewHandshakeLimiter(rps float64, burst int, idleTTL time.Duration) *HandshakeLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &HandshakeLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: idleTTL,
	}
}

// Allow reports whether a handshake attempt from key may proceed at now.
func (l *HandshakeLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}
