package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-key sliding-window counter. Keys are caller IPs; entries
// older than the window are pruned on each check.
type Limiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	seen map[string][]time.Time
}

func New(limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		limit:  limit,
		window: window,
		seen:   make(map[string][]time.Time),
	}
}

// Allow reports whether another request from key fits inside the window,
// and records it if so.
func (limiter *Limiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-limiter.window)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	recent := limiter.seen[key]
	pruned := recent[:0]
	for _, timestamp := range recent {
		if timestamp.After(cutoff) {
			pruned = append(pruned, timestamp)
		}
	}

	if len(pruned) >= limiter.limit {
		limiter.seen[key] = pruned
		return false
	}

	limiter.seen[key] = append(pruned, now)
	return true
}
