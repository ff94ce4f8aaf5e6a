package exchange

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// RateLimiter tracks per-key API rate limit usage from response headers.
type RateLimiter struct {
	remaining     int
	limit         int
	lastUpdate    time.Time
	resetInterval time.Duration
	mu            sync.RWMutex
}

// NewRateLimiter creates a rate limiter for one API key.
// limit: requests allowed per window; resetInterval: the window length.
func NewRateLimiter(limit int, resetInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		remaining:     limit,
		limit:         limit,
		resetInterval: resetInterval,
		lastUpdate:    time.Now(),
	}
}

// UpdateFromHeader records the remaining-quota header from a venue response.
func (rl *RateLimiter) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}
	remaining, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.remaining = remaining
	rl.lastUpdate = time.Now()

	if rl.limit > 0 {
		pct := float64(rl.remaining) / float64(rl.limit) * 100
		if pct <= 5 {
			log.Printf("rate limit critical: %d/%d remaining - approaching ban threshold", rl.remaining, rl.limit)
		} else if pct <= 20 {
			log.Printf("rate limit warning: %d/%d remaining", rl.remaining, rl.limit)
		}
	}
}

// Remaining returns the last observed remaining quota; the limit is assumed
// restored once a full window has passed without traffic.
func (rl *RateLimiter) Remaining() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if time.Since(rl.lastUpdate) >= rl.resetInterval {
		return rl.limit
	}
	return rl.remaining
}

// ShouldDelay returns true if the next request should wait.
func (rl *RateLimiter) ShouldDelay() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rl.limit == 0 || time.Since(rl.lastUpdate) >= rl.resetInterval {
		return false
	}
	return float64(rl.remaining)/float64(rl.limit) <= 0.1
}
