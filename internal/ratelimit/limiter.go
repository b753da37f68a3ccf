// Package ratelimit implements per-client request rate limiting for the
// exposed ingestion and read endpoints.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// client tracks the token bucket and last activity for one caller.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter manages independent token buckets keyed by caller identity
// (typically the client IP).
type ClientLimiter struct {
	clients map[string]*client
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	logger  *zap.Logger
}

// NewClientLimiter creates a limiter allowing `requests` per `window` with
// a burst of the full window allowance.
func NewClientLimiter(requests int, window time.Duration, logger *zap.Logger) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		logger:  logger,
	}
}

// Allow reports whether the caller may proceed, consuming one token.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	c, found := l.clients[key]
	if !found {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	limiter := c.limiter
	l.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("client", key),
		)
	}
	return allowed
}

// Prune drops clients idle longer than maxIdle.
func (l *ClientLimiter) Prune(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	pruned := 0
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > maxIdle {
			delete(l.clients, key)
			pruned++
		}
	}

	if pruned > 0 {
		l.logger.Debug("pruned idle rate limit clients",
			zap.Int("count", pruned),
		)
	}
}

// Size returns the number of tracked clients.
func (l *ClientLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
