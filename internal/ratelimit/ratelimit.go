// Package ratelimit provides a per-key token bucket limiter used to throttle
// registration datagrams and HTTP API requests by source address.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// idleTTL is how long an unused key keeps its bucket.
	idleTTL = 10 * time.Minute

	// gcInterval is how often idle buckets are dropped.
	gcInterval = 5 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter allows up to count events per window for each key, with bursts of count.
type Limiter struct {
	clients map[string]*client
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
}

// New returns a limiter for count events per window, or nil when count or
// window is not positive. A nil *Limiter allows everything.
func New(count int, window time.Duration) *Limiter {
	if count <= 0 || window <= 0 {
		return nil
	}

	return &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(count) / window.Seconds()),
		burst:   count,
	}
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	cli, found := l.clients[key]
	if !found {
		cli = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cli
	}
	cli.lastSeen = time.Now()
	limiter := cli.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Sweep drops keys idle for longer than ttl and returns how many were dropped.
func (l *Limiter) Sweep(ttl time.Duration) int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	dropped := 0
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > ttl {
			delete(l.clients, key)
			dropped++
		}
	}

	return dropped
}

// Run drops idle keys periodically until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l == nil {
		return
	}

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(idleTTL)
		}
	}
}
