// Package middleware provides HTTP middleware for the API surface.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket. Buckets refill continuously at
// the configured rate and idle clients are evicted in the background.
type RateLimiter struct {
	mu             sync.Mutex
	clients        map[string]*bucket
	requestsPerMin int
	cleanupTicker  *time.Ticker
	stopOnce       sync.Once
	stopCh         chan struct{}
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerMin requests
// per client per minute.
func NewRateLimiter(requestsPerMin int) *RateLimiter {
	rl := &RateLimiter{
		clients:        make(map[string]*bucket),
		requestsPerMin: requestsPerMin,
		cleanupTicker:  time.NewTicker(5 * time.Minute),
		stopCh:         make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Middleware wraps a handler with rate limiting. Clients are identified by
// remote IP; detection runs from the same operator console share a bucket.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next(w, r)
	}
}

// clientKey extracts the client IP, ignoring the ephemeral port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.clients[key]
	if !ok {
		rl.clients[key] = &bucket{
			tokens:     rl.requestsPerMin - 1,
			lastRefill: now,
		}
		return true
	}

	elapsed := now.Sub(b.lastRefill)
	refill := int(elapsed.Minutes() * float64(rl.requestsPerMin))
	if refill > 0 {
		b.tokens = min(rl.requestsPerMin, b.tokens+refill)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// cleanup evicts clients idle for more than 10 minutes.
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, b := range rl.clients {
				if now.Sub(b.lastRefill) > 10*time.Minute {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCh)
	})
}
