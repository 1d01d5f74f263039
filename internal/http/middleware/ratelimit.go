package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter applies a per-client token bucket. The chat endpoint fronts a
// metered model API, so unauthenticated clients get a hard ceiling.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing rate requests/sec with the given
// burst size per client.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	go rl.evictStale()
	return rl
}

// Allow reports whether a request from the client is within the rate limit.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), last: now}
		rl.buckets[client] = b
	}

	b.tokens += now.Sub(b.last).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictStale drops buckets idle long enough to be full again anyway.
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for client, b := range rl.buckets {
			if b.last.Before(cutoff) {
				delete(rl.buckets, client)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the X-Real-Ip header set by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
