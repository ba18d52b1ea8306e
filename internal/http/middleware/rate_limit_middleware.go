package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fleetway/fleetway/internal/http/response"
	"github.com/fleetway/fleetway/internal/observability"
)

// RateLimiter is a per-client token bucket. Keys default to the client IP,
// which is good enough behind RealIP; distributed deployments should front
// this with an edge limiter.
type RateLimiter struct {
	scope    string
	capacity float64
	refill   float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*bucket
	sweepAt time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func NewRateLimiter(scope string, limitPerMinute int) *RateLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 1
	}
	return &RateLimiter{
		scope:    scope,
		capacity: float64(limitPerMinute),
		refill:   float64(limitPerMinute) / 60,
		buckets:  make(map[string]*bucket),
		sweepAt:  time.Now().Add(time.Minute),
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retryAfter := rl.take(clientIP(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(rl.capacity)))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) take(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > 2*time.Minute {
				delete(rl.buckets, k)
			}
		}
		rl.sweepAt = now.Add(time.Minute)
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[key] = b
	}
	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens = math.Min(rl.capacity, b.tokens+elapsed*rl.refill)
	b.lastSeen = now

	if b.tokens < 1 {
		wait := time.Duration(((1 - b.tokens) / rl.refill) * float64(time.Second))
		return false, 0, wait
	}
	b.tokens--
	return true, int(b.tokens), 0
}

func retrySeconds(d time.Duration) int {
	s := int(d.Round(time.Second).Seconds())
	if s < 1 {
		s = 1
	}
	return s
}
