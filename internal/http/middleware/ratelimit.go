// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-key
// buckets and opportunistic garbage collection. The API has no end-user
// authentication (clinic kiosks and the dialogue engine call it from known
// hosts), so buckets are keyed by client IP.
//
// The limiter is process-local. For horizontally scaled deployments a
// distributed limiter would be required to enforce global limits; this one
// exists for edge-level abuse control.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket. It must
// return a stable string for the duration of a request.
type keyFunc func(*gin.Context) string

// KeyByClientIP returns a keyFunc that buckets requests by client IP
// address. Keys are prefixed to leave room for other namespaces.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single rate limiter and the last time it was seen, so
// idle entries can be evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. Buckets are
// created on demand in a mutex-guarded map; idle buckets are evicted after
// a TTL via opportunistic cleanup during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. A burst <= 0 is coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute, // evict idle entries after TTL
	}
}

// getVisitor returns (and updates) the limiter for key, creating it if
// absent. It also performs opportunistic GC of idle entries after ~5000
// lookups. GC runs before the requested visitor is touched so an old
// bucket can be evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay of a previously completed message append. Replays are served
// without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces per-key token-bucket
// limits. Replays detected by IdempotencyValidator bypass limiting; all
// other requests are checked and rejected with 429 and a minimal
// Retry-After header when the bucket is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		lim := rl.getVisitor(key)

		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
