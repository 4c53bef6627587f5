// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for message appends. Clinic
// connectivity is unreliable and clients retry aggressively; an
// Idempotency-Key header lets a retried POST return the originally stored
// conversation message instead of appending a duplicate turn.
//
// The middleware validates the header, stashes the normalized key in the
// request context, and optionally consults a lookup to detect previously
// completed requests. Persistence stays behind the narrow
// IdempotencyLookup function type; handlers remain in control of how a
// replay is served.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihirwe/go-triage-backend/internal/utils"
)

// HeaderIdempotencyKey is the request header that clients use to convey an
// idempotency key for unsafe operations. The value is expected to be stable
// for a given semantic operation so retries can be deduplicated.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates
// presence. Handlers should prefer this over reading the header directly.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the middleware detected that this request would
// replay a previously completed append for the same (session, key) pair.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation behavior for
// IdempotencyValidator. TTL enforcement belongs inside the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative
	// RFC7230-like token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a successful, still-valid result exists
// for (sessionID, key) at the given time. Implementations typically consult
// the idempotency table, which records the previous message and TTL window.
//
// Return exists=true when the prior response can be replayed; return an
// error only for lookup failures (which should not block normal
// processing).
type IdempotencyLookup func(ctx context.Context, sessionID uint, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context, and optionally checks for a prior
// completed request via the supplied lookup. When a replay is detected it
// marks the context so handlers can serve the stored message and the rate
// limiter can skip the request.
//
// Behavior:
//   - Absent header: no-op.
//   - Invalid header: 400 with a compact error body.
//   - Replay detected: replay + rate-bypass flags set.
//   - Otherwise the chain continues normally.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			// Keys only apply to POST /sessions/:id/messages.
			sessionID := utils.AtouDefault(c.Param("id"), 0)
			if sessionID > 0 {
				now := time.Now().UTC()
				if exists, _ := lookup(c.Request.Context(), sessionID, key, now); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}
