// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger used in
// production. Patient phone numbers are the primary lookup key of the API,
// so they routinely appear in query strings; this logger scrubs them (and
// email-shaped values) from request metadata before anything reaches the
// log stream, and fully masks sensitive headers.
//
// Bodies are never logged, which is where names, symptoms, and conversation
// text travel.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders specifies extra HTTP header names whose values will be fully
// replaced with "[REDACTED]". Matching is case-insensitive and merged with
// the built-in sensitive headers (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed.
//
// It logs method, route path, query string, status, response size, latency,
// and request headers. Email addresses and phone-shaped digit sequences are
// replaced in query strings and header values; masked headers are replaced
// wholesale. Level is info by default, warn for 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Matches local and international formats: "+250 788 123 456",
	// "0788123456", "(212) 555-1212".
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{3,4}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		// Email first: phone is the loosest pattern.
		out := emailRE.ReplaceAllString(s, "[REDACTED:email]")
		out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
		return out
	}

	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			keyLower := strings.ToLower(k)
			val := strings.Join(vv, ", ")
			if _, ok := maskHeaders[keyLower]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(val)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := c.Writer.Size()

		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", latency).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
