// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file handles the Idempotency-Key header on POST endpoints. Submitting
// a design to shops is the operation clients retry most (flaky mobile
// links); a retried POST /requests with the same key must not fan out a
// second round of new_request notifications. The validator checks the key,
// stashes it, and asks a lookup whether this actor already completed this
// route with this key. Handlers then replay the stored result.
//
// Safe methods ignore the header entirely.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key for a POST.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored result exists
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a completed result exists for this actor, route
// and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid result exists for
// (actorID, scope, key) at now. Expiry is the lookup's concern. An error is
// logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, actorID, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates Idempotency-Key on POST requests.
//
//   - no header, or a safe method: no-op
//   - malformed key: 400 {"request_id", "code": "bad_idempotency_key", "message"}
//   - stored result for an identified actor: IsReplay and rate-limit bypass set
//
// Anonymous callers never replay; keys only mean something per actor.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if uid := userIDFromCtx(c); lookup != nil && uid != "" {
			scope := IdempotencyScope(c)
			exists, err := lookup(c.Request.Context(), uid, scope, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup")
			case exists:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				idempotentReplays.WithLabelValues(c.FullPath()).Inc()
			}
		}

		c.Next()
	}
}

// IdempotencyScope names the operation a key belongs to: the method plus the
// matched route pattern, so the same key on different endpoints never
// collides. Handlers use it when storing results.
func IdempotencyScope(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// userIDFromCtx extracts the actor identifier stored by ActorIdentity, or ""
// when the request is anonymous.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
