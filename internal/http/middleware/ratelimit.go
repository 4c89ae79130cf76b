// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the HTTP edge rate limiter: one token bucket per
// caller, where a caller is the resolved actor ("customer:<id>" or
// "shop:<id>") or, for anonymous traffic such as nearby-shop lookups and
// websocket handshakes that have not identified yet, the client IP.
//
// Buckets live in an expirable LRU so idle callers are forgotten and the key
// space stays bounded. Idempotent replays (flagged by IdempotencyValidator)
// never consume tokens. The limiter is process-local.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultBucketTTL  = 10 * time.Minute
	defaultMaxBuckets = 10000
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByActorOrIP keys buckets by the actor's group key when ActorIdentity
// resolved one, else by client IP.
func KeyByActorOrIP() keyFunc {
	return func(c *gin.Context) string {
		if a, ok := ActorFrom(c); ok && a.ID != "" {
			return string(a.GroupKey())
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter is a per-caller token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   keyFunc
	buckets *expirable.LRU[string, *rate.Limiter]
	exempt  map[string]struct{}
}

// NewRateLimiter constructs a limiter refilling rps tokens per second with
// the given burst (values <= 0 become 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return newRateLimiter(rps, burst, keyFn, defaultMaxBuckets, defaultBucketTTL)
}

func newRateLimiter(rps float64, burst int, keyFn keyFunc, size int, ttl time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		exempt:  map[string]struct{}{},
	}
}

// Exempt excludes route paths (as registered, e.g. "/health") from limiting.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// bucket returns the limiter for key, creating it if absent. Every lookup
// re-adds the entry so active callers keep their bucket past the TTL.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	lim, ok := rl.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
	}
	rl.buckets.Add(key, lim)
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay of a completed request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. A rejected request gets
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds until a token is available>
//	{"request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := rl.exempt[c.FullPath()]; skip || IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.keyFn(c)
		res := rl.bucket(key).Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.Cancel()

		rateLimited.WithLabelValues(keyScope(key)).Inc()
		retry := 1
		if res.OK() {
			retry = int(math.Ceil(delay.Seconds()))
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// keyScope is the bounded label for a bucket key.
func keyScope(key string) string {
	if scope, _, ok := strings.Cut(key, ":"); ok {
		return scope
	}
	return "other"
}
