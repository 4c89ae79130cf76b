// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file owns the request-scoped logger. RequestID assigns the correlation
// id and attaches a zerolog.Logger carrying it; ActorIdentity later adds the
// caller's kind and internal id to the same logger through withActor. Handlers
// and services reach it with LoggerFrom, so a single request (or a websocket
// handshake) logs with consistent fields from edge to datastore.
//
// Access logs themselves are written by RedactingLogger; Recovery turns
// panics into the standard JSON error envelope.
//
// Recommended order:
//  1. RequestID()
//  2. RedactingLogger(...)
//  3. Recovery()
//  4. ActorIdentity(...)
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds client-supplied correlation ids.
	maxRequestIDLength = 128
)

// RequestID attaches (or propagates) a correlation identifier per request and
// stores a logger tagged with it.
//
// An incoming X-Request-ID is reused when present and no longer than 128
// bytes; otherwise a UUIDv4 is generated. The id is echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)

		l := log.With().Str("request_id", rid).Logger()
		c.Set(loggerKey, &l)
		c.Next()
	}
}

// withActor rebinds the request logger with the resolved actor.
func withActor(c *gin.Context, a domain.Actor) {
	l := LoggerFrom(c).With().
		Str("actor_kind", a.Kind.String()).
		Str("actor_id", a.ID).
		Logger()
	c.Set(loggerKey, &l)
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500 error.
//
// If nothing has been written yet the client receives
// {"request_id": "...", "code": "internal_error", "message": "internal server error"};
// otherwise the connection is simply aborted with 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := c.GetString(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("path", c.Request.URL.Path).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// Outside a RequestID chain it returns a copy of the global logger, so callers
// never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// truncate returns s unchanged when within max length, otherwise it truncates
// s to max bytes and appends an ellipsis. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
