// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the access log. Every request produces one
// "http_request" line; a websocket handshake that upgraded produces one
// "ws_session" line when the session ends, with the session's lifetime as
// its duration.
//
// Values are scrubbed before they are logged. Query strings and header values
// have e-mail addresses, phone numbers and UUIDs replaced, and coordinates
// are coarsened to two decimals (about 1 km) so customer positions never land
// in logs at full precision. Credential headers are masked outright.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so UUID hex segments never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	coordRE = regexp.MustCompile(`(?i)\b(lat|lng|lon)=(-?\d{1,3}\.\d{1,2})\d*`)
)

// alwaysMasked headers are replaced wholesale.
var alwaysMasked = []string{"authorization", "cookie", "set-cookie", "sec-websocket-key"}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) to mask fully.
	MaskHeaders []string
}

// redactText scrubs one value. Coordinates are coarsened first; then UUIDs
// go before phone numbers because the phone pattern is the loosest.
func redactText(s string) string {
	if s == "" {
		return s
	}
	s = coordRE.ReplaceAllString(s, "$1=$2")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// RedactingLogger returns the access-log middleware.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(alwaysMasked)+len(opts.MaskHeaders))
	for _, h := range append(alwaysMasked, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		upgrade := c.IsWebsocket()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := truncate(redactText(c.Request.URL.RawQuery), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redactText(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.WithLevel(levelFor(status)).
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Interface("headers", headers)
		if a, ok := ActorFrom(c); ok {
			ev = ev.Str("actor_kind", a.Kind.String()).Str("actor_id", a.ID)
		}
		if upgrade && status < 400 {
			ev.Bool("upgrade", true).Msg("ws_session")
			return
		}
		ev.Int("bytes", c.Writer.Size()).Msg("http_request")
	}
}
