// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling actor from identity headers. Clients send
// X-User-Type ("customer" or "shop") together with X-User-ID (the external
// id). The resolved actor is stored in the Gin context and its internal id
// under "userID", which the idempotency validator keys on. The request logger
// is rebound with the actor's kind and id.
//
// Requests without identity headers pass through anonymously; handlers that
// need an actor call ActorFrom and reject the request themselves.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

const (
	HeaderUserType = "X-User-Type"
	HeaderUserID   = "X-User-ID"

	ctxKeyActor  = "actor"
	ctxKeyUserID = "userID"
)

// ActorResolver maps identity headers to an actor.
type ActorResolver interface {
	Resolve(ctx context.Context, kindHint, externalID string) (domain.Actor, error)
}

// ActorIdentity resolves X-User-Type / X-User-ID. A malformed kind is a 400;
// an unknown id is a 401. Lookup failures are a 500.
func ActorIdentity(res ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := strings.TrimSpace(c.GetHeader(HeaderUserType))
		ext := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if kind == "" && ext == "" {
			c.Next()
			return
		}

		actor, err := res.Resolve(c.Request.Context(), kind, ext)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrInvalidKind):
			abortIdentity(c, http.StatusBadRequest, "bad_request", err.Error())
			return
		case errors.Is(err, services.ErrActorNotFound):
			abortIdentity(c, http.StatusUnauthorized, "unauthorized", "unknown actor")
			return
		default:
			LoggerFrom(c).Error().Err(err).Str("kind", kind).Msg("resolve actor")
			abortIdentity(c, http.StatusInternalServerError, "internal_error", "could not resolve actor")
			return
		}

		c.Set(ctxKeyActor, actor)
		c.Set(ctxKeyUserID, actor.ID)
		withActor(c, actor)
		c.Next()
	}
}

// ActorFrom returns the actor resolved for this request, if any.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

func abortIdentity(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
