// Package handlers exposes the request coordination operations over plain
// HTTP. Every endpoint mirrors one realtime action and answers with the body
// of the frame that action would have produced:
//   - GET  /shops/nearby            (shop_list)
//   - POST /requests                (completed_request, Idempotency-Key aware)
//   - POST /requests/{id}/respond   (completed_response)
//   - GET  /responses               (response_list, ETag support)
//
// Handlers are transport-thin: they read the actor resolved by
// middleware.ActorIdentity, call the coordinator and translate the outcome
// into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/http/middleware"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// Coordinator is the subset of services.Coordinator the handlers call.
//
// Implementations must be safe for concurrent use and honor ctx.
type Coordinator interface {
	NearbyShops(ctx context.Context, origin *services.Point, limit int) ([]services.ShopView, error)
	CreateRequest(ctx context.Context, in services.CreateRequestInput) ([]domain.ServiceRequest, error)
	Respond(ctx context.Context, in services.RespondInput) (*services.RespondResult, error)
	ListResponses(ctx context.Context, customerID, designID string) ([]services.DesignThread, error)
}

// Handlers groups the HTTP endpoints. DB backs idempotency replays and ETag
// computation; when nil both features are skipped.
type Handlers struct {
	coord   Coordinator
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs Handlers. idemTTL bounds how long an Idempotency-Key can be
// replayed; values <= 0 default to 24h.
func New(coord Coordinator, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{coord: coord, db: db, idemTTL: idemTTL}
}

// requireActor returns the caller when it is of the wanted kind, otherwise it
// writes the failure and returns ok=false.
func requireActor(c *gin.Context, want domain.ActorKind) (domain.Actor, bool) {
	a, found := middleware.ActorFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-Type and X-User-ID headers required")
		return domain.Actor{}, false
	}
	if a.Kind != want {
		fail(c, http.StatusForbidden, ErrCodeWrongActor, "only a "+want.String()+" may call this endpoint")
		return domain.Actor{}, false
	}
	return a, true
}

// writeServiceError maps coordinator errors onto the error envelope.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCoordinates),
		errors.Is(err, services.ErrInvalidDecision),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrContentsTooLong),
		errors.Is(err, services.ErrInvalidKind):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrDesignNotFound),
		errors.Is(err, services.ErrShopNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrActorNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "request cancelled")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("coordinator call failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
