package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/http/middleware"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// HeaderIdempotencyReplayed is set on responses served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// CreateRequestBody is the JSON payload for submitting a design to shops.
type CreateRequestBody struct {
	// DesignID is the design being requested.
	DesignID string `json:"design_id" binding:"required" example:"design-1"`
	// Contents is a free-form note for the shop.
	Contents string `json:"contents" example:"Short nails please"`
	// ShopIDs addresses shops explicitly; it wins over lat/lng.
	ShopIDs []string `json:"shop_ids" binding:"omitempty,max=50,dive,required"`
	Lat     *float64 `json:"lat" binding:"required_with=Lng" example:"37.5665"`
	Lng     *float64 `json:"lng" binding:"required_with=Lat" example:"126.978"`
	Limit   int      `json:"limit" binding:"omitempty,min=1,max=100" example:"5"`
}

// RequestSummary describes one created request.
type RequestSummary struct {
	RequestID string `json:"request_id"`
	ShopID    string `json:"shop_id"`
	DesignID  string `json:"design_id"`
	Price     int64  `json:"price"`
	Status    string `json:"status" example:"pending"`
}

// CompletedRequestResponse acknowledges a submission. Requests is empty when
// every target already had an open request.
type CompletedRequestResponse struct {
	Type     string           `json:"type" example:"completed_request"`
	Status   string           `json:"status" example:"pending"`
	Message  string           `json:"message" example:"Service request submitted."`
	Requests []RequestSummary `json:"requests"`
}

// RespondBody is the JSON payload for a shop decision.
type RespondBody struct {
	Status   string `json:"status" binding:"required,oneof=accepted rejected" example:"accepted"`
	Price    *int64 `json:"price" binding:"omitempty,min=0" example:"35000"`
	Contents string `json:"contents" example:"See you at 3pm"`
}

// ResponseData carries the accepted offer.
type ResponseData struct {
	ShopName string `json:"shop_name"`
	Price    int64  `json:"price"`
	Contents string `json:"contents"`
}

// CompletedResponseResponse confirms a decision.
type CompletedResponseResponse struct {
	Type         string       `json:"type" example:"completed_response"`
	Status       string       `json:"status" example:"accepted"`
	RequestID    string       `json:"request_id"`
	ResponseData ResponseData `json:"response_data"`
}

func summarize(reqs []domain.ServiceRequest) []RequestSummary {
	out := make([]RequestSummary, len(reqs))
	for i, r := range reqs {
		out[i] = RequestSummary{RequestID: r.ID, ShopID: r.ShopID, DesignID: r.DesignID, Price: r.Price, Status: r.Status}
	}
	return out
}

func completedRequest(reqs []domain.ServiceRequest) CompletedRequestResponse {
	msg := "Service request submitted."
	if len(reqs) == 0 {
		msg = "Already requested; waiting for the shop."
	}
	return CompletedRequestResponse{
		Type:     "completed_request",
		Status:   domain.StatusPending,
		Message:  msg,
		Requests: summarize(reqs),
	}
}

//
// Handlers
//

// CreateRequest godoc
// @ID          createRequest
// @Summary     Request a design from shops
// @Description Creates one pending request per target shop and notifies each shop's live sessions. Targets are shop_ids, else the shops nearest to lat/lng, else the design's owner. Retrying with the same Idempotency-Key replays the original result.
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-Type      header  string  true  "Actor kind"        Enums(customer)
// @Param       X-User-ID        header  string  true  "Customer id"       example(alice)
// @Param       Idempotency-Key  header  string  false "Idempotency key"   example(6a1f0e8c-req-1)
// @Param       body             body    handlers.CreateRequestBody  true  "Request payload"
//
// @Success     201  {object}  handlers.CompletedRequestResponse "Created"
// @Success     200  {object}  handlers.CompletedRequestResponse "Nothing new or replayed"
// @Header      200  {string}  Idempotency-Replayed "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unknown actor"
// @Failure     403  {object}  handlers.ErrorResponse "Not a customer"
// @Failure     404  {object}  handlers.ErrorResponse "Design or shop not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	actor, found := requireActor(c, domain.KindCustomer)
	if !found {
		return
	}
	ctx := c.Request.Context()
	key, hasKey := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)

	if hasKey && middleware.IsReplay(c) && h.db != nil {
		if h.replay(c, actor.ID, scope, key) {
			return
		}
	}

	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	var origin *services.Point
	if body.Lat != nil && body.Lng != nil {
		origin = &services.Point{Lat: *body.Lat, Lng: *body.Lng}
	}

	created, err := h.coord.CreateRequest(ctx, services.CreateRequestInput{
		CustomerID: actor.ID,
		DesignID:   strings.TrimSpace(body.DesignID),
		Contents:   body.Contents,
		ShopIDs:    body.ShopIDs,
		Origin:     origin,
		Limit:      body.Limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if len(created) == 0 {
		status = http.StatusOK
	}
	if hasKey && h.db != nil {
		ids := make([]string, len(created))
		for i, r := range created {
			ids[i] = r.ID
		}
		if _, err := repo.CreateIdempotency(ctx, h.db, actor.ID, scope, key, ids, status, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}
	ok(c, status, completedRequest(created))
}

// replay serves the stored result for key. It reports false when nothing
// usable is stored, so the caller proceeds normally.
func (h *Handlers) replay(c *gin.Context, actorID, scope, key string) bool {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, actorID, scope, key, time.Now().UTC())
	if err != nil {
		return false
	}
	ids := repo.ResultIDs(rec)
	reqs := make([]domain.ServiceRequest, 0, len(ids))
	for _, id := range ids {
		r, err := repo.GetRequest(ctx, h.db, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			middleware.LoggerFrom(c).Warn().Err(err).Str("request_id", id).Msg("replay lookup")
			return false
		}
		reqs = append(reqs, *r)
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	status := rec.Status
	if status == 0 {
		status = http.StatusOK
	}
	ok(c, status, completedRequest(reqs))
	return true
}

// RespondToRequest godoc
// @ID          respondToRequest
// @Summary     Accept or reject a request
// @Description Records the calling shop's decision on a pending request. Exactly one decision is ever recorded; later ones get 409. The customer's live sessions receive new_response.
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-Type  header  string  true  "Actor kind"   Enums(shop)
// @Param       X-User-ID    header  string  true  "Shop id"      example(nails)
// @Param       id           path    string  true  "Request id"
// @Param       body         body    handlers.RespondBody  true  "Decision"
//
// @Success     200  {object}  handlers.CompletedResponseResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unknown actor"
// @Failure     403  {object}  handlers.ErrorResponse "Not this shop's request"
// @Failure     404  {object}  handlers.ErrorResponse "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already answered"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /requests/{id}/respond [post]
func (h *Handlers) RespondToRequest(c *gin.Context) {
	actor, found := requireActor(c, domain.KindShop)
	if !found {
		return
	}
	requestID := strings.TrimSpace(c.Param("id"))
	if requestID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id required")
		return
	}

	var body RespondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be accepted or rejected")
		return
	}

	res, err := h.coord.Respond(c.Request.Context(), services.RespondInput{
		RequestID: requestID,
		ShopID:    actor.ID,
		Decision:  body.Status,
		Price:     body.Price,
		Contents:  body.Contents,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, CompletedResponseResponse{
		Type:      "completed_response",
		Status:    res.Request.Status,
		RequestID: res.Request.ID,
		ResponseData: ResponseData{
			ShopName: res.ShopName,
			Price:    res.Price,
			Contents: res.Contents,
		},
	})
}
