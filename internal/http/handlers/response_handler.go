package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// ResponseListResponse is the customer's request/response projection grouped
// by design, then by shop.
type ResponseListResponse struct {
	Type    string                  `json:"type" example:"response_list"`
	Designs []services.DesignThread `json:"designs"`
}

// ListResponses godoc
// @ID          listResponses
// @Summary     List the caller's requests and responses
// @Description Returns every request the calling customer made (optionally for one design) with the shop's response, if any. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Responses
// @Produce     json
//
// @Param       X-User-Type    header  string  true  "Actor kind"                 Enums(customer)
// @Param       X-User-ID      header  string  true  "Customer id"                example(alice)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       design_id      query   string  false "Only this design"
//
// @Success     200  {object}  handlers.ResponseListResponse
// @Header      200  {string}  ETag "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse "Unknown actor"
// @Failure     403  {object}  handlers.ErrorResponse "Not a customer"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /responses [get]
func (h *Handlers) ListResponses(c *gin.Context) {
	actor, found := requireActor(c, domain.KindCustomer)
	if !found {
		return
	}
	ctx := c.Request.Context()
	designID := strings.TrimSpace(c.Query("design_id"))

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.RequestsStats(ctx, h.db, actor.ID, designID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"responses:%s:%s:%d:%d"`, actor.ID, designID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	designs, err := h.coord.ListResponses(ctx, actor.ID, designID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, ResponseListResponse{Type: "response_list", Designs: designs})
}
