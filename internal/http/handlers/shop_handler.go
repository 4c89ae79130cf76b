package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nailo-backend/internal/services"
	"github.com/tbourn/go-nailo-backend/internal/utils"
)

const maxNearbyLimit = 100

// NearbyShopsResponse lists shops, nearest first when an origin was given.
type NearbyShopsResponse struct {
	Type  string              `json:"type" example:"shop_list"`
	Shops []services.ShopView `json:"shops"`
}

// parseOrigin reads lat/lng query params. Both absent means no origin.
func parseOrigin(c *gin.Context) (*services.Point, bool) {
	latS, lngS := strings.TrimSpace(c.Query("lat")), strings.TrimSpace(c.Query("lng"))
	if latS == "" && lngS == "" {
		return nil, true
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lng, err2 := strconv.ParseFloat(lngS, 64)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return &services.Point{Lat: lat, Lng: lng}, true
}

// NearbyShops godoc
// @ID          nearbyShops
// @Summary     List nearby shops
// @Description Ranks active shops by great-circle distance from (lat,lng). Without coordinates every active shop is listed. Anonymous callers are allowed.
// @Tags        Shops
// @Produce     json
//
// @Param       X-User-Type  header  string   false "Actor kind"             Enums(customer, shop)
// @Param       X-User-ID    header  string   false "Actor external id"      example(alice)
// @Param       lat          query   number   false "Origin latitude"        minimum(-90)  maximum(90)
// @Param       lng          query   number   false "Origin longitude"       minimum(-180) maximum(180)
// @Param       limit        query   int      false "Max shops returned"     minimum(1)    maximum(100)
//
// @Success     200  {object}  handlers.NearbyShopsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /shops/nearby [get]
func (h *Handlers) NearbyShops(c *gin.Context) {
	origin, valid := parseOrigin(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lng must both be numbers")
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), maxNearbyLimit)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	shops, err := h.coord.NearbyShops(c.Request.Context(), origin, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, NearbyShopsResponse{Type: "shop_list", Shops: shops})
}
