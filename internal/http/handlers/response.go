// Every failure is written as an ErrorResponse envelope carrying the request
// id, so a client can quote it and an operator can find the matching log
// line. Every success body carries a "type" discriminator equal to the
// realtime frame type of the same operation ("shop_list",
// "completed_request", "completed_response", "response_list"), so clients
// can share decoding between the HTTP and websocket surfaces.
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "conflict",
//	  "message": "request is not pending"
//	}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nailo-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to users
	Message string `json:"message" example:"request not found"`
}

// fail aborts with an ErrorResponse. Server errors are logged at error level,
// client errors at debug so routine 4xx traffic stays quiet.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for other packages: the router's fallbacks and the realtime
// handshake refusal use it so every surface shares one envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
