package realtime

import (
	"encoding/json"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// Inbound actions.
const (
	ActionNearbyShops    = "nearby_shops"
	ActionRequestService = "request_service"
	ActionRespondService = "respond_service"
	ActionGetResponses   = "get_responses"
)

// Outbound frame types.
const (
	TypeShopList          = "shop_list"
	TypeCompletedRequest  = "completed_request"
	TypeNewRequest        = "new_request"
	TypeCompletedResponse = "completed_response"
	TypeNewResponse       = "new_response"
	TypeResponseList      = "response_list"
)

// Frame is the inbound envelope. Older clients put the payload fields next
// to action instead of under data; both shapes are accepted.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Inbound payloads. Validation uses gin's binding tags; coordinate ranges
// are checked by the coordinator.

type nearbyShopsData struct {
	Lat   *float64 `json:"lat"   binding:"required_with=Lng"`
	Lng   *float64 `json:"lng"   binding:"required_with=Lat"`
	Limit int      `json:"limit" binding:"omitempty,min=1,max=100"`
}

type requestServiceData struct {
	DesignID string   `json:"design_id" binding:"required"`
	Contents string   `json:"contents"`
	ShopIDs  []string `json:"shop_ids"  binding:"omitempty,max=50,dive,required"`
	Lat      *float64 `json:"lat"       binding:"required_with=Lng"`
	Lng      *float64 `json:"lng"       binding:"required_with=Lat"`
	Limit    int      `json:"limit"     binding:"omitempty,min=1,max=100"`
}

type respondServiceData struct {
	RequestID string `json:"request_id" binding:"required"`
	Status    string `json:"status"     binding:"required,oneof=accepted rejected"`
	Price     *int64 `json:"price"      binding:"omitempty,min=0"`
	Contents  string `json:"contents"`
}

type getResponsesData struct {
	DesignID string `json:"design_id"`
}

// Outbound frames.

type shopListFrame struct {
	Type  string              `json:"type"`
	Shops []services.ShopView `json:"shops"`
}

type requestSummary struct {
	RequestID string `json:"request_id"`
	ShopID    string `json:"shop_id"`
	DesignID  string `json:"design_id"`
	Price     int64  `json:"price"`
	Status    string `json:"status"`
}

type completedRequestFrame struct {
	Type     string           `json:"type"`
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Requests []requestSummary `json:"requests"`
}

type newRequestFrame struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id"`
	CustomerName string `json:"customer_name"`
	DesignID     string `json:"design_id"`
	Price        int64  `json:"price"`
}

type responseData struct {
	ShopName string `json:"shop_name"`
	Price    int64  `json:"price"`
	Contents string `json:"contents"`
}

type completedResponseFrame struct {
	Type         string       `json:"type"`
	Status       string       `json:"status"`
	RequestID    string       `json:"request_id"`
	ResponseData responseData `json:"response_data"`
}

type newResponseFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	ShopName  string `json:"shop_name"`
	Status    string `json:"status"`
	Price     int64  `json:"price"`
	Contents  string `json:"contents"`
}

type responseListFrame struct {
	Type    string                  `json:"type"`
	Designs []services.DesignThread `json:"designs"`
}

// errorFrame carries either a message or a field -> rule map.
type errorFrame struct {
	Error any `json:"error"`
}

func summarize(reqs []domain.ServiceRequest) []requestSummary {
	out := make([]requestSummary, len(reqs))
	for i, r := range reqs {
		out[i] = requestSummary{RequestID: r.ID, ShopID: r.ShopID, DesignID: r.DesignID, Price: r.Price, Status: r.Status}
	}
	return out
}

// handleEvent renders a pushed event as the frame its session receives, or
// nil for an event it does not know.
func handleEvent(ev domain.Event) any {
	switch e := ev.(type) {
	case domain.NewRequestEvent:
		return newRequestFrame{
			Type:         TypeNewRequest,
			RequestID:    e.RequestID,
			CustomerName: e.CustomerName,
			DesignID:     e.DesignID,
			Price:        e.Price,
		}
	case domain.ResponseCompletedEvent:
		return completedResponseFrame{
			Type:         TypeCompletedResponse,
			Status:       e.Status,
			RequestID:    e.RequestID,
			ResponseData: responseData{ShopName: e.ShopName, Price: e.Price, Contents: e.Contents},
		}
	case domain.NewResponseEvent:
		return newResponseFrame{
			Type:      TypeNewResponse,
			RequestID: e.RequestID,
			ShopName:  e.ShopName,
			Status:    e.Status,
			Price:     e.Price,
			Contents:  e.Contents,
		}
	default:
		// unreachable while Event stays closed
		return nil
	}
}
