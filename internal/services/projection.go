package services

import (
	"time"

	"github.com/tbourn/go-nailo-backend/internal/domain"
)

// ShopView is the wire shape of a shop in nearby listings.
type ShopView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func newShopView(s domain.Shop, distance *float64) ShopView {
	return ShopView{ID: s.ID, Name: s.Name, Lat: s.Lat, Lng: s.Lng, DistanceKm: distance}
}

// DesignThread groups a customer's requests for one design.
type DesignThread struct {
	DesignID     string       `json:"design_id"`
	DesignName   string       `json:"design_name"`
	ShopRequests []ShopThread `json:"shop_requests"`
}

// ShopThread groups the requests a customer sent one shop for one design.
type ShopThread struct {
	ShopID         string          `json:"shop_id"`
	ShopName       string          `json:"shop_name"`
	RequestDetails []RequestDetail `json:"request_details"`
}

// RequestDetail shows the customer's ask and the shop's answer side by side.
type RequestDetail struct {
	RequestID string        `json:"request_id"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Request   RequestSide   `json:"request"`
	Response  *ResponseSide `json:"response"`
}

type RequestSide struct {
	Price    int64  `json:"price"`
	Contents string `json:"contents"`
}

type ResponseSide struct {
	ResponseID string    `json:"response_id"`
	Price      int64     `json:"price"`
	Contents   string    `json:"contents"`
	CreatedAt  time.Time `json:"created_at"`
}

// groupThreads folds requests (oldest first, with Design and Shop loaded)
// into design then shop groups, both in first-seen order.
func groupThreads(reqs []domain.ServiceRequest, resps []domain.ServiceResponse) []DesignThread {
	byRequest := make(map[string]domain.ServiceResponse, len(resps))
	for _, r := range resps {
		byRequest[r.RequestID] = r
	}

	threads := []DesignThread{}
	designIdx := map[string]int{}
	shopIdx := map[string]map[string]int{}

	for _, r := range reqs {
		di, ok := designIdx[r.DesignID]
		if !ok {
			di = len(threads)
			designIdx[r.DesignID] = di
			shopIdx[r.DesignID] = map[string]int{}
			threads = append(threads, DesignThread{
				DesignID:     r.DesignID,
				DesignName:   r.Design.Name,
				ShopRequests: []ShopThread{},
			})
		}
		dt := &threads[di]

		si, ok := shopIdx[r.DesignID][r.ShopID]
		if !ok {
			si = len(dt.ShopRequests)
			shopIdx[r.DesignID][r.ShopID] = si
			dt.ShopRequests = append(dt.ShopRequests, ShopThread{
				ShopID:         r.ShopID,
				ShopName:       r.Shop.Name,
				RequestDetails: []RequestDetail{},
			})
		}
		st := &dt.ShopRequests[si]

		detail := RequestDetail{
			RequestID: r.ID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			Request:   RequestSide{Price: r.Price, Contents: r.Contents},
		}
		if resp, ok := byRequest[r.ID]; ok {
			detail.Response = &ResponseSide{
				ResponseID: resp.ID,
				Price:      resp.Price,
				Contents:   resp.Contents,
				CreatedAt:  resp.CreatedAt,
			}
		}
		st.RequestDetails = append(st.RequestDetails, detail)
	}
	return threads
}
