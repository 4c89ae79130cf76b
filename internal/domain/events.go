package domain

// EventType names an outbound notification pushed through the session
// registry.
type EventType string

const (
	EventNewRequest        EventType = "new_request"
	EventResponseCompleted EventType = "response_completed"
	EventNewResponse       EventType = "new_response"
)

// Event is the closed set of notifications the coordinator publishes.
// The unexported marker keeps the set limited to this package so consumers
// can switch exhaustively over the concrete types.
type Event interface {
	Type() EventType
	event()
}

// NewRequestEvent tells a shop that a customer addressed a request to it.
type NewRequestEvent struct {
	RequestID    string
	CustomerName string
	DesignID     string
	Price        int64
}

// ResponseCompletedEvent confirms a decision to the deciding shop's sessions.
type ResponseCompletedEvent struct {
	RequestID string
	Status    string
	ShopName  string
	Price     int64
	Contents  string
}

// NewResponseEvent tells a customer that a shop decided on their request.
type NewResponseEvent struct {
	RequestID string
	Status    string
	ShopName  string
	Price     int64
	Contents  string
}

func (NewRequestEvent) Type() EventType        { return EventNewRequest }
func (ResponseCompletedEvent) Type() EventType { return EventResponseCompleted }
func (NewResponseEvent) Type() EventType       { return EventNewResponse }

func (NewRequestEvent) event()        {}
func (ResponseCompletedEvent) event() {}
func (NewResponseEvent) event()       {}
