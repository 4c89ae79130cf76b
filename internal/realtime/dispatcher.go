package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/observability"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// Coordinator is the part of services.Coordinator the dispatcher drives.
type Coordinator interface {
	NearbyShops(ctx context.Context, origin *services.Point, limit int) ([]services.ShopView, error)
	CreateRequest(ctx context.Context, in services.CreateRequestInput) ([]domain.ServiceRequest, error)
	Respond(ctx context.Context, in services.RespondInput) (*services.RespondResult, error)
	ListResponses(ctx context.Context, customerID, designID string) ([]services.DesignThread, error)
}

// Dispatcher decodes one inbound frame, runs the matching operation on
// behalf of the session's actor and returns the reply frame. It holds no
// per-session state and is safe for concurrent use.
type Dispatcher struct {
	Coord Coordinator
}

// NewDispatcher returns a Dispatcher over c.
func NewDispatcher(c Coordinator) *Dispatcher {
	return &Dispatcher{Coord: c}
}

// Dispatch handles raw for actor and returns the frame to send back.
// Every failure becomes an error frame; nothing here closes the session.
func (d *Dispatcher) Dispatch(ctx context.Context, actor domain.Actor, sessionID string, raw []byte) (out any) {
	logger := zerolog.Ctx(ctx)
	action := ""
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Str("action", action).Msg("frame handler panicked")
			framesTotal.WithLabelValues(actionLabel(action), "panic").Inc()
			out = errorFrame{Error: "internal error"}
		}
	}()

	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		framesTotal.WithLabelValues("unknown", "invalid_json").Inc()
		return errorFrame{Error: "Invalid JSON format"}
	}
	action = f.Action
	ctx, span := observability.StartFrameSpan(ctx, actionLabel(f.Action), actor, sessionID)
	defer span.End()

	data := []byte(f.Data)
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = raw
	}

	if err := permitted(f.Action, actor.Kind); err != nil {
		framesTotal.WithLabelValues(actionLabel(f.Action), "rejected").Inc()
		if errors.Is(err, ErrUnknownAction) {
			return errorFrame{Error: fmt.Sprintf("Unknown action: %s", f.Action)}
		}
		return errorFrame{Error: err.Error()}
	}

	var err error
	switch f.Action {
	case ActionNearbyShops:
		out, err = d.nearbyShops(ctx, data)
	case ActionRequestService:
		out, err = d.requestService(ctx, actor, data)
	case ActionRespondService:
		out, err = d.respondService(ctx, actor, sessionID, data)
	case ActionGetResponses:
		out, err = d.getResponses(ctx, actor, data)
	}
	if err != nil {
		framesTotal.WithLabelValues(f.Action, "error").Inc()
		observability.FailSpan(span, err)
		return toErrorFrame(ctx, f.Action, err)
	}
	framesTotal.WithLabelValues(f.Action, "ok").Inc()
	return out
}

// permitted gates actions by actor kind.
func permitted(action string, kind domain.ActorKind) error {
	switch action {
	case ActionNearbyShops:
		return nil
	case ActionRequestService, ActionGetResponses:
		switch kind {
		case domain.KindCustomer:
			return nil
		case domain.KindShop:
			return ErrActionNotPermitted
		}
	case ActionRespondService:
		switch kind {
		case domain.KindShop:
			return nil
		case domain.KindCustomer:
			return ErrActionNotPermitted
		}
	default:
		return ErrUnknownAction
	}
	return ErrActionNotPermitted
}

func (d *Dispatcher) nearbyShops(ctx context.Context, data []byte) (any, error) {
	var p nearbyShopsData
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	shops, err := d.Coord.NearbyShops(ctx, origin(p.Lat, p.Lng), p.Limit)
	if err != nil {
		return nil, err
	}
	return shopListFrame{Type: TypeShopList, Shops: shops}, nil
}

func (d *Dispatcher) requestService(ctx context.Context, actor domain.Actor, data []byte) (any, error) {
	var p requestServiceData
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	created, err := d.Coord.CreateRequest(ctx, services.CreateRequestInput{
		CustomerID: actor.ID,
		DesignID:   p.DesignID,
		Contents:   p.Contents,
		ShopIDs:    p.ShopIDs,
		Origin:     origin(p.Lat, p.Lng),
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, err
	}
	msg := "Service request submitted."
	if len(created) == 0 {
		msg = "Already requested; waiting for the shop."
	}
	return completedRequestFrame{
		Type:     TypeCompletedRequest,
		Status:   domain.StatusPending,
		Message:  msg,
		Requests: summarize(created),
	}, nil
}

func (d *Dispatcher) respondService(ctx context.Context, actor domain.Actor, sessionID string, data []byte) (any, error) {
	var p respondServiceData
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	res, err := d.Coord.Respond(ctx, services.RespondInput{
		RequestID:       p.RequestID,
		ShopID:          actor.ID,
		Decision:        p.Status,
		Price:           p.Price,
		Contents:        p.Contents,
		OriginSessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	return completedResponseFrame{
		Type:      TypeCompletedResponse,
		Status:    res.Request.Status,
		RequestID: res.Request.ID,
		ResponseData: responseData{
			ShopName: res.ShopName,
			Price:    res.Price,
			Contents: res.Contents,
		},
	}, nil
}

func (d *Dispatcher) getResponses(ctx context.Context, actor domain.Actor, data []byte) (any, error) {
	var p getResponsesData
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	designs, err := d.Coord.ListResponses(ctx, actor.ID, p.DesignID)
	if err != nil {
		return nil, err
	}
	return responseListFrame{Type: TypeResponseList, Designs: designs}, nil
}

func origin(lat, lng *float64) *services.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &services.Point{Lat: *lat, Lng: *lng}
}

// payloadError wraps a payload that did not decode into the action's shape.
type payloadError struct{ err error }

func (e payloadError) Error() string { return "invalid data: " + e.err.Error() }
func (e payloadError) Unwrap() error { return e.err }

// decode unmarshals and validates a payload.
func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return payloadError{err}
	}
	return binding.Validator.ValidateStruct(dst)
}

// clientErrors are reported to the session verbatim.
var clientErrors = []error{
	services.ErrInvalidKind,
	services.ErrActorNotFound,
	services.ErrForbidden,
	services.ErrDesignNotFound,
	services.ErrShopNotFound,
	services.ErrInvalidCoordinates,
	services.ErrRequestNotFound,
	services.ErrInvalidTransition,
	services.ErrInvalidDecision,
	services.ErrInvalidPrice,
	services.ErrContentsTooLong,
}

// toErrorFrame maps an operation error to what the client sees. Validation
// failures become a field -> rule object; unexpected errors are logged and
// masked.
func toErrorFrame(ctx context.Context, action string, err error) errorFrame {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonName(fe)] = fe.Tag()
		}
		return errorFrame{Error: fields}
	}
	var perr payloadError
	if errors.As(err, &perr) {
		return errorFrame{Error: perr.Error()}
	}
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			zerolog.Ctx(ctx).Debug().Err(err).Str("action", action).Msg("frame rejected")
			return errorFrame{Error: err.Error()}
		}
	}
	zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("frame failed")
	return errorFrame{Error: "internal error"}
}

// jsonName returns the wire name of the field a validation error is about.
func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	// Namespace is "Type.Field" or "Type.Field[i]" for dive errors.
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	field := ns
	suffix := ""
	if i := strings.IndexByte(ns, '['); i >= 0 {
		field, suffix = ns[:i], ns[i:]
	}
	for _, t := range []reflect.Type{
		reflect.TypeOf(nearbyShopsData{}),
		reflect.TypeOf(requestServiceData{}),
		reflect.TypeOf(respondServiceData{}),
		reflect.TypeOf(getResponsesData{}),
	} {
		if sf, ok := t.FieldByName(field); ok {
			if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag != "" {
				return tag + suffix
			}
		}
	}
	return name
}
