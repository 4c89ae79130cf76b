// Package services – Coordinator
//
// This file implements the Coordinator, the state machine that owns the
// lifecycle of service requests and responses. It resolves customers,
// designs and target shops, persists requests with duplicate suppression,
// records at most one response per request, and decides which actor groups
// are notified of which event.
//
// Persisted state is the source of truth: notifications are sent only after
// the transaction commits and a failed delivery never rolls anything back.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/sysutil"
)

const (
	tracerName = "services/Coordinator"

	// DefaultMaxContentsRunes bounds free-text notes on requests and responses.
	DefaultMaxContentsRunes = 2000

	activeShopsKey = "active"
)

// Notifier delivers events to every live session of an actor group.
// skipID names a session that should not receive the event ("" for none).
// It returns how many sessions accepted the event.
type Notifier interface {
	Broadcast(key domain.GroupKey, ev domain.Event, skipID string) int
}

// CoordinatorOptions tunes a Coordinator. Zero values select defaults.
type CoordinatorOptions struct {
	NearbyLimit      int
	ShopCacheTTL     time.Duration
	MaxContentsRunes int
	Logger           *zerolog.Logger
}

// Coordinator implements request creation, responding and the customer's
// response projection.
type Coordinator struct {
	DB       *gorm.DB
	Notifier Notifier

	NearbyLimit      int
	MaxContentsRunes int

	log   zerolog.Logger
	shops *expirable.LRU[string, []domain.Shop]
}

// NewCoordinator wires a Coordinator. A nil notifier drops all events.
// A non-positive ShopCacheTTL disables the active-shop cache.
func NewCoordinator(db *gorm.DB, n Notifier, opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		DB:               db,
		Notifier:         n,
		NearbyLimit:      opts.NearbyLimit,
		MaxContentsRunes: opts.MaxContentsRunes,
		log:              sysutil.Component("coordinator"),
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "coordinator").Logger()
	}
	if c.NearbyLimit <= 0 {
		c.NearbyLimit = DefaultNearbyLimit
	}
	if c.MaxContentsRunes <= 0 {
		c.MaxContentsRunes = DefaultMaxContentsRunes
	}
	if opts.ShopCacheTTL > 0 {
		c.shops = expirable.NewLRU[string, []domain.Shop](1, nil, opts.ShopCacheTTL)
	}
	return c
}

// CreateRequestInput describes one customer submission.
//
// Targets are chosen in this order: ShopIDs verbatim when non-empty, else the
// shops nearest to Origin, else the shop that owns the design.
type CreateRequestInput struct {
	CustomerID string
	DesignID   string
	Contents   string
	ShopIDs    []string
	Origin     *Point
	Limit      int
}

// RespondInput describes one shop decision.
type RespondInput struct {
	RequestID string
	// ShopID is the deciding shop; when set it must own the request.
	ShopID   string
	Decision string
	// Price overrides the snapshotted request price on acceptance.
	Price    *int64
	Contents string
	// OriginSessionID is excluded from the shop-side confirmation broadcast
	// because that session gets the result synchronously.
	OriginSessionID string
}

// RespondResult is the outcome of a decision. Response is nil on rejection.
type RespondResult struct {
	Request  domain.ServiceRequest
	Response *domain.ServiceResponse
	ShopName string
	Price    int64
	Contents string
}

// CreateRequest persists one pending request per target shop and notifies
// each addressed shop. Targets that already have an open request for the
// same customer and design are skipped without error, so the result may be
// shorter than the target list or empty.
func (c *Coordinator) CreateRequest(ctx context.Context, in CreateRequestInput) ([]domain.ServiceRequest, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "CreateRequest",
		trace.WithAttributes(
			attribute.String("customer.id", in.CustomerID),
			attribute.String("design.id", in.DesignID),
			attribute.Int("targets.explicit", len(in.ShopIDs)),
		),
	)
	defer span.End()

	contents, err := c.normalizeContents(in.Contents)
	if err != nil {
		return nil, err
	}

	customer, err := repo.GetCustomer(ctx, c.DB, in.CustomerID)
	if err != nil {
		return nil, mapNotFound(err, ErrActorNotFound)
	}

	design, err := repo.GetDesign(ctx, c.DB, in.DesignID)
	if err != nil {
		return nil, mapNotFound(err, ErrDesignNotFound)
	}
	if !design.Active {
		return nil, ErrDesignNotFound
	}

	targets, err := c.resolveTargets(ctx, design, in)
	if err != nil {
		return nil, err
	}

	created := make([]domain.ServiceRequest, 0, len(targets))
	err = c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, shopID := range targets {
			if _, err := repo.FindOpenRequest(ctx, tx, customer.ID, shopID, design.ID); err == nil {
				continue
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}

			// Savepoint per insert: a unique violation aborts the whole
			// transaction on Postgres otherwise.
			var r *domain.ServiceRequest
			err := tx.Transaction(func(sp *gorm.DB) error {
				var err error
				r, err = repo.CreateRequest(ctx, sp, repo.NewRequest{
					CustomerID: customer.ID,
					ShopID:     shopID,
					DesignID:   design.ID,
					Price:      design.Price,
					Contents:   contents,
				})
				return err
			})
			if errors.Is(err, repo.ErrDuplicate) {
				continue
			}
			if err != nil {
				return err
			}
			created = append(created, *r)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request")
		return nil, err
	}
	span.SetAttributes(attribute.Int("requests.created", len(created)))

	for _, r := range created {
		c.notify(domain.NewGroupKey(domain.KindShop, r.ShopID), domain.NewRequestEvent{
			RequestID:    r.ID,
			CustomerName: customer.Name,
			DesignID:     r.DesignID,
			Price:        r.Price,
		}, "")
	}
	return created, nil
}

// resolveTargets returns the shop ids to address, de-duplicated and in
// order. Explicit ids must all exist before anything is written.
func (c *Coordinator) resolveTargets(ctx context.Context, design *domain.Design, in CreateRequestInput) ([]string, error) {
	switch {
	case len(in.ShopIDs) > 0:
		ids := make([]string, 0, len(in.ShopIDs))
		seen := make(map[string]struct{}, len(in.ShopIDs))
		for _, id := range in.ShopIDs {
			id = strings.TrimSpace(id)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		found, err := repo.GetShopsByIDs(ctx, c.DB, ids)
		if err != nil {
			return nil, err
		}
		if len(found) != len(ids) {
			return nil, ErrShopNotFound
		}
		return ids, nil

	case in.Origin != nil:
		shops, err := c.ListShops(ctx)
		if err != nil {
			return nil, err
		}
		limit := in.Limit
		if limit <= 0 {
			limit = c.NearbyLimit
		}
		ranked, err := Nearest(*in.Origin, shops, limit)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(ranked))
		for i, r := range ranked {
			ids[i] = r.Shop.ID
		}
		return ids, nil

	default:
		if _, err := repo.GetShop(ctx, c.DB, design.ShopID); err != nil {
			return nil, mapNotFound(err, ErrShopNotFound)
		}
		return []string{design.ShopID}, nil
	}
}

// Respond applies a shop's decision to a pending request. Acceptance records
// exactly one response even under concurrent calls; a request that already
// left pending yields ErrInvalidTransition and is left untouched.
func (c *Coordinator) Respond(ctx context.Context, in RespondInput) (*RespondResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.String("request.id", in.RequestID),
			attribute.String("shop.id", in.ShopID),
			attribute.String("decision", in.Decision),
		),
	)
	defer span.End()

	if in.Decision != domain.StatusAccepted && in.Decision != domain.StatusRejected {
		return nil, ErrInvalidDecision
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, ErrInvalidPrice
	}
	contents, err := c.normalizeContents(in.Contents)
	if err != nil {
		return nil, err
	}

	var res RespondResult
	err = c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := repo.GetRequest(ctx, tx, in.RequestID)
		if err != nil {
			return mapNotFound(err, ErrRequestNotFound)
		}
		if in.ShopID != "" && in.ShopID != req.ShopID {
			return ErrForbidden
		}
		if req.Status != domain.StatusPending {
			return ErrInvalidTransition
		}

		ok, err := repo.CompareAndSetStatus(ctx, tx, req.ID, domain.StatusPending, in.Decision)
		if err != nil {
			return err
		}
		if !ok {
			// another session decided between our read and write
			return ErrInvalidTransition
		}
		req.Status = in.Decision

		price := req.Price
		if in.Price != nil {
			price = *in.Price
		}

		if in.Decision == domain.StatusAccepted {
			resp, err := c.ensureResponse(ctx, tx, req, price, contents)
			if err != nil {
				return err
			}
			res.Response = resp
		}

		shop, err := repo.GetShop(ctx, tx, req.ShopID)
		if err != nil {
			return mapNotFound(err, ErrShopNotFound)
		}

		res.Request = *req
		res.ShopName = shop.Name
		res.Price = price
		res.Contents = contents
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "respond")
		}
		return nil, err
	}

	c.notify(domain.NewGroupKey(domain.KindShop, res.Request.ShopID), domain.ResponseCompletedEvent{
		RequestID: res.Request.ID,
		Status:    res.Request.Status,
		ShopName:  res.ShopName,
		Price:     res.Price,
		Contents:  res.Contents,
	}, in.OriginSessionID)
	c.notify(domain.NewGroupKey(domain.KindCustomer, res.Request.CustomerID), domain.NewResponseEvent{
		RequestID: res.Request.ID,
		Status:    res.Request.Status,
		ShopName:  res.ShopName,
		Price:     res.Price,
		Contents:  res.Contents,
	}, "")
	return &res, nil
}

// ensureResponse returns the request's response, creating it if absent.
// A unique violation means another writer got there first, which counts as
// already responded.
func (c *Coordinator) ensureResponse(ctx context.Context, tx *gorm.DB, req *domain.ServiceRequest, price int64, contents string) (*domain.ServiceResponse, error) {
	if existing, err := repo.GetResponseByRequest(ctx, tx, req.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	var resp *domain.ServiceResponse
	err := tx.Transaction(func(sp *gorm.DB) error {
		var err error
		resp, err = repo.CreateResponse(ctx, sp, req, price, contents)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return repo.GetResponseByRequest(ctx, tx, req.ID)
	}
	return resp, err
}

// ListResponses builds the customer's conversation view: requests grouped by
// design, then by shop, each with the shop's response alongside. An empty
// designID covers every design.
func (c *Coordinator) ListResponses(ctx context.Context, customerID, designID string) ([]DesignThread, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ListResponses",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("design.id", designID),
		),
	)
	defer span.End()

	if _, err := repo.GetCustomer(ctx, c.DB, customerID); err != nil {
		return nil, mapNotFound(err, ErrActorNotFound)
	}

	reqs, err := repo.ListRequestsByCustomer(ctx, c.DB, customerID, designID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	resps, err := repo.ListResponsesByRequestIDs(ctx, c.DB, ids)
	if err != nil {
		return nil, err
	}

	threads := groupThreads(reqs, resps)
	span.SetAttributes(attribute.Int("designs", len(threads)), attribute.Int("requests", len(reqs)))
	return threads, nil
}

// ListShops returns all active shops, served from the cache when enabled.
func (c *Coordinator) ListShops(ctx context.Context) ([]domain.Shop, error) {
	if c.shops != nil {
		if cached, ok := c.shops.Get(activeShopsKey); ok {
			return cached, nil
		}
	}
	shops, err := repo.ListActiveShops(ctx, c.DB)
	if err != nil {
		return nil, err
	}
	if c.shops != nil {
		c.shops.Add(activeShopsKey, shops)
	}
	return shops, nil
}

// InvalidateShops drops the cached active-shop list.
func (c *Coordinator) InvalidateShops() {
	if c.shops != nil {
		c.shops.Purge()
	}
}

// NearbyShops ranks active shops around origin. Without an origin every
// active shop is listed, without distances.
func (c *Coordinator) NearbyShops(ctx context.Context, origin *Point, limit int) ([]ShopView, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "NearbyShops",
		trace.WithAttributes(attribute.Bool("origin", origin != nil), attribute.Int("limit", limit)),
	)
	defer span.End()

	if origin != nil {
		if err := origin.Validate(); err != nil {
			return nil, err
		}
	}
	shops, err := c.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		out := make([]ShopView, len(shops))
		for i, s := range shops {
			out[i] = newShopView(s, nil)
		}
		return out, nil
	}

	if limit <= 0 {
		limit = c.NearbyLimit
	}
	ranked, err := Nearest(*origin, shops, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ShopView, len(ranked))
	for i, r := range ranked {
		d := r.DistanceKm
		out[i] = newShopView(r.Shop, &d)
	}
	return out, nil
}

func (c *Coordinator) normalizeContents(s string) (string, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > c.MaxContentsRunes {
		return "", ErrContentsTooLong
	}
	return s, nil
}

func (c *Coordinator) notify(key domain.GroupKey, ev domain.Event, skipID string) {
	if c.Notifier == nil {
		return
	}
	n := c.Notifier.Broadcast(key, ev, skipID)
	c.log.Debug().
		Str("group", string(key)).
		Str("event", string(ev.Type())).
		Int("delivered", n).
		Msg("event broadcast")
}

// isExpected reports whether err is a caller-facing outcome rather than a
// fault worth marking on the span.
func isExpected(err error) bool {
	for _, e := range []error{
		ErrRequestNotFound, ErrForbidden, ErrInvalidTransition,
		ErrInvalidDecision, ErrInvalidPrice, ErrContentsTooLong,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
