package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-nailo-backend/internal/domain"
	"github.com/tbourn/go-nailo-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:coordsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Shared-cache SQLite rejects concurrent writers instead of waiting.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type world struct {
	customer domain.Customer
	shops    []domain.Shop // s0, s1, s2 active, 1.1 km apart going north
	closed   domain.Shop
	design   domain.Design // owned by s0, price 30000
	retired  domain.Design // inactive
}

func seedWorld(t *testing.T, db *gorm.DB) world {
	t.Helper()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	w := world{
		customer: domain.Customer{ID: "cust-1", ExternalID: "alice", Name: "Alice", CreatedAt: base, UpdatedAt: base},
		closed:   domain.Shop{ID: "shop-x", ExternalID: "closed", Name: "Closed", Lat: 37.50, Lng: 127.00, Active: false, CreatedAt: base, UpdatedAt: base},
	}
	mustCreate(t, db, &w.customer)
	mustCreate(t, db, &w.closed)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i+1) * time.Minute)
		s := domain.Shop{
			ID: fmt.Sprintf("shop-%d", i), ExternalID: fmt.Sprintf("s%d", i), Name: fmt.Sprintf("Shop %d", i),
			Lat: 37.50 + float64(i)/100, Lng: 127.00, Active: true, CreatedAt: at, UpdatedAt: at,
		}
		mustCreate(t, db, &s)
		w.shops = append(w.shops, s)
	}
	w.design = domain.Design{ID: "design-1", ShopID: "shop-0", Name: "French", Price: 30000, Active: true, CreatedAt: base, UpdatedAt: base}
	w.retired = domain.Design{ID: "design-old", ShopID: "shop-0", Name: "Retired", Price: 10000, Active: false, CreatedAt: base, UpdatedAt: base}
	if err := db.Omit("Shop").Create(&w.design).Error; err != nil {
		t.Fatalf("seed design: %v", err)
	}
	if err := db.Omit("Shop").Create(&w.retired).Error; err != nil {
		t.Fatalf("seed design: %v", err)
	}
	return w
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}

type sentEvent struct {
	key  domain.GroupKey
	ev   domain.Event
	skip string
}

// recordingNotifier captures broadcasts and reports one delivery each.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *recordingNotifier) Broadcast(key domain.GroupKey, ev domain.Event, skipID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{key: key, ev: ev, skip: skipID})
	return 1
}

func (n *recordingNotifier) events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.sent...)
}

func newCoordinator(t *testing.T) (*Coordinator, *recordingNotifier, world, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	w := seedWorld(t, db)
	n := &recordingNotifier{}
	return NewCoordinator(db, n, CoordinatorOptions{}), n, w, db
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func ptr[T any](v T) *T { return &v }

func TestCreateRequest_TwoShops_NotifiesEach(t *testing.T) {
	c, n, w, db := newCoordinator(t)

	got, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID,
		DesignID:   w.design.ID,
		Contents:   "  almond shape  ",
		ShopIDs:    []string{"shop-0", "shop-1"},
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	for i, r := range got {
		if r.Status != domain.StatusPending || r.Price != 30000 || r.Contents != "almond shape" || r.ShopID != w.shops[i].ID {
			t.Fatalf("unexpected request %d: %+v", i, r)
		}
	}
	if got[0].ID == got[1].ID {
		t.Fatalf("request ids must be unique")
	}

	evs := n.events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 new_request events, got %d", len(evs))
	}
	for i, e := range evs {
		nr, ok := e.ev.(domain.NewRequestEvent)
		if !ok {
			t.Fatalf("event %d: unexpected type %T", i, e.ev)
		}
		if e.key != domain.NewGroupKey(domain.KindShop, got[i].ShopID) || nr.RequestID != got[i].ID || nr.CustomerName != "Alice" {
			t.Fatalf("event %d: %+v on %s", i, nr, e.key)
		}
	}
	if rows := countRows(t, db, &domain.ServiceRequest{}, "customer_id = ?", w.customer.ID); rows != 2 {
		t.Fatalf("expected 2 rows, got %d", rows)
	}
}

func TestCreateRequest_DuplicateTupleSuppressed(t *testing.T) {
	c, n, w, db := newCoordinator(t)
	ctx := context.Background()
	in := CreateRequestInput{CustomerID: w.customer.ID, DesignID: w.design.ID, ShopIDs: []string{"shop-0", "shop-1"}}

	if _, err := c.CreateRequest(ctx, in); err != nil {
		t.Fatalf("first: %v", err)
	}
	again, err := c.CreateRequest(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected duplicates to be suppressed, got %d", len(again))
	}

	in.ShopIDs = []string{"shop-1", "shop-2"}
	partial, err := c.CreateRequest(ctx, in)
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if len(partial) != 1 || partial[0].ShopID != "shop-2" {
		t.Fatalf("expected only shop-2, got %+v", partial)
	}
	if rows := countRows(t, db, &domain.ServiceRequest{}, "customer_id = ?", w.customer.ID); rows != 3 {
		t.Fatalf("expected 3 rows, got %d", rows)
	}
	if len(n.events()) != 3 {
		t.Fatalf("suppressed duplicates must not notify; got %d events", len(n.events()))
	}
}

func TestCreateRequest_RepeatedShopIDsCollapse(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	got, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, ShopIDs: []string{"shop-1", "shop-1", " shop-1 "},
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one request, got %d err=%v", len(got), err)
	}
}

func TestCreateRequest_UnknownShopWritesNothing(t *testing.T) {
	c, n, w, db := newCoordinator(t)
	_, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, ShopIDs: []string{"shop-0", "ghost"},
	})
	if !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("expected ErrShopNotFound, got %v", err)
	}
	if rows := countRows(t, db, &domain.ServiceRequest{}, "1 = 1"); rows != 0 {
		t.Fatalf("expected no rows, got %d", rows)
	}
	if len(n.events()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestCreateRequest_OriginUsesNearestActiveShops(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	got, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID,
		DesignID:   w.design.ID,
		Origin:     &Point{Lat: 37.52, Lng: 127.00},
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if len(got) != 2 || got[0].ShopID != "shop-2" || got[1].ShopID != "shop-1" {
		t.Fatalf("expected shop-2 then shop-1, got %+v", got)
	}

	// The inactive shop sits on the origin of this query but is never ranked.
	got, err = c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, Origin: &Point{Lat: 37.50, Lng: 127.00}, Limit: 1,
	})
	if err != nil || len(got) != 1 || got[0].ShopID != "shop-0" {
		t.Fatalf("expected shop-0, got %+v err=%v", got, err)
	}
}

func TestCreateRequest_FallsBackToDesignOwner(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	got, err := c.CreateRequest(context.Background(), CreateRequestInput{CustomerID: w.customer.ID, DesignID: w.design.ID})
	if err != nil || len(got) != 1 || got[0].ShopID != w.design.ShopID {
		t.Fatalf("expected request to owner shop, got %+v err=%v", got, err)
	}
}

func TestCreateRequest_Errors(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateRequestInput
		want error
	}{
		{"unknown design", CreateRequestInput{CustomerID: w.customer.ID, DesignID: "nope"}, ErrDesignNotFound},
		{"inactive design", CreateRequestInput{CustomerID: w.customer.ID, DesignID: w.retired.ID}, ErrDesignNotFound},
		{"unknown customer", CreateRequestInput{CustomerID: "ghost", DesignID: w.design.ID}, ErrActorNotFound},
		{"bad origin", CreateRequestInput{CustomerID: w.customer.ID, DesignID: w.design.ID, Origin: &Point{Lat: 100}}, ErrInvalidCoordinates},
		{"long contents", CreateRequestInput{CustomerID: w.customer.ID, DesignID: w.design.ID, Contents: strings.Repeat("가", DefaultMaxContentsRunes+1)}, ErrContentsTooLong},
	}
	for _, tc := range cases {
		t.Run(strings.ReplaceAll(tc.name, " ", "_"), func(t *testing.T) {
			if _, err := c.CreateRequest(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateRequest_ContentsNormalizedToNFC(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	got, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, Contents: "cafe\u0301",
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if got[0].Contents != "caf\u00e9" {
		t.Fatalf("expected NFC contents, got %q", got[0].Contents)
	}
}

func createOne(t *testing.T, c *Coordinator, w world, shopID string) domain.ServiceRequest {
	t.Helper()
	got, err := c.CreateRequest(context.Background(), CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, ShopIDs: []string{shopID},
	})
	if err != nil || len(got) != 1 {
		t.Fatalf("create request: %+v err=%v", got, err)
	}
	return got[0]
}

func TestRespond_AcceptWithPriceOverride(t *testing.T) {
	c, n, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-0")
	before := len(n.events())

	res, err := c.Respond(context.Background(), RespondInput{
		RequestID:       r.ID,
		ShopID:          "shop-0",
		Decision:        domain.StatusAccepted,
		Price:           ptr(int64(35000)),
		Contents:        "confirmed",
		OriginSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Request.Status != domain.StatusAccepted || res.Response == nil || res.Response.Price != 35000 || res.ShopName != "Shop 0" {
		t.Fatalf("unexpected result: %+v", res)
	}

	stored, _ := repo.GetRequest(context.Background(), db, r.ID)
	if stored.Status != domain.StatusAccepted {
		t.Fatalf("status not persisted: %q", stored.Status)
	}
	if rows := countRows(t, db, &domain.ServiceResponse{}, "request_id = ?", r.ID); rows != 1 {
		t.Fatalf("expected 1 response, got %d", rows)
	}

	evs := n.events()[before:]
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	done, ok := evs[0].ev.(domain.ResponseCompletedEvent)
	if !ok || evs[0].key != "shop:shop-0" || evs[0].skip != "sess-1" || done.Price != 35000 || done.Status != domain.StatusAccepted || done.Contents != "confirmed" {
		t.Fatalf("shop confirmation: %+v", evs[0])
	}
	nr, ok := evs[1].ev.(domain.NewResponseEvent)
	if !ok || evs[1].key != domain.GroupKey("customer:"+w.customer.ID) || nr.RequestID != r.ID || nr.ShopName != "Shop 0" {
		t.Fatalf("customer notification: %+v", evs[1])
	}
}

func TestRespond_AcceptKeepsSnapshotPrice(t *testing.T) {
	c, _, w, _ := newCoordinator(t)
	r := createOne(t, c, w, "shop-1")

	res, err := c.Respond(context.Background(), RespondInput{RequestID: r.ID, ShopID: "shop-1", Decision: domain.StatusAccepted})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Response.Price != r.Price || res.Response.Price != 30000 {
		t.Fatalf("expected snapshot price %d, got %d", r.Price, res.Response.Price)
	}
}

func TestRespond_RejectCreatesNoResponse(t *testing.T) {
	c, n, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-0")

	res, err := c.Respond(context.Background(), RespondInput{RequestID: r.ID, ShopID: "shop-0", Decision: domain.StatusRejected, Contents: "fully booked"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Request.Status != domain.StatusRejected || res.Response != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if rows := countRows(t, db, &domain.ServiceResponse{}, "request_id = ?", r.ID); rows != 0 {
		t.Fatalf("expected 0 responses, got %d", rows)
	}
	evs := n.events()
	last := evs[len(evs)-1]
	nr, ok := last.ev.(domain.NewResponseEvent)
	if !ok || nr.Status != domain.StatusRejected || nr.RequestID != r.ID {
		t.Fatalf("customer should be notified of rejection: %+v", last)
	}

	// A rejected tuple may be requested again.
	again := createOne(t, c, w, "shop-0")
	if again.ID == r.ID {
		t.Fatalf("request id reused")
	}
}

func TestRespond_SecondDecisionIsInvalidTransition(t *testing.T) {
	c, n, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-0")
	ctx := context.Background()

	if _, err := c.Respond(ctx, RespondInput{RequestID: r.ID, ShopID: "shop-0", Decision: domain.StatusAccepted}); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := len(n.events())
	for _, d := range []string{domain.StatusAccepted, domain.StatusRejected} {
		if _, err := c.Respond(ctx, RespondInput{RequestID: r.ID, ShopID: "shop-0", Decision: d, Price: ptr(int64(1))}); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s after accept: expected ErrInvalidTransition, got %v", d, err)
		}
	}
	stored, _ := repo.GetRequest(ctx, db, r.ID)
	if stored.Status != domain.StatusAccepted {
		t.Fatalf("status mutated: %q", stored.Status)
	}
	resp, _ := repo.GetResponseByRequest(ctx, db, r.ID)
	if resp.Price != 30000 {
		t.Fatalf("response mutated: %+v", resp)
	}
	if rows := countRows(t, db, &domain.ServiceResponse{}, "request_id = ?", r.ID); rows != 1 {
		t.Fatalf("expected 1 response, got %d", rows)
	}
	if len(n.events()) != before {
		t.Fatalf("failed transitions must not notify")
	}
}

func TestRespond_ConcurrentAcceptsRecordOneResponse(t *testing.T) {
	c, _, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-0")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, stale int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Respond(context.Background(), RespondInput{RequestID: r.ID, ShopID: "shop-0", Decision: domain.StatusAccepted})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInvalidTransition):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || stale != callers-1 {
		t.Fatalf("expected 1 success and %d invalid transitions, got %d/%d", callers-1, ok, stale)
	}
	if rows := countRows(t, db, &domain.ServiceResponse{}, "request_id = ?", r.ID); rows != 1 {
		t.Fatalf("expected exactly 1 response, got %d", rows)
	}
}

func TestRespond_Errors(t *testing.T) {
	c, _, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-0")
	ctx := context.Background()

	cases := []struct {
		name string
		in   RespondInput
		want error
	}{
		{"missing request", RespondInput{RequestID: "nope", Decision: domain.StatusAccepted}, ErrRequestNotFound},
		{"other shop", RespondInput{RequestID: r.ID, ShopID: "shop-1", Decision: domain.StatusAccepted}, ErrForbidden},
		{"bad decision", RespondInput{RequestID: r.ID, Decision: "maybe"}, ErrInvalidDecision},
		{"pending is not a decision", RespondInput{RequestID: r.ID, Decision: domain.StatusPending}, ErrInvalidDecision},
		{"negative price", RespondInput{RequestID: r.ID, Decision: domain.StatusAccepted, Price: ptr(int64(-1))}, ErrInvalidPrice},
		{"long contents", RespondInput{RequestID: r.ID, Decision: domain.StatusAccepted, Contents: strings.Repeat("x", DefaultMaxContentsRunes+1)}, ErrContentsTooLong},
	}
	for _, tc := range cases {
		t.Run(strings.ReplaceAll(tc.name, " ", "_"), func(t *testing.T) {
			if _, err := c.Respond(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	stored, _ := repo.GetRequest(ctx, db, r.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("failed calls must not mutate; status %q", stored.Status)
	}
}

func TestRespond_InactiveShopCanStillAnswer(t *testing.T) {
	c, _, w, db := newCoordinator(t)
	r := createOne(t, c, w, "shop-1")
	if err := db.Model(&domain.Shop{}).Where("id = ?", "shop-1").Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := c.Respond(context.Background(), RespondInput{RequestID: r.ID, ShopID: "shop-1", Decision: domain.StatusRejected}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
}

func TestListResponses_GroupsByDesignThenShop(t *testing.T) {
	c, _, w, db := newCoordinator(t)
	ctx := context.Background()

	gel := domain.Design{ID: "design-2", ShopID: "shop-1", Name: "Gel", Price: 45000, Active: true}
	if err := db.Omit("Shop").Create(&gel).Error; err != nil {
		t.Fatalf("seed design: %v", err)
	}

	first, err := c.CreateRequest(ctx, CreateRequestInput{
		CustomerID: w.customer.ID, DesignID: w.design.ID, ShopIDs: []string{"shop-0", "shop-1"}, Contents: "short",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.CreateRequest(ctx, CreateRequestInput{CustomerID: w.customer.ID, DesignID: gel.ID, ShopIDs: []string{"shop-1"}}); err != nil {
		t.Fatalf("create gel: %v", err)
	}
	if _, err := c.Respond(ctx, RespondInput{RequestID: first[0].ID, ShopID: "shop-0", Decision: domain.StatusAccepted, Price: ptr(int64(32000)), Contents: "see you"}); err != nil {
		t.Fatalf("respond: %v", err)
	}

	threads, err := c.ListResponses(ctx, w.customer.ID, "")
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(threads) != 2 || threads[0].DesignID != w.design.ID || threads[1].DesignID != gel.ID {
		t.Fatalf("unexpected designs: %+v", threads)
	}
	french := threads[0]
	if french.DesignName != "French" || len(french.ShopRequests) != 2 {
		t.Fatalf("unexpected french thread: %+v", french)
	}
	s0 := french.ShopRequests[0]
	if s0.ShopID != "shop-0" || s0.ShopName != "Shop 0" || len(s0.RequestDetails) != 1 {
		t.Fatalf("unexpected shop thread: %+v", s0)
	}
	d := s0.RequestDetails[0]
	if d.Status != domain.StatusAccepted || d.Request.Price != 30000 || d.Request.Contents != "short" ||
		d.Response == nil || d.Response.Price != 32000 || d.Response.Contents != "see you" {
		t.Fatalf("unexpected detail: %+v", d)
	}
	if french.ShopRequests[1].RequestDetails[0].Response != nil {
		t.Fatalf("pending request should have no response")
	}

	scoped, err := c.ListResponses(ctx, w.customer.ID, gel.ID)
	if err != nil || len(scoped) != 1 || scoped[0].DesignID != gel.ID {
		t.Fatalf("scoped: %+v err=%v", scoped, err)
	}

	// A fresh coordinator over the same store sees the same state, which is
	// what a reconnecting session observes.
	fresh := NewCoordinator(db, nil, CoordinatorOptions{})
	again, err := fresh.ListResponses(ctx, w.customer.ID, "")
	if err != nil || len(again) != 2 || again[0].ShopRequests[0].RequestDetails[0].Response == nil {
		t.Fatalf("state not visible after reconnect: %+v err=%v", again, err)
	}

	if _, err := c.ListResponses(ctx, "ghost", ""); !errors.Is(err, ErrActorNotFound) {
		t.Fatalf("expected ErrActorNotFound, got %v", err)
	}
	empty, err := c.ListResponses(ctx, w.customer.ID, "no-such-design")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty projection, got %+v err=%v", empty, err)
	}
}

func TestNearbyShops(t *testing.T) {
	db := newTestDB(t)
	seedWorld(t, db)
	c := NewCoordinator(db, nil, CoordinatorOptions{NearbyLimit: 2, ShopCacheTTL: time.Minute})
	ctx := context.Background()

	all, err := c.NearbyShops(ctx, nil, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 active shops, got %d err=%v", len(all), err)
	}
	for _, s := range all {
		if s.DistanceKm != nil {
			t.Fatalf("no distance expected without origin: %+v", s)
		}
	}

	ranked, err := c.NearbyShops(ctx, &Point{Lat: 37.52, Lng: 127.00}, 0)
	if err != nil || len(ranked) != 2 || ranked[0].ID != "shop-2" || ranked[0].DistanceKm == nil || *ranked[0].DistanceKm > 0.001 {
		t.Fatalf("unexpected ranking: %+v err=%v", ranked, err)
	}

	if _, err := c.NearbyShops(ctx, &Point{Lat: 0, Lng: 200}, 0); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}

	// Cached until invalidated.
	late := domain.Shop{ID: "shop-9", ExternalID: "s9", Name: "Late", Lat: 37.6, Lng: 127, Active: true}
	mustCreate(t, db, &late)
	if got, _ := c.NearbyShops(ctx, nil, 0); len(got) != 3 {
		t.Fatalf("expected cached list of 3, got %d", len(got))
	}
	c.InvalidateShops()
	if got, _ := c.NearbyShops(ctx, nil, 0); len(got) != 4 {
		t.Fatalf("expected refreshed list of 4, got %d", len(got))
	}
}
