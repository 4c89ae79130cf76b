package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-nailo-backend/internal/config"
	"github.com/tbourn/go-nailo-backend/internal/http/handlers"
	"github.com/tbourn/go-nailo-backend/internal/http/middleware"
	"github.com/tbourn/go-nailo-backend/internal/realtime"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := repo.ApplySeed(context.Background(), db, &repo.Seed{
		Customers: []repo.SeedCustomer{{ExternalID: "alice", Name: "Alice"}},
		Shops:     []repo.SeedShop{{ExternalID: "nails", Name: "Nail Studio", Lat: 37.50, Lng: 127.00}},
		Designs:   []repo.SeedDesign{{ID: "design-1", Shop: "nails", Name: "French tips", Price: 30000}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:    base,
		RateRPS:        100,
		RateBurst:      10,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
	}
}

// newEngine wires the full stack, including the realtime endpoint.
func newEngine(t *testing.T, db *gorm.DB, cfg config.Config) (*gin.Engine, *realtime.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := realtime.NewRegistry(4)
	coord := services.NewCoordinator(db, reg, services.CoordinatorOptions{})
	dir := &services.Directory{DB: db}
	ws := realtime.NewHandler(dir, reg, realtime.NewDispatcher(coord), realtime.Options{})
	ws.Fail = handlers.Fail
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ws.Shutdown(ctx)
	})

	r := gin.New()
	RegisterRoutes(r, db, NewDeps(db, coord, ws.Serve), cfg)
	return r, ws
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newEngine(t, newTestDB(t), testConfig("/api/v1"))

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired and never compressed
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}
	if enc := w.Header().Get("Content-Encoding"); enc == "gzip" {
		t.Fatalf("/metrics must not be gzip encoded")
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off by default
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newEngine(t, newTestDB(t), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig("/api/v1")
	cfg.SwaggerEnabled = true
	r, _ := newEngine(t, newTestDB(t), cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/requests/{id}/respond") {
		t.Fatalf("doc.json should describe the API, got %.200s", w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig("/api/v1")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newEngine(t, newTestDB(t), cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shops/nearby?lat=37.5&lng=127", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET nearby = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("X-Content-Type-Options") == "" {
		t.Fatalf("expected security headers on API responses")
	}
	if cc := w.Header().Get("Cache-Control"); cc != "" {
		t.Fatalf("public nearby lookup should not be private, got %q", cc)
	}
}

func Test_apiPath(t *testing.T) {
	cases := map[[2]string]string{
		{"", "/requests"}:        "/requests",
		{"/", "/requests"}:       "/requests",
		{"/api/v1", "/requests"}: "/api/v1/requests",
	}
	for in, want := range cases {
		if got := apiPath(in[0], in[1]); got != want {
			t.Fatalf("apiPath(%q, %q) = %q; want %q", in[0], in[1], got, want)
		}
	}
}

func postJSON(r http.Handler, path, kind, id string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserType, kind)
	req.Header.Set(middleware.HeaderUserID, id)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_IdempotencyReplayThroughStack(t *testing.T) {
	r, _ := newEngine(t, newTestDB(t), testConfig("/api/v1"))
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "key-hit"}
	body := handlers.CreateRequestBody{DesignID: "design-1"}

	first := postJSON(r, "/api/v1/requests", "customer", "alice", body, hdr)
	if first.Code != http.StatusCreated {
		t.Fatalf("first POST = %d %s", first.Code, first.Body.String())
	}
	if first.Header().Get(handlers.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first call is not a replay")
	}
	if cc := first.Header().Get("Cache-Control"); cc != "private, no-cache" {
		t.Fatalf("per-actor response Cache-Control = %q", cc)
	}

	second := postJSON(r, "/api/v1/requests", "customer", "alice", body, hdr)
	if second.Code != http.StatusCreated || second.Header().Get(handlers.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("second POST should replay: code=%d hdr=%q", second.Code, second.Header().Get(handlers.HeaderIdempotencyReplayed))
	}

	// without the key the duplicate is suppressed instead
	third := postJSON(r, "/api/v1/requests", "customer", "alice", body, nil)
	if third.Code != http.StatusOK {
		t.Fatalf("duplicate POST = %d", third.Code)
	}
}

func TestRegisterRoutes_IdentityLookupFailure(t *testing.T) {
	db := newTestDB(t)
	r, _ := newEngine(t, db, testConfig("/api/v1"))

	// force queries to fail by closing the underlying connection
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	w := postJSON(r, "/api/v1/requests", "customer", "alice", handlers.CreateRequestBody{DesignID: "design-1"},
		map[string]string{middleware.HeaderIdempotencyKey: "force-error"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var er handlers.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != "internal_error" {
		t.Fatalf("unexpected envelope %s (%v)", w.Body.String(), err)
	}
}

func TestRegisterRoutes_RealtimeThroughStack(t *testing.T) {
	r, _ := newEngine(t, newTestDB(t), testConfig("/api/v1"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/customer/alice/"
	hdr := http.Header{"Accept-Encoding": []string{"gzip"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"action": "nearby_shops", "data": map[string]any{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["type"] != "shop_list" {
		t.Fatalf("expected shop_list, got %v", got)
	}

	// refused identities never upgrade and use the API envelope
	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/customer/nobody", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 refusal, got err=%v resp=%v", err, resp)
	}
}

func Test_idempotencyLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	lookup := idempotencyLookup(db)

	if _, err := repo.CreateIdempotency(ctx, db, "cust-1", "POST /api/v1/requests", "k1", []string{"r1"}, http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	now := time.Now().UTC()

	if ok, err := lookup(ctx, "cust-1", "POST /api/v1/requests", "k1", now); !ok || err != nil {
		t.Fatalf("hit: ok=%v err=%v", ok, err)
	}
	if ok, err := lookup(ctx, "cust-1", "POST /api/v1/requests", "other", now); ok || err != nil {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}

	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	if ok, err := lookup(ctx, "cust-1", "POST /api/v1/requests", "k1", now); ok || err == nil {
		t.Fatalf("closed db: ok=%v err=%v", ok, err)
	}
}
