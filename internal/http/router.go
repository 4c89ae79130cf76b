// Package httpapi mounts the HTTP surface of the coordination engine: the
// versioned JSON API, the realtime upgrade route, health, metrics and docs.
// Both transports share one middleware chain up to the route, so a
// websocket handshake is traced, logged, identified and rate limited exactly
// like an API call.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-nailo-backend/docs"
	"github.com/tbourn/go-nailo-backend/internal/config"
	"github.com/tbourn/go-nailo-backend/internal/http/handlers"
	"github.com/tbourn/go-nailo-backend/internal/http/middleware"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/services"
)

// Deps are the long-lived components the routes dispatch to. They are built
// by the server command because the realtime endpoint and the coordinator
// share one session registry.
type Deps struct {
	Coordinator handlers.Coordinator
	Directory   middleware.ActorResolver
	// Realtime serves GET /ws/:kind/:id; nil leaves the route unmounted.
	Realtime gin.HandlerFunc
}

// NewDeps builds Deps around a coordinator, resolving identities from db.
func NewDeps(db *gorm.DB, coord *services.Coordinator, realtime gin.HandlerFunc) Deps {
	return Deps{
		Coordinator: coord,
		Directory:   &services.Directory{DB: db},
		Realtime:    realtime,
	}
}

// RegisterRoutes attaches middleware and routes to r.
//
// Order matters: request id before the access log, the log before recovery
// so panics carry the id, identity before idempotency (keys are per actor),
// idempotency before the limiter (replays are not charged).
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName,
		otelgin.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Hijacked and scraped routes are never compressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/ws(/|$)`, `^/metrics$`}),
	))

	r.Use(middleware.ActorIdentity(deps.Directory))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByActorOrIP()).
		Exempt("/health", "/metrics").
		Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		PrivatePrefixes: []string{apiPath(cfg.APIBasePath, "/requests"), apiPath(cfg.APIBasePath, "/responses")},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Realtime sessions: /ws/{customer|shop}/{external id}
	if deps.Realtime != nil {
		r.GET("/ws/:kind/:id", deps.Realtime)
		r.GET("/ws/:kind/:id/", deps.Realtime)
	}

	h := handlers.New(deps.Coordinator, db, cfg.IdempotencyTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/shops/nearby", h.NearbyShops)

		api.POST("/requests", h.CreateRequest)
		api.POST("/requests/:id/respond", h.RespondToRequest)

		api.GET("/responses", h.ListResponses)
	}
}

// idempotencyLookup reports whether actorID already completed scope with key.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, actorID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, actorID, scope, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

// corsMiddleware allows any origin when none are configured (credentials are
// never allowed). With an allowlist, listed origins are echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderUserType, middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		// ACAO on every response, including those without an Origin header.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(cc)}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(cc)}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// apiPath joins the API base path and a route, treating "/" (or empty) as root.
func apiPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
