// Command server runs the nailo coordination backend: the versioned HTTP API
// and the realtime session endpoint on one listener.
//
// @title        Nailo Backend API
// @version      1.0
// @description  Real-time coordination between customers and nail shops: nearby search, service requests and shop responses.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/tbourn/go-nailo-backend/internal/config"
	httpapi "github.com/tbourn/go-nailo-backend/internal/http"
	"github.com/tbourn/go-nailo-backend/internal/http/handlers"
	"github.com/tbourn/go-nailo-backend/internal/observability"
	"github.com/tbourn/go-nailo-backend/internal/realtime"
	"github.com/tbourn/go-nailo-backend/internal/repo"
	"github.com/tbourn/go-nailo-backend/internal/services"
	"github.com/tbourn/go-nailo-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownGrace         = 15 * time.Second
	idempotencySweepEvery = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	envFile := flags.String("env-file", "", "dotenv file loaded before reading the environment")
	seedPath := flags.String("seed", "", "YAML fixture applied at startup (overrides SEED_PATH)")
	migrateOnly := flags.Bool("migrate-only", false, "migrate and seed, then exit")
	_ = flags.Parse(os.Args[1:])

	// .env is optional; an explicit --env-file must exist.
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("load %s: %w", *envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	log.Info().Str("version", version).Str("db", cfg.DB.Driver).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver: cfg.DB.Driver,
		Path:   cfg.DB.Path,
		DSN:    cfg.DB.DSN,
		Silent: cfg.LogLevel != "debug",
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := observability.InstrumentDB(db, cfg.OTEL); err != nil {
		return fmt.Errorf("instrument db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if path := sysutil.FirstNonEmpty(*seedPath, cfg.SeedPath); path != "" {
		seed, err := repo.LoadSeed(path)
		if err != nil {
			return err
		}
		if err := repo.ApplySeed(ctx, db, seed); err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		log.Info().Str("path", path).
			Int("customers", len(seed.Customers)).
			Int("shops", len(seed.Shops)).
			Int("designs", len(seed.Designs)).
			Msg("seed applied")
	}
	if *migrateOnly {
		log.Info().Msg("migrate-only: done")
		return nil
	}

	registry := realtime.NewRegistry(cfg.RegistryShards)
	coord := services.NewCoordinator(db, registry, services.CoordinatorOptions{
		NearbyLimit:  cfg.NearbyLimit,
		ShopCacheTTL: cfg.ShopCacheTTL,
	})
	ws := realtime.NewHandler(&services.Directory{DB: db}, registry, realtime.NewDispatcher(coord), realtime.Options{
		ReadLimit:      cfg.WS.ReadLimit,
		WriteTimeout:   cfg.WS.WriteTimeout,
		PongTimeout:    cfg.WS.PongTimeout,
		PingInterval:   cfg.WS.PingInterval,
		SendBuffer:     cfg.WS.SendBuffer,
		FrameRPS:       cfg.WS.FrameRPS,
		FrameBurst:     cfg.WS.FrameBurst,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})
	ws.Fail = handlers.Fail

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.NewDeps(db, coord, ws.Serve), cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go sweepIdempotency(ctx, db, idempotencySweepEvery)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Sessions are hijacked connections that srv.Shutdown does not track.
	if err := ws.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("realtime shutdown")
	}
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}

// sweepIdempotency deletes expired idempotency records until ctx ends.
func sweepIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("idempotency sweep")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency sweep")
			}
		}
	}
}
