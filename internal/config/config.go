// Package config loads the server configuration from the environment.
//
// Every setting has a default that is valid on its own, so an empty
// environment boots a local sqlite instance. A variable that is set but
// cannot be parsed is a load error naming the variable; Load never falls back
// silently on a typo. Validation reports every problem at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists origins allowed to call the HTTP API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects the datastore.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	DSN    string // DB_DSN (postgres)
}

// WSConfig tunes WebSocket sessions.
type WSConfig struct {
	ReadLimit      int64         // WS_READ_LIMIT bytes per inbound frame
	WriteTimeout   time.Duration // WS_WRITE_TIMEOUT
	PongTimeout    time.Duration // WS_PONG_TIMEOUT
	PingInterval   time.Duration // WS_PING_INTERVAL, must be < PongTimeout
	SendBuffer     int           // WS_SEND_BUFFER queued events per session
	FrameRPS       float64       // WS_FRAME_RPS, 0 disables frame limiting
	FrameBurst     int           // WS_FRAME_BURST
	AllowedOrigins []string      // WS_ALLOWED_ORIGINS, empty allows all
}

// OTELConfig controls trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0,1]
}

// Config is the full server configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DB       DBConfig
	SeedPath string // optional YAML fixture applied at startup

	NearbyLimit    int           // shops returned by nearby search
	ShopCacheTTL   time.Duration // active-shop cache lifetime, 0 disables
	RegistryShards int           // session registry shard count

	WS WSConfig

	// HTTP token bucket per actor (or IP when anonymous).
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for main packages that cannot continue without config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, normalizes the result and validates it.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           e.str("GIN_MODE", "release"),

		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    e.str("API_BASE_PATH", "/api/v1"),

		DB: DBConfig{
			Driver: e.str("DB_DRIVER", "sqlite"),
			Path:   e.str("DB_PATH", "app.db"),
			DSN:    e.str("DB_DSN", ""),
		},
		SeedPath: e.str("SEED_PATH", ""),

		NearbyLimit:    e.int("NEARBY_LIMIT", 5),
		ShopCacheTTL:   e.dur("SHOP_CACHE_TTL", 30*time.Second),
		RegistryShards: e.int("REGISTRY_SHARDS", 32),

		WS: WSConfig{
			ReadLimit:      int64(e.int("WS_READ_LIMIT", 64<<10)),
			WriteTimeout:   e.dur("WS_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:    e.dur("WS_PONG_TIMEOUT", 60*time.Second),
			PingInterval:   e.dur("WS_PING_INTERVAL", 54*time.Second),
			SendBuffer:     e.int("WS_SEND_BUFFER", 64),
			FrameRPS:       e.float("WS_FRAME_RPS", 20),
			FrameBurst:     e.int("WS_FRAME_BURST", 40),
			AllowedOrigins: e.list("WS_ALLOWED_ORIGINS"),
		},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "nailo-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	if len(e.errs) > 0 {
		return cfg, errors.Join(e.errs...)
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.GinMode = strings.ToLower(c.GinMode)
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	c.DB.Driver = strings.ToLower(c.DB.Driver)
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
	for i, o := range c.WS.AllowedOrigins {
		c.WS.AllowedOrigins[i] = strings.TrimRight(strings.ToLower(o), "/")
	}
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q must be one of: debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.DB.Path) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DB.DSN) != "", "DB_DSN must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be one of: sqlite, postgres", c.DB.Driver))
	}

	check(c.NearbyLimit >= 1, "NEARBY_LIMIT must be >= 1")
	check(c.ShopCacheTTL >= 0, "SHOP_CACHE_TTL must be >= 0")
	check(c.RegistryShards >= 1, "REGISTRY_SHARDS must be >= 1")

	check(c.WS.ReadLimit > 0, "WS_READ_LIMIT must be > 0")
	check(c.WS.SendBuffer >= 1, "WS_SEND_BUFFER must be >= 1")
	check(c.WS.WriteTimeout > 0 && c.WS.PongTimeout > 0 && c.WS.PingInterval > 0,
		"WS timeouts must be positive durations")
	check(c.WS.PingInterval < c.WS.PongTimeout, "WS_PING_INTERVAL must be shorter than WS_PONG_TIMEOUT")
	check(c.WS.FrameRPS >= 0, "WS_FRAME_RPS must be >= 0")
	check(c.WS.FrameRPS == 0 || c.WS.FrameBurst >= 1, "WS_FRAME_BURST must be >= 1")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env reads typed variables and remembers which ones failed to parse.
// Unset and empty variables take the default.
type env struct {
	errs []error
}

func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) fail(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *env) str(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, errors.New("not an integer"))
		return def
	}
	return i
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, errors.New("not a number"))
		return def
	}
	return f
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, errors.New("not a boolean"))
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, errors.New("not a duration"))
		return def
	}
	return d
}

// list splits a comma-separated variable, dropping blanks. Unset is nil.
func (e *env) list(k string) []string {
	v, ok := e.lookup(k)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank is "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
