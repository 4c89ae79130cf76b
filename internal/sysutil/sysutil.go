// Package sysutil holds process-level helpers used by the server command and
// long-lived components: global logger setup, component loggers and small
// environment parsing helpers.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger sets the global level and installs the global logger. Pretty
// selects zerolog's console writer (honoring NO_COLOR); otherwise output is
// one JSON object per line. A nil w writes to stderr.
func SetupLogger(lvl string, pretty bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	SetLogLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000", NoColor: IsTruthy(os.Getenv("NO_COLOR"))}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// SetLogLevel applies lvl as the global zerolog level and returns it. Names
// are case-insensitive; "warning" is accepted for warn. Empty, unknown and
// the disabling levels ("disabled", "trace", numeric) fall back to info.
func SetLogLevel(lvl string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(lvl))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level < zerolog.DebugLevel || level > zerolog.PanicLevel || name == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// Component returns the global logger tagged with component=name. Call it
// after SetupLogger; the logger is captured at call time.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// IsTruthy reports whether an environment value means true: "1", "true",
// "yes", "y" or "on", case-insensitive.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
