// Package logging builds the zerolog loggers used across the module.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logger fields
const (
	PACKAGE = "pkg"
	ACTION  = "action_id"
	KIND    = "kind"
	STATE   = "state"
	ROLE    = "role"
	TX      = "tx_hash"
	ACCOUNT = "account"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Config controls the root logger.
type Config struct {
	Level   string // debug, info, warn, error; defaults to info
	Console bool   // human readable output instead of JSON
	Out     io.Writer
}

// New returns the root logger for the process.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Package returns a child logger tagged with pkg=name.
func Package(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str(PACKAGE, name).Logger()
}

// Nop is a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
