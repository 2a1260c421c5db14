package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a JSON logger on stdout tagged with component.
// WYVERN_LOG_LEVEL sets the level (default info); WYVERN_LOG_FORMAT=console
// switches to human-readable output for local runs.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerTo(logOutput(os.Getenv("WYVERN_LOG_FORMAT")), component, ParseLogLevel(os.Getenv("WYVERN_LOG_LEVEL")))
}

// NewLoggerTo builds a logger on w at level.
func NewLoggerTo(w io.Writer, component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLogLevel maps a level name to a zerolog level, defaulting to info.
func ParseLogLevel(s string) zerolog.Level {
	if s == "disabled" {
		return zerolog.Disabled
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func logOutput(format string) io.Writer {
	if format == "console" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
