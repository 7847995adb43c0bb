// Package logging builds the zerolog loggers used by the outer layers of the
// motion pipeline.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures a logger.
type Options struct {
	// Level is a zerolog level name (debug, info, warn, error). Empty means info.
	Level string
	// Format is FormatConsole or FormatJSON. Empty means console.
	Format string
	// Writer receives the log lines. Nil means stderr.
	Writer io.Writer
}

// New creates a timestamped logger.
//
// Arguments:
// - opts: Level, format and destination.
//
// Returns:
// - zerolog.Logger: The configured logger.
// - error: If the level or format is unknown.
//
// @example
// logger, err := logging.New(logging.Options{Level: "debug", Format: "json"})
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), errors.Wrapf(err, "log level %q", opts.Level)
		}
		level = parsed
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.TimeOnly}
	case FormatJSON:
	default:
		return zerolog.Nop(), errors.Errorf("log format %q: want %s or %s", opts.Format, FormatConsole, FormatJSON)
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
