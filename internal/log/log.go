// Package log provides the unified logging infrastructure for digital-cv.
//
// This package provides:
//   - A type alias for *slog.Logger to use as DI dependency
//   - Factory functions producing a console sink (tint) plus an optional
//     append-only file sink
//   - A Nop logger for testing
//
// Design Philosophy:
//   - Use Dependency Injection for loggers, not globals
//   - Each component receives a logger via constructor
//   - Components can add context via logger.With()
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Logger is a type alias for *slog.Logger.
// Components should accept log.Logger as a dependency.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// File is an optional path; when set, entries are also appended to this
	// file as JSON. The file is created if missing.
	File string

	// NoColor disables ANSI colors on the console sink.
	NoColor bool
}

// New creates a logger writing to stderr, and to cfg.File when configured.
// The returned closer releases the file sink; it is a no-op when no file is
// configured.
func New(cfg Config) (Logger, func() error, error) {
	console := tint.NewHandler(os.Stderr, &tint.Options{
		Level:   cfg.Level,
		NoColor: cfg.NoColor,
	})

	if cfg.File == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.Level})

	return slog.New(newFanoutHandler(console, file)), f.Close, nil
}

// NewWithWriter creates a logger that writes text entries to the given
// writer. Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level}))
}

// NewNop creates a logger that discards all output. Tests only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// slog.Level. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
