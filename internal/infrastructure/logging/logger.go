// Package logging provides structured logging on top of log/slog.
//
// The default format is plain slog text; "maven" selects the bracketed
// [LEVEL] [SYSTEM] [HH:MM:SS] layout, "json" selects slog's JSON handler.
package logging

import (
	"log/slog"
	"os"

	"github.com/amirhzn/mida-tracker-backend/internal/infrastructure/config"
)

// NewLogger creates a structured logger for the configured level and format.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "maven":
		handler = NewMavenHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// NewLoggerWithSystem creates a logger scoped to one subsystem (e.g.
// "api", "imports", "matcher").
func NewLoggerWithSystem(cfg config.LoggingConfig, system string) *slog.Logger {
	return NewLogger(cfg).With("system", system)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
