// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn" or "error" (any case) to a level.
// Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New returns a logger writing to w. format "json" selects the JSON handler,
// anything else the text handler.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "chorely")
}

// Setup creates the stderr logger, sets it as the default, and returns it.
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}
