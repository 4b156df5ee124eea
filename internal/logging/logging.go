// Package logging configures the structured logger used across flexconnect.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/torosent/flexconnect/internal/config"
)

// New returns a logger writing to w at level. JSON format selects the JSON
// handler; anything else yields human readable text.
func New(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init builds a logger from cfg, installs it as the slog default and returns it.
func Init(w io.Writer, cfg config.Config) *slog.Logger {
	logger := New(w, ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
