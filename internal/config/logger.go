package config

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a settings log level to slog. Unknown values fall back to
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger builds the application logger for the configured level.
func NewLogger(level string, out io.Writer) *slog.Logger {
	parsed := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     parsed,
		AddSource: parsed == slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
