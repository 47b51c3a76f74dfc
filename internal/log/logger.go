// Package log configures the process-wide slog logger and tags every
// line with the component emitting it.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on slog's default logger. The level
// string is case-insensitive; anything unrecognized falls back to info.
func Setup(component, level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})).With(FieldComponent, component)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name onto its slog.Level.
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
