// Package logging constructs the process-wide structured logger. The
// teacher repo's own internal/logging package was not present in the
// retrieved snapshot, only its call sites (cmd/shoal/main.go,
// internal/provisioner/dispatcher/dispatcher.go: "logging.New(level)");
// this reconstructs it in the same log/slog style those call sites imply.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a text-handler slog.Logger at the given level name (one of
// "debug", "info", "warn", "error"; unrecognized values fall back to info).
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
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
