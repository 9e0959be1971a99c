package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. LOG_LEVEL overrides fallback, and
// LOG_FORMAT=json switches to structured JSON output.
func Init(fallback slog.Level) {
	slog.SetDefault(New(os.Stderr, fallback))
}

// New builds a logger writing to w using the LOG_LEVEL and LOG_FORMAT
// environment variables.
func New(w io.Writer, fallback slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(os.Getenv("LOG_LEVEL"), fallback)}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Level parses a LOG_LEVEL value. Unknown or empty values yield fallback.
func Level(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}
