package common

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel maps debug/info/warn/error to a slog level; unknown values mean info
func ParseLogLevel(level string) slog.Level {
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

// SetupLogging installs a text handler on w as the default slog logger
func SetupLogging(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
	slog.SetDefault(logger)
	return logger
}
