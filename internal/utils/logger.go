package utils

import (
	"io"
	"log/slog"
	"strings"
)

// SetupLogger creates a structured text logger at the named level.
// Falls back to INFO level if level is empty or invalid.
func SetupLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

func NilLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1, // Above error level to suppress all logs
	}))
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
