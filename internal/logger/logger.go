package logger

import (
	"log/slog"
	"os"
)

// Creates the application logger and installs it as the slog default.
// Logs go to stderr so command output on stdout stays clean for piping.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)

	logger := slog.New(handler)

	slog.SetDefault(logger)
	return logger
}
