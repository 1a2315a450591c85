package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger for ENV. Every record carries the
// service name and environment so camera logs from several hosts can be merged.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: env == "development",
	}

	var handler slog.Handler
	switch env {
	case "production":
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(w, opts)
	case "test":
		// frame-level debug logs drown test output
		opts.Level = slog.LevelWarn
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", "vigia"),
		slog.String("env", env),
	)
}
