package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger used by the API. Records pick up trace,
// span and user ids from the request context.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler)).With("service", "civicfix-api")
}
