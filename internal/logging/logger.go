// Package logging provides structured logging configuration using log/slog.
//
// Loggers obtained from a context carry the chi request id for HTTP requests
// and the trace and span ids for background jobs, so every line written while
// handling one request or one job can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format)))
}

// NewHandler builds the handler Setup installs, writing to w.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
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

// FromContext returns the default logger enriched with request context.
//
// Usage:
//
//	func (h *Handler) createStatement(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("creating statement", "year", req.Year)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	return enrich(ctx, slog.Default())
}

func enrich(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}
	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	log := logging.WithFields(ctx,
//	    "import_id", imp.ID,
//	    "file", imp.FileName,
//	)
//	log.Info("import started")
//	// ... later ...
//	log.Info("import completed", "rows", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
