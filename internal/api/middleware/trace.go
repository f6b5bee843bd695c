package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/platform/logger"
)

// TraceMiddleware adds a trace ID and a trace-scoped logger to the request
// context. Apply it early in the chain so every handler and log line can be
// correlated.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(
			"trace_id", shared.GetTraceID(ctx)))

		slog.Debug("request started",
			slog.String("trace_id", shared.GetTraceID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
