package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/recon/kit"
)

// TraceID generates a random trace ID for each request and injects it into
// the context, the X-Trace-ID response header and a per-request logger
// derived from logger (nil means slog.Default()).
func TraceID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := make([]byte, 4)
			rand.Read(id)
			traceID := hex.EncodeToString(id)

			ctx := kit.WithTraceID(kit.WithTransport(r.Context(), "http"), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			base := logger
			if base == nil {
				base = slog.Default()
			}
			l := base.With(
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			ctx = context.WithValue(ctx, LoggerKey, l)
			l.Debug("shield: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
