package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/idx"
)

// RequestIDHeader carries the correlation id between the console, the
// gateway and the platform.
const RequestIDHeader = "X-Request-ID"

// HTTPMiddleware logs requests and attaches a contextual logger into request
// context. A well-formed incoming X-Request-ID is kept, anything else is
// replaced, and the id is echoed on the response and left on the request so
// outbound calls carry it too.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			id, err := idx.Parse(r.Header.Get(RequestIDHeader))
			if err != nil {
				id = idx.New()
			}
			reqID := id.String()
			r.Header.Set(RequestIDHeader, reqID)
			rw.Header().Set(RequestIDHeader, reqID)

			// Create contextual logger
			logger := base.With(
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ctx := WithRequestID(WithContext(r.Context(), logger), reqID)
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			FromContext(ctx).Info("http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach Flush on the real writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
