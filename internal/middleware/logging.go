package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController and the
// websocket upgrader, which need to hijack the connection.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger logs each request with method, path, status, duration, the
// caller's user id when authenticated, and the remote IP. Health probes are
// not logged.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Auth runs further down the chain, so the user id is read from a
			// holder the inner middleware can fill in.
			holder := &userHolder{}
			next.ServeHTTP(rec, r.WithContext(withUserHolder(r.Context(), holder)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", RealIP(r)),
			}
			if holder.userID != "" {
				attrs = append(attrs, slog.String("user_id", holder.userID))
			}

			switch {
			case rec.status >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request", attrs...)
			case rec.status >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request", attrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request", attrs...)
			}
		})
	}
}
