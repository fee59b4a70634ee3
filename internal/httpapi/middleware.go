package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenGuard rejects any request whose "token" header does not match the
// server's configured shared secret.
func TokenGuard(serverToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("token") != serverToken {
				writeError(w, authError("missing or incorrect token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs every request's method, path, status, and duration,
// tagging each with chi's request ID, or a fresh uuid if chi's RequestID
// middleware did not run before this one.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID == "" {
				reqID = uuid.NewString()
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", reqID),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if ww.Status() >= 500 {
				logger.Error("request", fields...)
			} else if ww.Status() >= 400 {
				logger.Warn("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
		})
	}
}
