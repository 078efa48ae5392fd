package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tomasen/realip"
)

// LoggerMiddleware logs every request with its status and duration.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			l := GetLogger(r.Context()).WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"ip":       realip.FromRequest(r),
				"status":   ww.Status(),
				"size":     ww.BytesWritten(),
				"duration": time.Since(start).String(),
			})

			if ww.Status() >= http.StatusInternalServerError {
				l.Warn("request failed")
				return
			}
			l.Debug("request served")
		}()

		next.ServeHTTP(ww, r)
	})
}

// BodyLimiterMiddleware limits request body size.
func BodyLimiterMiddleware(size int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}

// RoutePattern returns matched chi route pattern or "unknown".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}

	return "unknown"
}
