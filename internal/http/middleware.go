package http

import (
	"net/http"
	"time"

	"github.com/fjod/cartsync/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

const slowRequestThreshold = time.Second

// AccessLog writes one zerolog line per request. The chi wrapper keeps
// http.Hijacker available for the websocket upgrade.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		event := logger.Ctx(r.Context()).Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Ctx(r.Context()).Error()
		case duration > slowRequestThreshold:
			event = logger.Ctx(r.Context()).Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("http request")
	})
}

// MaxBodySize rejects bodies larger than maxBytes with 413.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
