package middlewares

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/field-survey/httpx"
	"github.com/mbolis/field-survey/log"
)

// RequestLogger logs one line per request through the log package.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   status,
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
			})
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				entry = entry.WithField("request_id", reqID)
			}
			if status >= http.StatusInternalServerError {
				entry.Warn("request")
			} else {
				entry.Debug("request")
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// SingleFlight lets one request through at a time. Requests arriving while
// another is in progress get 409 with the given code.
func SingleFlight(code string) func(http.Handler) http.Handler {
	var busy atomic.Bool
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !busy.CompareAndSwap(false, true) {
				httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, code, "another request is already in progress")
				return
			}
			defer busy.Store(false)
			next.ServeHTTP(w, r)
		})
	}
}
