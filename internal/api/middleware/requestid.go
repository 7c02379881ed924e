// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation ID in and out.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID propagates a caller supplied X-Request-ID or mints a UUID, and
// stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(xglog.ContextWithRequestID(r.Context(), id)))
	})
}

// Logging writes one access log line per request.
func Logging(next http.Handler) http.Handler {
	base := xglog.WithComponent("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		logger := xglog.WithContext(r.Context(), base)
		ev := logger.Info()
		if sw.status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str(xglog.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
