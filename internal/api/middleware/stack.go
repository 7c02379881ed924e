// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package middleware holds the HTTP middleware stack of the control API.
package middleware

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// StackConfig selects the optional layers of the stack.
type StackConfig struct {
	EnableMetrics bool
	EnableLogging bool
}

// ApplyStack installs the middleware on r, outermost first. Rate limiting
// is applied per route group by the server.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(chimw.Recoverer)
	r.Use(RequestID)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.EnableLogging {
		r.Use(Logging)
	}
}
