// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the HTTP control surface of canvasrec.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/canvasrec/internal/api/middleware"
	"github.com/ManuGH/canvasrec/internal/health"
	"github.com/ManuGH/canvasrec/internal/recorder"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the recording controller as seen by the API.
type Recorder interface {
	Start(ctx context.Context) (recorder.SessionInfo, error)
	Pause() error
	Resume() error
	Stop(ctx context.Context) (recorder.Summary, error)
	Status() recorder.Status
}

// Exporter saves recordings and stills.
type Exporter interface {
	Save(ctx context.Context, target string) (string, error)
	ExportStill(ctx context.Context, objs []scene.ObjectState, target string) (string, error)
}

// History lists past sessions.
type History interface {
	List(ctx context.Context, limit int) ([]recorder.Summary, error)
}

// Config configures the server.
type Config struct {
	ServiceName string
	// RateLimit is requests per RateWindow and client IP on /api. Zero
	// disables limiting.
	RateLimit  int
	RateWindow time.Duration
	// StopTimeout bounds how long a stop request waits for finalization.
	StopTimeout time.Duration
	// AssetDir is searched for images of newly added objects.
	AssetDir string
}

// Deps are the components the handlers drive. History may be nil.
type Deps struct {
	Recorder Recorder
	Exporter Exporter
	Scene    *scene.Scene
	Library  *scene.Library
	History  History
	Health   *health.Manager
}

// Server owns the router.
type Server struct {
	cfg  Config
	deps Deps
}

// New constructs a server.
func New(cfg Config, deps Deps) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "canvasrec"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	if deps.Library == nil {
		deps.Library = scene.NewLibrary()
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	return &Server{cfg: cfg, deps: deps}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{EnableMetrics: true, EnableLogging: true})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimit,
				WindowSize:   s.cfg.RateWindow,
			}))
		}

		r.Route("/recording", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/stop", s.handleStop)
			r.Get("/status", s.handleStatus)
			r.Post("/save", s.handleSave)
		})
		r.Get("/recordings", s.handleRecordings)
		r.Post("/snapshot", s.handleSnapshot)

		r.Route("/scene", func(r chi.Router) {
			r.Get("/", s.handleScene)
			r.Post("/objects", s.handleAddObject)
			r.Route("/objects/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetObject)
				r.Delete("/", s.handleDeleteObject)
				r.Post("/move", s.handleMove)
				r.Post("/resize", s.handleResize)
				r.Post("/rotate", s.handleRotate)
				r.Post("/toggle", s.handleToggle)
				r.Post("/lock", s.handleLock)
				r.Post("/front", s.handleFront)
				r.Post("/back", s.handleBack)
			})
		})
	})

	return middleware.OTelHTTP(s.cfg.ServiceName)(r)
}
