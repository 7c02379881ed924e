// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the control API and the background workers of the
// canvasrec process and tears them down in order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Worker is a long-running background task. Run must return once ctx is
// cancelled.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps are the pieces the manager runs.
type Deps struct {
	Logger     *zerolog.Logger
	APIHandler http.Handler
	Workers    []Worker
}

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start runs the server and workers and blocks until ctx is cancelled or
	// one of them fails.
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down the server, runs hooks and stops workers.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown.
	RegisterShutdownHook(name string, hook ShutdownHook)

	// Addr is the bound listen address once Start is serving.
	Addr() string
}

type manager struct {
	serverCfg ServerConfig
	deps      Deps
	logger    zerolog.Logger

	apiServer     *http.Server
	listener      net.Listener
	cancelWorkers context.CancelFunc
	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager.
func NewManager(serverCfg ServerConfig, deps Deps) (Manager, error) {
	if deps.APIHandler == nil {
		return nil, ErrMissingAPIHandler
	}
	if serverCfg.ShutdownTimeout <= 0 {
		serverCfg.ShutdownTimeout = 10 * time.Second
	}
	logger := xglog.WithComponent("manager")
	if deps.Logger != nil {
		logger = deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger()
	}
	return &manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    logger,
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true

	ln, err := net.Listen("tcp", m.serverCfg.ListenAddr)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("listen %s: %w", m.serverCfg.ListenAddr, err)
	}
	m.listener = ln
	m.apiServer = &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
	}
	workerCtx, cancel := context.WithCancel(ctx)
	m.cancelWorkers = cancel
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(workerCtx)

	for _, w := range m.deps.Workers {
		g.Go(func() error {
			m.logger.Debug().Str("worker", w.Name).Msg("worker started")
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error().Err(err).
					Str(xglog.FieldEvent, "daemon.worker_failed").
					Str("worker", w.Name).
					Msg("worker failed")
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		m.logger.Info().
			Str(xglog.FieldEvent, "api.server.listening").
			Str("addr", ln.Addr().String()).
			Msg("API server listening (HTTP)")
		if err := m.apiServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).
				Str(xglog.FieldEvent, "api.server.failed").
				Msg("API server failed")
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	<-gctx.Done()
	if ctx.Err() != nil {
		m.logger.Info().Msg("shutdown signal received")
	} else {
		m.logger.Error().Msg("component failed, initiating shutdown")
	}

	// Detached but bounded so shutdown completes after the parent is cancelled.
	shutdownErr := m.Shutdown(context.WithoutCancel(ctx))
	runErr := g.Wait()
	if runErr != nil || shutdownErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	return nil
}

func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started || m.apiServer == nil {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(ctx, m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := m.apiServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	m.cancelWorkers()

	if len(errs) > 0 {
		m.logger.Error().Int("error_count", len(errs)).Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}

func (m *manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
