// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health provides liveness and readiness checks for the control API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/canvasrec/internal/log"
	"golang.org/x/sync/errgroup"
)

// Status is the folded state of one check or of all of them.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultCheckTimeout bounds a single checker.
const DefaultCheckTimeout = 2 * time.Second

// CheckResult is what a checker reports. DurationMS is filled by the manager.
type CheckResult struct {
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version string
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// NewManager returns a manager reporting version.
func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: DefaultCheckTimeout}
}

// SetCheckTimeout changes the per-checker deadline.
func (m *Manager) SetCheckTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

// RegisterChecker adds checker. Names are expected to be unique.
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Names lists the registered checkers alphabetically.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checkers))
	for _, c := range m.checkers {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

// run executes every checker in parallel, each under its own deadline, and
// folds the results. A checker that overruns its deadline is unhealthy.
func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	m.mu.RLock()
	checkers := slices.Clone(m.checkers)
	m.mu.RUnlock()
	if len(checkers) == 0 {
		return StatusHealthy, nil
	}

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = m.check(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	checks := make(map[string]CheckResult, len(checkers))
	overall := StatusHealthy
	for i, c := range checkers {
		res := results[i]
		checks[c.Name()] = res
		switch res.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, checks
}

func (m *Manager) check(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() { done <- c.Check(ctx) }()

	var res CheckResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = CheckResult{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// Health is the liveness view. Component checks run only when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if verbose {
		resp.Status, resp.Checks = m.run(ctx)
	}
	return resp
}

// Ready is the readiness view. Any unhealthy checker makes it not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	status, checks := m.run(ctx)
	return ReadinessResponse{
		Ready:     status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// ServeHealth handles HTTP health check requests. It always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness requests: 200 when ready, 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	if !resp.Ready {
		logger.Warn().
			Str(log.FieldEvent, "readiness.failed").
			Str("status", string(resp.Status)).
			Msg("readiness check failed")
	}
}
