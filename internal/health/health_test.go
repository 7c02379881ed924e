// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, st Status) Checker {
	return NewCheckFunc(name, func(context.Context) CheckResult { return CheckResult{Status: st} })
}

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(fixed("a", StatusHealthy))
	m.RegisterChecker(fixed("b", StatusDegraded))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)
	assert.Equal(t, "v1.0.0", resp.Version)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, []string{"a", "b"}, m.Names())
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1")
	assert.True(t, m.Ready(context.Background()).Ready, "no checkers means ready")

	m.RegisterChecker(fixed("degraded", StatusDegraded))
	r := m.Ready(context.Background())
	assert.True(t, r.Ready)
	assert.Equal(t, StatusDegraded, r.Status)

	m.RegisterChecker(fixed("down", StatusUnhealthy))
	m.RegisterChecker(fixed("later", StatusDegraded))
	r = m.Ready(context.Background())
	assert.False(t, r.Ready)
	assert.Equal(t, StatusUnhealthy, r.Status, "degraded never downgrades unhealthy")
}

func TestManager_HTTP(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed("down", StatusUnhealthy))

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, StatusUnhealthy, h.Status)

	w = httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWritableDirChecker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	res := NewWritableDirChecker("tmp", dir).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	res = NewWritableDirChecker("bad", filepath.Join(blocker, "sub")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestManager_SlowCheckerTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	m := NewManager("v1")
	m.SetCheckTimeout(30 * time.Millisecond)
	m.RegisterChecker(NewCheckFunc("stuck", func(context.Context) CheckResult {
		<-release
		return CheckResult{Status: StatusHealthy}
	}))
	m.RegisterChecker(fixed("fine", StatusHealthy))

	start := time.Now()
	r := m.Ready(context.Background())
	assert.Less(t, time.Since(start), time.Second, "checks run under a deadline")
	assert.False(t, r.Ready)
	assert.Equal(t, StatusUnhealthy, r.Checks["stuck"].Status)
	assert.Equal(t, "check timed out", r.Checks["stuck"].Message)
	assert.GreaterOrEqual(t, r.Checks["stuck"].DurationMS, int64(30))
	assert.Equal(t, StatusHealthy, r.Checks["fine"].Status)
}
