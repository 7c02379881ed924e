// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/canvasrec/internal/config"
	"github.com/ManuGH/canvasrec/internal/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, dir string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	f, err := os.Create(filepath.Join(dir, "ball.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	sceneYAML := "assets:\n  - name: ball\n    variants: [ball.png]\nobjects:\n  - asset: ball\n    x: 10\n    y: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.yaml"), []byte(sceneYAML), 0o600))
}

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	root := t.TempDir()
	writeAssets(t, root)

	cfg := config.Defaults()
	cfg.Canvas.Width, cfg.Canvas.Height = 64, 48
	cfg.Recording.FPS = 10
	cfg.Recording.TempDir = filepath.Join(root, "tmp")
	cfg.Recording.PollInterval = 10 * time.Millisecond
	cfg.Recording.StopTimeout = 5 * time.Second
	cfg.Export.Dir = filepath.Join(root, "exports")
	cfg.Scene.File = filepath.Join(root, "scene.yaml")
	cfg.Scene.AssetDir = root
	cfg.Scene.Watch = false
	cfg.History.Path = filepath.Join(root, "data", "history.db")
	cfg.API.ListenAddr = "127.0.0.1:0"
	cfg.API.RateLimit = 0
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func post(t *testing.T, base, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(base+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestBuild_RecordSaveAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := build(ctx, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	base := "http://" + mgr.Addr()

	resp := post(t, base, "/api/v1/recording/start", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	time.Sleep(400 * time.Millisecond)

	resp = post(t, base, "/api/v1/recording/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped struct {
		Summary recorder.Summary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stopped))
	_ = resp.Body.Close()
	assert.Positive(t, stopped.Summary.FramesWritten)
	assert.Equal(t, stopped.Summary.FramesCaptured, stopped.Summary.FramesWritten)

	resp = post(t, base, "/api/v1/recording/save", `{"path":"take.avi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	fi, err := os.Stat(filepath.Join(cfg.Export.Dir, "take.avi"))
	require.NoError(t, err)
	assert.Positive(t, fi.Size())

	resp = post(t, base, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	assert.FileExists(t, filepath.Join(cfg.Export.Dir, "canvas.1.jpg"))

	resp, err = http.Get(base + "/api/v1/recordings")
	require.NoError(t, err)
	var list []recorder.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	_ = resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, stopped.Summary.ID, list[0].ID)

	http.DefaultClient.CloseIdleConnections()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timed out")
	}
}

func TestBuild_ShutdownFinalizesActiveRecording(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := build(ctx, cfg)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp := post(t, "http://"+mgr.Addr(), "/api/v1/recording/start", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()
	http.DefaultClient.CloseIdleConnections()

	time.Sleep(300 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.FileExists(t, filepath.Join(cfg.Recording.TempDir, cfg.Recording.OutputName))
}

func TestBuild_BadSceneFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scene.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuild_ReadinessReportsComponents(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	mgr, err := build(ctx, cfg)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + mgr.Addr() + "/readyz")
	require.NoError(t, err)
	var ready struct {
		Ready  bool                      `json:"ready"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	_ = resp.Body.Close()
	http.DefaultClient.CloseIdleConnections()

	assert.True(t, ready.Ready)
	for _, name := range []string{"temp_dir", "export_dir", "history", "recorder"} {
		assert.Contains(t, ready.Checks, name)
	}

	cancel()
	require.NoError(t, <-done)
}
