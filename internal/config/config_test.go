// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
canvas:
  width: 800
  height: 600
  padding: 10
  background: "#202020"
recording:
  fps: 25
  pollInterval: 50ms
export:
  dir: /srv/exports
`)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Canvas.Width)
	assert.Equal(t, 600, cfg.Canvas.Height)
	assert.Equal(t, 10, cfg.Canvas.Padding)
	assert.Equal(t, "#202020", cfg.Canvas.Background)
	assert.Equal(t, 25, cfg.Recording.FPS)
	assert.Equal(t, 50*time.Millisecond, cfg.Recording.PollInterval)
	assert.Equal(t, "/srv/exports", cfg.Export.Dir)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Recording.RenderWorkers)
	assert.Equal(t, 95, cfg.Export.StillQuality)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "recording:\n  fps: 25\napi:\n  listenAddr: \":9000\"\n")
	t.Setenv("CANVASREC_FPS", "60")
	t.Setenv("CANVASREC_SCENE_WATCH", "no")
	t.Setenv("CANVASREC_TELEMETRY_SAMPLING_RATE", "0.25")
	t.Setenv("CANVASREC_RATE_WINDOW", "30s")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Recording.FPS)
	assert.Equal(t, ":9000", cfg.API.ListenAddr)
	assert.False(t, cfg.Scene.Watch)
	assert.InDelta(t, 0.25, cfg.Telemetry.SamplingRate, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.API.RateWindow)
	assert.Contains(t, l.ConsumedEnvKeys, "CANVASREC_FPS")
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CANVASREC_FPS", "fast")
	t.Setenv("CANVASREC_POLL_INTERVAL", "")
	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Recording.FPS)
	assert.Equal(t, 100*time.Millisecond, cfg.Recording.PollInterval)
}

func TestLoad_StrictFile(t *testing.T) {
	_, err := NewLoader(writeConfig(t, "canvas:\n  widht: 10\n"), "").Load()
	require.ErrorIs(t, err, ErrUnknownConfigField)

	_, err = NewLoader(writeConfig(t, "canvas:\n  width: 10\n---\nlog:\n  level: debug\n"), "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")

	cfg, err := NewLoader(writeConfig(t, ""), "").Load()
	require.NoError(t, err, "an empty file is allowed")
	assert.Equal(t, 1920, cfg.Canvas.Width)

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), "").Load()
	require.Error(t, err)
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.Width = 20
	cfg.Canvas.Padding = 10
	cfg.Canvas.Background = "white"
	cfg.Recording.FPS = 0
	cfg.Recording.OutputName = "a/b.avi"
	cfg.API.ListenAddr = "8080"
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	for _, field := range []string{
		"canvas.padding", "canvas.background", "recording.fps",
		"recording.outputName", "api.listenAddr", "log.level",
	} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestValidate_TelemetryOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Exporter = "zipkin"
	require.NoError(t, Validate(cfg))

	cfg.Telemetry.Enabled = true
	require.Error(t, Validate(cfg))
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}, c)

	c, err = ParseColor("FFFFFF")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	for _, bad := range []string{"", "#fff", "#gggggg", "#12345678"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseHelpers(t *testing.T) {
	t.Setenv("CANVASREC_T_BOOL", "YES")
	t.Setenv("CANVASREC_T_BAD_BOOL", "maybe")
	t.Setenv("CANVASREC_T_FLOAT", "1.5")
	t.Setenv("CANVASREC_T_STR", "x")

	assert.True(t, ParseBool("CANVASREC_T_BOOL", false))
	assert.True(t, ParseBool("CANVASREC_T_BAD_BOOL", true))
	assert.InDelta(t, 1.5, ParseFloat("CANVASREC_T_FLOAT", 0), 1e-9)
	assert.Equal(t, "x", ParseString("CANVASREC_T_STR", "y"))
	assert.Equal(t, "y", ParseString("CANVASREC_T_UNSET", "y"))
	assert.Equal(t, 7, ParseInt("CANVASREC_T_UNSET", 7))
	assert.Equal(t, time.Second, ParseDuration("CANVASREC_T_UNSET", time.Second))
}
