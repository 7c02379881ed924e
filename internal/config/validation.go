// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/ManuGH/canvasrec/internal/validate"
)

// Validate checks cfg and returns every problem joined into one error.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Positive("canvas.width", cfg.Canvas.Width)
	v.Positive("canvas.height", cfg.Canvas.Height)
	if cfg.Canvas.Padding < 0 {
		v.AddError("canvas.padding", "padding cannot be negative", cfg.Canvas.Padding)
	} else if cfg.Canvas.Width-2*cfg.Canvas.Padding <= 0 || cfg.Canvas.Height-2*cfg.Canvas.Padding <= 0 {
		v.AddError("canvas.padding", "padding leaves no drawable area", cfg.Canvas.Padding)
	}
	if _, err := ParseColor(cfg.Canvas.Background); err != nil {
		v.AddError("canvas.background", err.Error(), cfg.Canvas.Background)
	}
	if cfg.Canvas.SpriteCacheEntries < 0 {
		v.AddError("canvas.spriteCacheEntries", "cannot be negative", cfg.Canvas.SpriteCacheEntries)
	}

	v.Range("recording.fps", cfg.Recording.FPS, 1, 120)
	v.Range("recording.renderWorkers", cfg.Recording.RenderWorkers, 1, 64)
	v.Path("recording.tempDir", cfg.Recording.TempDir)
	v.NotEmpty("recording.outputName", cfg.Recording.OutputName)
	if strings.ContainsAny(cfg.Recording.OutputName, `/\`) {
		v.AddError("recording.outputName", "must be a plain file name", cfg.Recording.OutputName)
	}
	v.Range("recording.jpegQuality", cfg.Recording.JPEGQuality, 1, 100)
	if cfg.Recording.PollInterval <= 0 {
		v.AddError("recording.pollInterval", "must be positive", cfg.Recording.PollInterval)
	}
	if cfg.Recording.StatusInterval <= 0 {
		v.AddError("recording.statusInterval", "must be positive", cfg.Recording.StatusInterval)
	}

	v.Path("export.dir", cfg.Export.Dir)
	v.Range("export.stillQuality", cfg.Export.StillQuality, 1, 100)

	v.Path("scene.assetDir", cfg.Scene.AssetDir)
	if cfg.History.Path != "" {
		v.Path("history.path", cfg.History.Path)
	}

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	if cfg.API.RateLimit < 0 {
		v.AddError("api.rateLimit", "cannot be negative", cfg.API.RateLimit)
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateWindow <= 0 {
		v.AddError("api.rateWindow", "must be positive when rate limiting is on", cfg.API.RateWindow)
	}

	v.OneOf("log.level", strings.ToLower(cfg.Log.Level), []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"})
	v.OneOf("log.format", cfg.Log.Format, []string{"json", "console"})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

// ParseColor parses "#rrggbb" or "rrggbb" into an opaque color.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q must be #rrggbb", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q must be #rrggbb", s)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil // #nosec G115 -- masked to a byte
}
