// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Canvas: CanvasConfig{
			Width:              1920,
			Height:             1080,
			Padding:            0,
			Background:         "#ffffff",
			SpriteCacheTTL:     time.Minute,
			SpriteCacheEntries: 256,
		},
		Recording: RecordingConfig{
			FPS:                 30,
			RenderWorkers:       2,
			TempDir:             filepath.Join(os.TempDir(), "canvasrec"),
			OutputName:          "recording.avi",
			JPEGQuality:         90,
			PollInterval:        100 * time.Millisecond,
			DiagnosticsInterval: 5 * time.Second,
			StatusInterval:      500 * time.Millisecond,
			StopTimeout:         30 * time.Second,
		},
		Export: ExportConfig{
			Dir:          "exports",
			StillQuality: 95,
		},
		Scene: SceneConfig{
			AssetDir: "images",
			Watch:    true,
		},
		History: HistoryConfig{
			Path: filepath.Join("data", "history.db"),
		},
		API: APIConfig{
			ListenAddr:      "127.0.0.1:8080",
			RateLimit:       600,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
