// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads canvasrec settings from defaults, a YAML file and
// CANVASREC_* environment variables.
package config

import "time"

// AppConfig is the resolved process configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Canvas    CanvasConfig    `yaml:"canvas"`
	Recording RecordingConfig `yaml:"recording"`
	Export    ExportConfig    `yaml:"export"`
	Scene     SceneConfig     `yaml:"scene"`
	History   HistoryConfig   `yaml:"history"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CanvasConfig describes the drawing surface and the sprite cache.
type CanvasConfig struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Padding int `yaml:"padding"`
	// Background is a #rrggbb color.
	Background string `yaml:"background"`

	SpriteCacheTTL     time.Duration `yaml:"spriteCacheTTL"`
	SpriteCacheEntries int           `yaml:"spriteCacheEntries"`
}

// RecordingConfig tunes the capture pipeline.
type RecordingConfig struct {
	FPS                 int           `yaml:"fps"`
	RenderWorkers       int           `yaml:"renderWorkers"`
	TempDir             string        `yaml:"tempDir"`
	OutputName          string        `yaml:"outputName"`
	JPEGQuality         int           `yaml:"jpegQuality"`
	PollInterval        time.Duration `yaml:"pollInterval"`
	DiagnosticsInterval time.Duration `yaml:"diagnosticsInterval"`
	StatusInterval      time.Duration `yaml:"statusInterval"`
	StopTimeout         time.Duration `yaml:"stopTimeout"`
}

// ExportConfig controls saved recordings and stills.
type ExportConfig struct {
	Dir          string `yaml:"dir"`
	StillQuality int    `yaml:"stillQuality"`
}

// SceneConfig locates the scene description and its images.
type SceneConfig struct {
	File     string `yaml:"file"`
	AssetDir string `yaml:"assetDir"`
	Watch    bool   `yaml:"watch"`
}

// HistoryConfig locates the session history database. An empty Path
// disables history.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
