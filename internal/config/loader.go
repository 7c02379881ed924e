// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys lists every environment key the last Load looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load applies defaults, then the file, then the environment, and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Keys absent from the file keep their
// current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	c := &cfg.Canvas
	c.Width = ParseInt(l.key("CANVAS_WIDTH"), c.Width)
	c.Height = ParseInt(l.key("CANVAS_HEIGHT"), c.Height)
	c.Padding = ParseInt(l.key("CANVAS_PADDING"), c.Padding)
	c.Background = ParseString(l.key("CANVAS_BACKGROUND"), c.Background)
	c.SpriteCacheTTL = ParseDuration(l.key("SPRITE_CACHE_TTL"), c.SpriteCacheTTL)
	c.SpriteCacheEntries = ParseInt(l.key("SPRITE_CACHE_ENTRIES"), c.SpriteCacheEntries)

	r := &cfg.Recording
	r.FPS = ParseInt(l.key("FPS"), r.FPS)
	r.RenderWorkers = ParseInt(l.key("RENDER_WORKERS"), r.RenderWorkers)
	r.TempDir = ParseString(l.key("TEMP_DIR"), r.TempDir)
	r.OutputName = ParseString(l.key("OUTPUT_NAME"), r.OutputName)
	r.JPEGQuality = ParseInt(l.key("JPEG_QUALITY"), r.JPEGQuality)
	r.PollInterval = ParseDuration(l.key("POLL_INTERVAL"), r.PollInterval)
	r.DiagnosticsInterval = ParseDuration(l.key("DIAGNOSTICS_INTERVAL"), r.DiagnosticsInterval)
	r.StatusInterval = ParseDuration(l.key("STATUS_INTERVAL"), r.StatusInterval)
	r.StopTimeout = ParseDuration(l.key("STOP_TIMEOUT"), r.StopTimeout)

	cfg.Export.Dir = ParseString(l.key("EXPORT_DIR"), cfg.Export.Dir)
	cfg.Export.StillQuality = ParseInt(l.key("STILL_QUALITY"), cfg.Export.StillQuality)

	cfg.Scene.File = ParseString(l.key("SCENE_FILE"), cfg.Scene.File)
	cfg.Scene.AssetDir = ParseString(l.key("ASSET_DIR"), cfg.Scene.AssetDir)
	cfg.Scene.Watch = ParseBool(l.key("SCENE_WATCH"), cfg.Scene.Watch)

	cfg.History.Path = ParseString(l.key("HISTORY_DB"), cfg.History.Path)

	a := &cfg.API
	a.ListenAddr = ParseString(l.key("LISTEN_ADDR"), a.ListenAddr)
	a.RateLimit = ParseInt(l.key("RATE_LIMIT"), a.RateLimit)
	a.RateWindow = ParseDuration(l.key("RATE_WINDOW"), a.RateWindow)
	a.ShutdownTimeout = ParseDuration(l.key("SHUTDOWN_TIMEOUT"), a.ShutdownTimeout)

	cfg.Log.Level = ParseString(l.key("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Format = ParseString(l.key("LOG_FORMAT"), cfg.Log.Format)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), t.Enabled)
	t.Exporter = ParseString(l.key("TELEMETRY_EXPORTER"), t.Exporter)
	t.Endpoint = ParseString(l.key("TELEMETRY_ENDPOINT"), t.Endpoint)
	t.SamplingRate = ParseFloat(l.key("TELEMETRY_SAMPLING_RATE"), t.SamplingRate)
	t.Environment = ParseString(l.key("TELEMETRY_ENVIRONMENT"), t.Environment)
}
