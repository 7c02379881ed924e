// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command canvasrec runs the canvas compositor and recorder with its HTTP
// control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/canvasrec/internal/config"
	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "canvasrec",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "config.invalid").Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "canvasrec",
		Version: version.Version,
	})
	logger = xglog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str(xglog.FieldEvent, "startup.failed").Msg("failed to initialize")
	}

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("listen", cfg.API.ListenAddr).
		Int(xglog.FieldFPS, cfg.Recording.FPS).
		Str("temp_dir", cfg.Recording.TempDir).
		Msg("canvasrec starting")

	if err := app.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Str(xglog.FieldEvent, "shutdown.error").Msg("canvasrec stopped with errors")
		os.Exit(1)
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("canvasrec stopped")
}
