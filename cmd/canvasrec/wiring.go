// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ManuGH/canvasrec/internal/api"
	"github.com/ManuGH/canvasrec/internal/cache"
	"github.com/ManuGH/canvasrec/internal/config"
	"github.com/ManuGH/canvasrec/internal/daemon"
	"github.com/ManuGH/canvasrec/internal/export"
	"github.com/ManuGH/canvasrec/internal/health"
	"github.com/ManuGH/canvasrec/internal/history"
	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
	"github.com/ManuGH/canvasrec/internal/recorder"
	"github.com/ManuGH/canvasrec/internal/render"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/ManuGH/canvasrec/internal/telemetry"
)

// build assembles the process from cfg. Resources acquired here are
// released by the manager's shutdown hooks, registered in acquisition order
// so they run in reverse.
func build(ctx context.Context, cfg config.AppConfig) (daemon.Manager, error) {
	logger := xglog.WithComponent("main")
	var hooks []struct {
		name string
		fn   daemon.ShutdownHook
	}
	addHook := func(name string, fn daemon.ShutdownHook) {
		hooks = append(hooks, struct {
			name string
			fn   daemon.ShutdownHook
		}{name, fn})
	}
	// On a failed build, release what was acquired so far.
	fail := func(err error) (daemon.Manager, error) {
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].fn(context.Background())
		}
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "canvasrec",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}
	addHook("telemetry", tp.Shutdown)

	bg, err := config.ParseColor(cfg.Canvas.Background)
	if err != nil {
		return fail(err)
	}
	sprites := cache.New[image.Image](cache.Options{
		TTL:             cfg.Canvas.SpriteCacheTTL,
		CleanupInterval: cfg.Canvas.SpriteCacheTTL,
		MaxEntries:      cfg.Canvas.SpriteCacheEntries,
	})
	addHook("sprite-cache", func(context.Context) error { sprites.Close(); return nil })

	renderer, err := render.New(render.Geometry{
		CanvasWidth:  cfg.Canvas.Width,
		CanvasHeight: cfg.Canvas.Height,
		Padding:      cfg.Canvas.Padding,
		Background:   bg,
	}, render.Options{SpriteCache: sprites})
	if err != nil {
		return fail(err)
	}

	sc := scene.New()
	lib := scene.NewLibrary()
	if cfg.Scene.File != "" {
		n, err := scene.LoadInto(cfg.Scene.File, cfg.Scene.AssetDir, lib, sc)
		metrics.RecordSceneReload(n, err)
		if err != nil {
			return fail(fmt.Errorf("load scene: %w", err))
		}
		logger.Info().
			Str(xglog.FieldEvent, "scene.loaded").
			Str(xglog.FieldPath, cfg.Scene.File).
			Int("objects", n).
			Msg("scene loaded")

		if cfg.Scene.Watch {
			w := scene.NewWatcher(cfg.Scene.File, cfg.Scene.AssetDir, lib, sc, func(n int, err error) {
				metrics.RecordSceneReload(n, err)
				if err == nil {
					renderer.InvalidateSprites()
				}
			})
			if err := w.Start(ctx); err != nil {
				return fail(fmt.Errorf("watch scene: %w", err))
			}
			addHook("scene-watcher", func(context.Context) error { w.Stop(); return nil })
		}
	}

	checks := health.NewManager(cfg.Version)
	checks.RegisterChecker(health.NewWritableDirChecker("temp_dir", cfg.Recording.TempDir))
	checks.RegisterChecker(health.NewWritableDirChecker("export_dir", cfg.Export.Dir))

	var opts []recorder.Option
	var hist api.History
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			return fail(fmt.Errorf("open history: %w", err))
		}
		addHook("history", func(context.Context) error { return store.Close() })
		if issues, err := store.Verify(ctx); err != nil || len(issues) > 0 {
			logger.Warn().Err(err).Strs("issues", issues).
				Str(xglog.FieldEvent, "history.integrity").
				Msg("history database failed its integrity check")
		}
		opts = append(opts, recorder.WithHistory(store))
		hist = store
		checks.RegisterChecker(health.NewCheckFunc("history", func(ctx context.Context) health.CheckResult {
			issues, err := store.Verify(ctx)
			switch {
			case err != nil:
				return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
			case len(issues) > 0:
				return health.CheckResult{Status: health.StatusDegraded, Message: fmt.Sprintf("%d integrity issues", len(issues))}
			}
			return health.CheckResult{Status: health.StatusHealthy}
		}))
	}

	ctrl := recorder.New(recorder.Config{
		FPS:                 cfg.Recording.FPS,
		RenderWorkers:       cfg.Recording.RenderWorkers,
		TempDir:             cfg.Recording.TempDir,
		OutputName:          cfg.Recording.OutputName,
		PollInterval:        cfg.Recording.PollInterval,
		DiagnosticsInterval: cfg.Recording.DiagnosticsInterval,
		StatusInterval:      cfg.Recording.StatusInterval,
		JPEGQuality:         cfg.Recording.JPEGQuality,
	}, sc, renderer, opts...)
	checks.RegisterChecker(health.NewCheckFunc("recorder", func(context.Context) health.CheckResult {
		st := ctrl.Status()
		if st.State == recorder.StateFailed {
			return health.CheckResult{Status: health.StatusDegraded, Message: st.Text, Error: st.Error}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: st.Text}
	}))
	statusLog := xglog.WithComponent("status")
	ctrl.OnStatus(func(text string) {
		statusLog.Debug().Str(xglog.FieldEvent, "recording.status").Msg(text)
	})

	fin := export.New(export.Config{
		ExportDir:    cfg.Export.Dir,
		StillQuality: cfg.Export.StillQuality,
	}, ctrl, renderer)

	srv := api.New(api.Config{
		ServiceName: "canvasrec",
		RateLimit:   cfg.API.RateLimit,
		RateWindow:  cfg.API.RateWindow,
		StopTimeout: cfg.Recording.StopTimeout,
		AssetDir:    cfg.Scene.AssetDir,
	}, api.Deps{
		Recorder: ctrl,
		Exporter: fin,
		Scene:    sc,
		Library:  lib,
		History:  hist,
		Health:   checks,
	})

	// An active recording is finalized before anything it uses goes away.
	addHook("recording", func(context.Context) error {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Recording.StopTimeout)
		defer cancel()
		sum, err := ctrl.Stop(stopCtx)
		if errors.Is(err, recorder.ErrNotRecording) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info().
			Str(xglog.FieldEvent, "recording.finalized_on_shutdown").
			Str(xglog.FieldPath, sum.Path).
			Msg("active recording finalized during shutdown")
		return nil
	})

	mgr, err := daemon.NewManager(daemon.ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    cfg.Recording.StopTimeout + 15*time.Second,
		IdleTimeout:     time.Minute,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}, daemon.Deps{
		APIHandler: srv.Handler(),
		Workers: []daemon.Worker{
			{Name: "status-notifier", Run: ctrl.RunStatusNotifier},
		},
	})
	if err != nil {
		return fail(err)
	}
	for _, h := range hooks {
		mgr.RegisterShutdownHook(h.name, h.fn)
	}
	return mgr, nil
}
