// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scene

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads the scene whenever the scene file changes on disk.
// It watches the parent directory so editors that replace the file via
// rename are still observed.
type Watcher struct {
	path     string
	assetDir string
	lib      *Library
	scene    *Scene
	logger   zerolog.Logger
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	reloaded func(objects int, err error)
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for path. onReload, if non-nil, is called
// after every reload attempt.
func NewWatcher(path, assetDir string, lib *Library, sc *Scene, onReload func(int, error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		assetDir: assetDir,
		lib:      lib,
		scene:    sc,
		logger:   xglog.WithComponent("scene"),
		debounce: defaultDebounce,
		reloaded: onReload,
	}
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch scene dir: %w", err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	w.logger.Info().
		Str(xglog.FieldEvent, "scene.watcher_started").
		Str(xglog.FieldPath, w.path).
		Msg("watching scene file for changes")

	w.wg.Add(1)
	go w.loop(ctx, fw)
	return nil
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()
	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(xglog.FieldEvent, "scene.watcher_stopped").Msg("scene watcher stopped")
			_ = fw.Close()
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug().
				Str(xglog.FieldEvent, "scene.file_changed").
				Str("op", event.Op.String()).
				Msg("scene file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "scene.watcher_error").
				Msg("scene watcher error")
		}
	}
}

func (w *Watcher) reload() {
	n, err := LoadInto(w.path, w.assetDir, w.lib, w.scene)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "scene.reload_failed").
			Str(xglog.FieldPath, w.path).
			Msg("scene reload failed, keeping previous scene")
	} else {
		w.logger.Info().
			Str(xglog.FieldEvent, "scene.reloaded").
			Int("objects", n).
			Msg("scene reloaded from file")
	}
	if w.reloaded != nil {
		w.reloaded(n, err)
	}
}
