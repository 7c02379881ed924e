// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package export moves finished recordings to their destination and writes
// still images of the canvas.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/ManuGH/canvasrec/internal/telemetry"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoRecording is returned by Save when there is no finalized recording.
	ErrNoRecording = errors.New("export: no finished recording to save")
	// ErrRecordingActive is returned by Save while a session is running.
	ErrRecordingActive = errors.New("export: recording still in progress")
	// ErrIO wraps filesystem failures while moving or writing exports.
	ErrIO = errors.New("export: i/o failure")
)

// Defaults for still export, matching the canvas tool's historic output.
const (
	DefaultStillName    = "canvas.1.jpg"
	DefaultStillQuality = 95
)

// ArtifactSource reports the last finalized recording.
type ArtifactSource interface {
	LastArtifact() (path string, active bool)
}

// StillRenderer composites a snapshot into an image.
type StillRenderer interface {
	RenderRGBA(objs []scene.ObjectState) *image.RGBA
}

// Config configures a Finalizer.
type Config struct {
	// ExportDir receives stills and saves given as relative paths.
	ExportDir    string
	StillQuality int
}

// Finalizer implements Save and ExportStill.
type Finalizer struct {
	cfg      Config
	src      ArtifactSource
	renderer StillRenderer
	logger   zerolog.Logger

	rename func(oldpath, newpath string) error
}

// New returns a finalizer for the recordings of src.
func New(cfg Config, src ArtifactSource, r StillRenderer) *Finalizer {
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.StillQuality <= 0 || cfg.StillQuality > 100 {
		cfg.StillQuality = DefaultStillQuality
	}
	return &Finalizer{
		cfg:      cfg,
		src:      src,
		renderer: r,
		logger:   xglog.WithComponent("export"),
		rename:   os.Rename,
	}
}

// resolveTarget makes relative targets relative to the export dir and maps
// directory targets to dir/name.
func (f *Finalizer) resolveTarget(target, name string) string {
	if target == "" {
		return filepath.Join(f.cfg.ExportDir, name)
	}
	isDir := strings.HasSuffix(target, string(os.PathSeparator)) || strings.HasSuffix(target, "/")
	if !filepath.IsAbs(target) {
		target = filepath.Join(f.cfg.ExportDir, target)
	}
	if !isDir {
		if fi, err := os.Stat(target); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if isDir {
		return filepath.Join(target, name)
	}
	return filepath.Clean(target)
}

// Save moves the last finalized recording to target and returns the final
// path. The temp artifact is consumed. Across filesystems the file is copied
// into place atomically and the source removed afterwards.
func (f *Finalizer) Save(ctx context.Context, target string) (dst string, err error) {
	src, active := f.src.LastArtifact()
	if active {
		return "", ErrRecordingActive
	}
	if src == "" {
		return "", ErrNoRecording
	}
	if _, serr := os.Stat(src); serr != nil {
		if errors.Is(serr, os.ErrNotExist) {
			return "", ErrNoRecording
		}
		return "", fmt.Errorf("%w: %v", ErrIO, serr)
	}

	dst = f.resolveTarget(target, filepath.Base(src))
	crossDevice := false

	ctx, span := telemetry.Tracer("canvasrec/export").Start(ctx, "export.save")
	defer func() {
		span.SetAttributes(telemetry.ExportAttributes("video", dst, crossDevice)...)
		telemetry.RecordError(span, err, "io")
		span.End()
		metrics.IncExport("video", err == nil)
	}()
	logger := xglog.WithContext(ctx, f.logger)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("%w: create target dir: %v", ErrIO, err)
	}

	if rerr := f.rename(src, dst); rerr != nil {
		if !errors.Is(rerr, syscall.EXDEV) {
			return "", fmt.Errorf("%w: move recording: %v", ErrIO, rerr)
		}
		crossDevice = true
		metrics.IncExportCrossDevice()
		logger.Info().
			Str(xglog.FieldEvent, "export.cross_device").
			Str(xglog.FieldPath, src).
			Str(xglog.FieldFinalPath, dst).
			Msg("target on another filesystem, copying")
		if err := copyAtomic(ctx, src, dst); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldPath, src).Msg("copied recording but could not remove temp file")
		}
	}

	logger.Info().
		Str(xglog.FieldEvent, "export.saved").
		Str(xglog.FieldFinalPath, dst).
		Bool("cross_device", crossDevice).
		Msg("recording saved")
	return dst, nil
}

func copyAtomic(ctx context.Context, src, dst string) error {
	// #nosec G304 -- src is the controller's own temp artifact
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open recording: %v", ErrIO, err)
	}
	defer func() { _ = in.Close() }()

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return fmt.Errorf("%w: create pending file: %v", ErrIO, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			xglog.FromContext(ctx).Debug().Err(err).Msg("cleanup pending export")
		}
	}()

	if _, err := io.Copy(pending, &ctxReader{ctx: ctx, r: in}); err != nil {
		return fmt.Errorf("%w: copy recording: %v", ErrIO, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace target: %v", ErrIO, err)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ExportStill renders objs and writes a JPEG to target (default
// <export dir>/canvas.1.jpg), replacing any existing file atomically.
func (f *Finalizer) ExportStill(ctx context.Context, objs []scene.ObjectState, target string) (dst string, err error) {
	dst = f.resolveTarget(target, DefaultStillName)

	ctx, span := telemetry.Tracer("canvasrec/export").Start(ctx, "export.still",
		trace.WithAttributes(telemetry.ExportAttributes("still", dst, false)...))
	defer func() {
		telemetry.RecordError(span, err, "io")
		span.End()
		metrics.IncExport("still", err == nil)
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("%w: create export dir: %v", ErrIO, err)
	}

	img := f.renderer.RenderRGBA(objs)

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return "", fmt.Errorf("%w: create pending file: %v", ErrIO, err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			f.logger.Debug().Err(cerr).Msg("cleanup pending still")
		}
	}()

	if err := jpeg.Encode(pending, img, &jpeg.Options{Quality: f.cfg.StillQuality}); err != nil {
		return "", fmt.Errorf("%w: encode still: %v", ErrIO, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("%w: replace still: %v", ErrIO, err)
	}

	logger := xglog.WithContext(ctx, f.logger)
	logger.Info().
		Str(xglog.FieldEvent, "export.still").
		Str(xglog.FieldFinalPath, dst).
		Int("objects", len(objs)).
		Msg("canvas exported")
	return dst, nil
}
