// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mux drains the frame queue into a single video file.
//
// The worker writes to "<output>.partial" and renames it into place only
// after the container was closed successfully, so a crash or a fatal error
// never leaves a truncated file at the output path.
package mux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/canvasrec/internal/frame"
	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
	"github.com/ManuGH/canvasrec/internal/queue"
	"github.com/rs/zerolog"
)

var (
	// ErrDimensionMismatch is returned when a frame's size differs from the
	// size the stream was opened with.
	ErrDimensionMismatch = errors.New("mux: frame dimensions differ from stream")
	// ErrStreamOpen is returned when the output stream cannot be created.
	ErrStreamOpen = errors.New("mux: cannot open output stream")
)

// DefaultPollInterval bounds how long the worker waits on an empty queue
// before re-checking for shutdown.
const DefaultPollInterval = 100 * time.Millisecond

// PartialSuffix marks an output file that is still being written.
const PartialSuffix = ".partial"

// Config configures a Worker.
type Config struct {
	// OutputPath is the final artifact path.
	OutputPath string
	FPS        int
	// PollInterval is the queue wait per iteration.
	PollInterval time.Duration
	// Open creates the stream; defaults to OpenMJPEG(DefaultJPEGQuality).
	Open OpenFunc
	// OnFrameWritten is called after each frame is appended.
	OnFrameWritten func(seq uint64)
	Logger         *zerolog.Logger
}

// Worker consumes one session's frames in sequence order.
type Worker struct {
	cfg    Config
	q      *queue.Queue
	logger zerolog.Logger

	stream  Stream
	width   int
	height  int
	next    uint64
	pending map[uint64]*frame.Frame
	written atomic.Uint64

	mu        sync.Mutex
	finalPath string
}

// NewWorker creates a worker draining q. Sequence numbers start at 0.
func NewWorker(q *queue.Queue, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Open == nil {
		cfg.Open = OpenMJPEG(DefaultJPEGQuality)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 1
	}
	logger := xglog.WithComponent("mux")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str(xglog.FieldComponent, "mux").Logger()
	}
	return &Worker{
		cfg:     cfg,
		q:       q,
		logger:  logger,
		pending: make(map[uint64]*frame.Frame),
	}
}

// PartialPath returns the in-progress path for an output path.
func PartialPath(output string) string {
	return output + PartialSuffix
}

// FramesWritten returns how many frames reached the stream so far.
func (w *Worker) FramesWritten() uint64 {
	return w.written.Load()
}

// FinalPath returns the artifact path once Run finalized it, or "".
func (w *Worker) FinalPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finalPath
}

// Run drains the queue until it is closed and empty, then finalizes the
// file. A cancelled ctx or any fatal error aborts and removes the partial
// file. Cancellation wins over buffered frames: the queue keeps returning
// them after Close, so ctx is checked before every Get.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			w.abort(err)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, gerr := w.q.Get(ctx, w.cfg.PollInterval)
		switch {
		case gerr == nil:
			if err := w.accept(f); err != nil {
				return err
			}
		case errors.Is(gerr, queue.ErrTimeout):
			continue
		case errors.Is(gerr, queue.ErrClosed):
			return w.finalize(ctx)
		default:
			return gerr
		}
	}
}

func (w *Worker) accept(f *frame.Frame) error {
	if w.stream == nil {
		if err := w.open(f.Width, f.Height); err != nil {
			return err
		}
	}
	if f.Width != w.width || f.Height != w.height {
		metrics.IncMuxError("dimension_mismatch")
		return fmt.Errorf("%w: frame %d is %s, stream is %dx%d",
			ErrDimensionMismatch, f.Seq, f.Resolution(), w.width, w.height)
	}

	w.pending[f.Seq] = f
	for {
		next, ok := w.pending[w.next]
		if !ok {
			return nil
		}
		delete(w.pending, w.next)
		if err := w.write(next); err != nil {
			return err
		}
		w.next++
	}
}

func (w *Worker) open(width, height int) error {
	partial := PartialPath(w.cfg.OutputPath)
	if err := os.MkdirAll(filepath.Dir(partial), 0o750); err != nil {
		metrics.IncMuxError("stream_open")
		return fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	s, err := w.cfg.Open(partial, width, height, w.cfg.FPS)
	if err != nil {
		metrics.IncMuxError("stream_open")
		return fmt.Errorf("%w: %v", ErrStreamOpen, err)
	}
	w.stream, w.width, w.height = s, width, height

	w.logger.Info().
		Str(xglog.FieldEvent, "mux.stream_opened").
		Str(xglog.FieldPath, partial).
		Str(xglog.FieldResolution, fmt.Sprintf("%dx%d", width, height)).
		Int(xglog.FieldFPS, w.cfg.FPS).
		Msg("output stream opened")
	return nil
}

func (w *Worker) write(f *frame.Frame) error {
	if err := w.stream.WriteFrame(f); err != nil {
		metrics.IncMuxError("write")
		return fmt.Errorf("write frame: %w", err)
	}
	w.written.Add(1)
	metrics.IncFramesWritten()
	if w.cfg.OnFrameWritten != nil {
		w.cfg.OnFrameWritten(f.Seq)
	}
	return nil
}

func (w *Worker) finalize(ctx context.Context) error {
	// Gaps cannot occur while every captured sample is rendered, but if one
	// does the remaining frames are still written in order rather than lost.
	if len(w.pending) > 0 {
		seqs := make([]uint64, 0, len(w.pending))
		for s := range w.pending {
			seqs = append(seqs, s)
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
		w.logger.Warn().
			Str(xglog.FieldEvent, "mux.sequence_gap").
			Uint64("expected_seq", w.next).
			Int("pending", len(seqs)).
			Msg("sequence gap at end of stream, flushing remaining frames")
		for _, s := range seqs {
			if err := w.write(w.pending[s]); err != nil {
				return err
			}
			delete(w.pending, s)
		}
	}

	if w.stream == nil {
		w.logger.Info().
			Str(xglog.FieldEvent, "mux.empty").
			Msg("no frames received, nothing to finalize")
		return nil
	}

	s := w.stream
	w.stream = nil
	if err := s.Close(); err != nil {
		metrics.IncMuxError("finalize")
		return fmt.Errorf("close stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(PartialPath(w.cfg.OutputPath), w.cfg.OutputPath); err != nil {
		metrics.IncMuxError("finalize")
		return fmt.Errorf("finalize output: %w", err)
	}

	w.mu.Lock()
	w.finalPath = w.cfg.OutputPath
	w.mu.Unlock()

	w.logger.Info().
		Str(xglog.FieldEvent, "mux.finalized").
		Str(xglog.FieldFinalPath, w.cfg.OutputPath).
		Uint64(xglog.FieldFramesWritten, w.written.Load()).
		Msg("output finalized")
	return nil
}

func (w *Worker) abort(cause error) {
	if w.stream != nil {
		_ = w.stream.Close()
		w.stream = nil
	}
	partial := PartialPath(w.cfg.OutputPath)
	if err := os.Remove(partial); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn().Err(err).Str(xglog.FieldPath, partial).Msg("failed to remove partial output")
	}
	w.logger.Error().
		Err(cause).
		Str(xglog.FieldEvent, "mux.aborted").
		Uint64(xglog.FieldFramesWritten, w.written.Load()).
		Msg("muxer aborted, partial output removed")
}
