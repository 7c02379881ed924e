// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recorder owns the recording session lifecycle.
//
// A session is a fixed pipeline: one sampler goroutine snapshots the scene at
// a fixed rate, a bounded pool renders the samples, an unbounded queue
// buffers the frames and a single muxer writes them in capture order. Stop is
// the only way to end a session and joins every stage before returning.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/canvasrec/internal/frame"
	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
	"github.com/ManuGH/canvasrec/internal/mux"
	"github.com/ManuGH/canvasrec/internal/queue"
	"github.com/ManuGH/canvasrec/internal/render"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/ManuGH/canvasrec/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("recorder: a recording is already in progress")
	// ErrNotRecording is returned by Pause, Resume and Stop without a session.
	ErrNotRecording = errors.New("recorder: no recording in progress")
)

// DefaultOutputName is the artifact file name inside the temp dir.
const DefaultOutputName = "recording.avi"

// Config tunes the controller.
type Config struct {
	FPS           int
	RenderWorkers int
	TempDir       string
	OutputName    string

	PollInterval        time.Duration
	DiagnosticsInterval time.Duration
	StatusInterval      time.Duration

	// OpenStream overrides the container writer, mostly for tests.
	OpenStream  mux.OpenFunc
	JPEGQuality int
}

func (c *Config) applyDefaults() {
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = 2
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	if c.PollInterval <= 0 {
		c.PollInterval = mux.DefaultPollInterval
	}
	if c.DiagnosticsInterval <= 0 {
		c.DiagnosticsInterval = 5 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 500 * time.Millisecond
	}
	if c.OpenStream == nil {
		c.OpenStream = mux.OpenMJPEG(c.JPEGQuality)
	}
}

// SceneSource provides consistent copies of the scene.
type SceneSource interface {
	Snapshot() []scene.ObjectState
}

// Renderer turns a snapshot into a frame tagged with seq.
type Renderer interface {
	Render(seq uint64, objs []scene.ObjectState) *frame.Frame
	Geometry() render.Geometry
}

// SessionStore persists finished sessions.
type SessionStore interface {
	RecordSession(ctx context.Context, s Summary) error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithHistory records every finished session in store.
func WithHistory(store SessionStore) Option {
	return func(c *Controller) { c.history = store }
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// Session is the state of one recording. Fields after the comment are
// guarded by Controller.mu; the rest is set once in Start or atomic.
type Session struct {
	ID        string
	StartedAt time.Time
	logger    zerolog.Logger

	q      *queue.Queue
	muxer  *mux.Worker
	pool   *errgroup.Group
	group  *errgroup.Group
	cancel context.CancelFunc
	span   trace.Span
	diag   *rate.Sometimes

	stop        chan struct{}
	samplerDone chan struct{}

	paused   atomic.Bool
	captured atomic.Uint64

	// guarded by Controller.mu
	pauseStartedAt time.Time
	pausedTotal    time.Duration
	stopping       bool
	err            error
}

// Controller owns at most one session at a time.
type Controller struct {
	cfg      Config
	scene    SceneSource
	renderer Renderer
	history  SessionStore
	logger   zerolog.Logger

	mu           sync.Mutex
	sess         *Session
	lastArtifact string

	listenersMu sync.RWMutex
	listeners   []StatusFunc
}

// New builds a controller sampling src through r.
func New(cfg Config, src SceneSource, r Renderer, opts ...Option) *Controller {
	cfg.applyDefaults()
	c := &Controller{
		cfg:      cfg,
		scene:    src,
		renderer: r,
		logger:   xglog.WithComponent("recorder"),
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetRecordingState(string(StateIdle))
	return c
}

// OutputPath is where a finalized session artifact is placed.
func (c *Controller) OutputPath() string {
	return filepath.Join(c.cfg.TempDir, c.cfg.OutputName)
}

// Start begins a new session. The session outlives ctx; only Stop ends it.
func (c *Controller) Start(ctx context.Context) (SessionInfo, error) {
	c.mu.Lock()
	if c.sess != nil {
		id := c.sess.ID
		c.mu.Unlock()
		c.logger.Warn().
			Str(xglog.FieldEvent, "recording.start_rejected").
			Str(xglog.FieldSessionID, id).
			Msg("start requested while a recording is active")
		return SessionInfo{}, ErrAlreadyRecording
	}

	output := c.OutputPath()
	if err := prepareOutput(c.cfg.TempDir, output); err != nil {
		c.mu.Unlock()
		metrics.IncMuxError("stream_open")
		c.logger.Error().Err(err).
			Str(xglog.FieldEvent, "recording.prepare_failed").
			Str(xglog.FieldPath, output).
			Msg("cannot prepare recording output")
		return SessionInfo{}, fmt.Errorf("%w: %v", mux.ErrStreamOpen, err)
	}
	c.lastArtifact = ""

	geo := c.renderer.Geometry()
	w, h := geo.Size()
	resolution := fmt.Sprintf("%dx%d", w, h)

	s := &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		q:           queue.New(),
		pool:        new(errgroup.Group),
		stop:        make(chan struct{}),
		samplerDone: make(chan struct{}),
		diag:        &rate.Sometimes{Interval: c.cfg.DiagnosticsInterval},
	}
	s.logger = c.logger.With().Str(xglog.FieldSessionID, s.ID).Logger()
	s.pool.SetLimit(c.cfg.RenderWorkers)

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sctx = xglog.ContextWithSessionID(sctx, s.ID)
	sctx, s.span = telemetry.Tracer("canvasrec/recorder").Start(sctx, "recording.session",
		trace.WithAttributes(telemetry.SessionAttributes(s.ID, c.cfg.FPS, resolution)...))
	s.cancel = cancel

	s.muxer = mux.NewWorker(s.q, mux.Config{
		OutputPath:   output,
		FPS:          c.cfg.FPS,
		PollInterval: c.cfg.PollInterval,
		Open:         c.cfg.OpenStream,
		Logger:       &s.logger,
	})

	g, gctx := errgroup.WithContext(sctx)
	s.group = g
	c.sess = s
	c.mu.Unlock()

	g.Go(func() error {
		c.sample(gctx, s)
		return nil
	})
	g.Go(func() error {
		err := s.muxer.Run(gctx)
		if err != nil {
			c.fail(s, err)
		}
		return err
	})

	s.logger.Info().
		Str(xglog.FieldEvent, "recording.started").
		Int(xglog.FieldFPS, c.cfg.FPS).
		Str(xglog.FieldResolution, resolution).
		Str(xglog.FieldPath, output).
		Msg("recording started")
	c.transitioned()

	return SessionInfo{
		ID:         s.ID,
		StartedAt:  s.StartedAt,
		FPS:        c.cfg.FPS,
		Resolution: resolution,
		OutputPath: output,
	}, nil
}

// prepareOutput makes sure dir exists and no stale artifact from a previous
// session is left at output.
func prepareOutput(dir, output string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	for _, p := range []string{output, mux.PartialPath(output)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Pause stops capturing until Resume. Pausing a paused session is a no-op.
func (c *Controller) Pause() error {
	c.mu.Lock()
	s := c.sess
	if s == nil || s.stopping {
		c.mu.Unlock()
		return ErrNotRecording
	}
	if s.paused.Load() {
		c.mu.Unlock()
		return nil
	}
	s.pauseStartedAt = time.Now()
	s.paused.Store(true)
	c.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldEvent, "recording.paused").
		Uint64(xglog.FieldFramesCaptured, s.captured.Load()).
		Msg("recording paused")
	c.transitioned()
	return nil
}

// Resume continues a paused session. Resuming a running session is a no-op.
func (c *Controller) Resume() error {
	c.mu.Lock()
	s := c.sess
	if s == nil || s.stopping {
		c.mu.Unlock()
		return ErrNotRecording
	}
	if !s.paused.Load() {
		c.mu.Unlock()
		return nil
	}
	pausedFor := time.Since(s.pauseStartedAt)
	s.pausedTotal += pausedFor
	s.pauseStartedAt = time.Time{}
	s.paused.Store(false)
	c.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldEvent, "recording.resumed").
		Dur("paused_for", pausedFor).
		Msg("recording resumed")
	c.transitioned()
	return nil
}

// Stop ends the session: the sampler is stopped, in-flight renders finish,
// the queue is closed and the muxer drains it and finalizes the artifact.
// If ctx expires before the muxer is done the output is discarded.
// A fatal muxer error is returned together with the summary.
func (c *Controller) Stop(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	s := c.sess
	if s == nil || s.stopping {
		c.mu.Unlock()
		return Summary{}, ErrNotRecording
	}
	s.stopping = true
	stoppedAt := time.Now()
	if s.paused.Load() {
		s.pausedTotal += stoppedAt.Sub(s.pauseStartedAt)
		s.pauseStartedAt = time.Time{}
	}
	c.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldEvent, "recording.stopping").
		Uint64(xglog.FieldFramesCaptured, s.captured.Load()).
		Int(xglog.FieldQueueDepth, s.q.Len()).
		Msg("stopping recording, draining frame queue")
	c.transitioned()

	close(s.stop)
	<-s.samplerDone
	if err := s.pool.Wait(); err != nil {
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "recording.render_failed").Msg("render pool error")
	}
	s.q.Close()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		s.cancel()
		// The muxer may have renamed the file just before it saw the
		// cancellation; only a muxer error means the output is gone.
		if err := <-done; err != nil {
			runErr = fmt.Errorf("stop interrupted before output was finalized: %w", ctx.Err())
		}
	}
	s.cancel()

	c.mu.Lock()
	if runErr == nil {
		runErr = s.err
	}
	summary := Summary{
		ID:             s.ID,
		StartedAt:      s.StartedAt,
		StoppedAt:      stoppedAt,
		FPS:            c.cfg.FPS,
		FramesCaptured: s.captured.Load(),
		FramesWritten:  s.muxer.FramesWritten(),
		Active:         stoppedAt.Sub(s.StartedAt) - s.pausedTotal,
		Paused:         s.pausedTotal,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
		if p := s.muxer.FinalPath(); p != "" {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn().Err(err).Str(xglog.FieldPath, p).Msg("failed to remove output of failed session")
			}
		}
	} else {
		summary.Path = s.muxer.FinalPath()
	}
	c.lastArtifact = summary.Path
	c.sess = nil
	c.mu.Unlock()

	c.finish(ctx, s, summary, runErr)
	if runErr != nil {
		return summary, fmt.Errorf("recording %s: %w", s.ID, runErr)
	}
	return summary, nil
}

func (c *Controller) finish(ctx context.Context, s *Session, summary Summary, runErr error) {
	s.span.SetAttributes(telemetry.SummaryAttributes(
		summary.FramesCaptured, summary.FramesWritten,
		summary.Active.Milliseconds(), summary.Paused.Milliseconds())...)
	telemetry.RecordError(s.span, runErr, "mux")
	s.span.End()

	metrics.RecordSession(runErr == nil, summary.Active)
	metrics.SetQueueDepth(0)

	ev := s.logger.Info()
	if runErr != nil {
		ev = s.logger.Error().Err(runErr)
	}
	ev.Str(xglog.FieldEvent, "recording.stopped").
		Uint64(xglog.FieldFramesCaptured, summary.FramesCaptured).
		Uint64(xglog.FieldFramesWritten, summary.FramesWritten).
		Dur("active", summary.Active).
		Dur("paused", summary.Paused).
		Str(xglog.FieldFinalPath, summary.Path).
		Msg("recording stopped")

	if c.history != nil {
		if err := c.history.RecordSession(context.WithoutCancel(ctx), summary); err != nil {
			s.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "recording.history_failed").
				Msg("failed to record session history")
		}
	}
	c.transitioned()
}

// fail marks s as failed. The pipeline context is already cancelled by the
// errgroup; the session stays visible as failed until Stop.
func (c *Controller) fail(s *Session, err error) {
	c.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	c.mu.Unlock()

	s.logger.Error().Err(err).
		Str(xglog.FieldEvent, "recording.failed").
		Uint64(xglog.FieldFramesCaptured, s.captured.Load()).
		Uint64(xglog.FieldFramesWritten, s.muxer.FramesWritten()).
		Msg("recording failed, waiting for stop")
	c.transitioned()
}

// sample fires tick k at StartedAt + k/FPS. Late ticks run immediately so
// the schedule never drifts.
func (c *Controller) sample(ctx context.Context, s *Session) {
	defer close(s.samplerDone)

	fps := time.Duration(c.cfg.FPS)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for k := time.Duration(0); ; k++ {
		due := s.StartedAt.Add(k * time.Second / fps)
		if wait := time.Until(due); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			default:
			}
		}
		c.capture(s)
	}
}

// capture samples one tick. The paused check and the sample share c.mu with
// Pause, so no frame is captured once Pause has returned.
func (c *Controller) capture(s *Session) {
	c.mu.Lock()
	if s.paused.Load() {
		c.mu.Unlock()
		return
	}
	objs := c.scene.Snapshot()
	seq := s.captured.Add(1) - 1
	c.mu.Unlock()
	metrics.IncFramesCaptured()

	s.pool.Go(func() error {
		start := time.Now()
		f := c.renderer.Render(seq, objs)
		metrics.ObserveRenderDuration(time.Since(start))
		return s.q.Put(f)
	})

	depth := s.q.Len()
	metrics.SetQueueDepth(depth)
	s.diag.Do(func() {
		s.logger.Debug().
			Str(xglog.FieldEvent, "recording.diagnostics").
			Uint64(xglog.FieldFramesCaptured, s.captured.Load()).
			Uint64(xglog.FieldFramesWritten, s.muxer.FramesWritten()).
			Int(xglog.FieldQueueDepth, depth).
			Int("queue_high_water", s.q.HighWater()).
			Msg("pipeline diagnostics")
	})
}

// LastArtifact returns the path of the most recent finalized recording and
// whether a session is currently active.
func (c *Controller) LastArtifact() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastArtifact, c.sess != nil
}

// Status returns the current controller view.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(time.Now())
}

func (c *Controller) statusLocked(now time.Time) Status {
	s := c.sess
	st := Status{State: StateIdle, LastArtifact: c.lastArtifact}
	if s != nil {
		st.SessionID = s.ID
		st.FramesCaptured = s.captured.Load()
		st.FramesWritten = s.muxer.FramesWritten()
		st.QueueDepth = s.q.Len()

		paused := s.pausedTotal
		var current time.Duration
		if s.paused.Load() && !s.pauseStartedAt.IsZero() {
			current = now.Sub(s.pauseStartedAt)
		}
		st.Elapsed = now.Sub(s.StartedAt) - paused - current

		switch {
		case s.err != nil:
			st.State = StateFailed
			st.Error = s.err.Error()
		case s.stopping:
			st.State = StateStopping
		case s.paused.Load():
			st.State = StatePaused
			st.Paused = current
		default:
			st.State = StateRecording
		}
	}
	st.Text = statusText(st)
	return st
}
