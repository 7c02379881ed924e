// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recorder

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/canvasrec/internal/frame"
	"github.com/ManuGH/canvasrec/internal/mux"
	"github.com/ManuGH/canvasrec/internal/render"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingStream struct {
	frames atomic.Int64
}

func (s *countingStream) WriteFrame(*frame.Frame) error { s.frames.Add(1); return nil }
func (s *countingStream) Close() error                  { return nil }

func countingOpener(s *countingStream) mux.OpenFunc {
	return func(path string, _, _, _ int) (mux.Stream, error) {
		if err := os.WriteFile(path, []byte("stream"), 0o600); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc := scene.New()
	dot := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(dot.Pix); i += 4 {
		dot.Pix[i], dot.Pix[i+3] = 0xff, 0xff
	}
	_, err := sc.Add(&scene.Asset{Name: "dot", Variants: []image.Image{dot}}, 5, 5)
	require.NoError(t, err)
	return sc
}

func testRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Geometry{CanvasWidth: 48, CanvasHeight: 36, Padding: 4}, render.Options{})
	require.NoError(t, err)
	return r
}

func newTestController(t *testing.T, fps int, opts ...Option) (*Controller, *countingStream) {
	t.Helper()
	cs := &countingStream{}
	c := New(Config{
		FPS:           fps,
		RenderWorkers: 3,
		TempDir:       t.TempDir(),
		PollInterval:  10 * time.Millisecond,
		OpenStream:    countingOpener(cs),
	}, testScene(t), testRenderer(t), opts...)
	return c, cs
}

func TestController_CapturesAtFixedRate(t *testing.T) {
	c, cs := newTestController(t, 30)

	info, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "40x28", info.Resolution)
	assert.Equal(t, StateRecording, c.Status().State)

	time.Sleep(2 * time.Second)
	sum, err := c.Stop(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sum.FramesCaptured, uint64(58))
	assert.LessOrEqual(t, sum.FramesCaptured, uint64(62))
	assert.Equal(t, sum.FramesCaptured, sum.FramesWritten, "every captured frame is written")
	assert.Equal(t, int64(sum.FramesWritten), cs.frames.Load())
	assert.Equal(t, c.OutputPath(), sum.Path)
	assert.FileExists(t, sum.Path)
	assert.NoFileExists(t, mux.PartialPath(sum.Path))

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, "Idle", st.Text)
	assert.Equal(t, sum.Path, st.LastArtifact)
}

func TestController_PauseCapturesNothing(t *testing.T) {
	const fps = 30
	c, _ := newTestController(t, fps)

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Pause())
	before := c.Status().FramesCaptured
	require.NoError(t, c.Pause(), "pausing twice is a no-op")

	time.Sleep(time.Second)
	st := c.Status()
	assert.Equal(t, before, st.FramesCaptured, "no frames while paused")
	assert.Equal(t, StatePaused, st.State)
	assert.Contains(t, st.Text, "Paused 1s")

	require.NoError(t, c.Resume())
	require.NoError(t, c.Resume(), "resuming a running session is a no-op")
	time.Sleep(time.Second)

	sum, err := c.Stop(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, fps, float64(sum.FramesCaptured), 4, "only the unpaused second is captured")
	assert.Equal(t, sum.FramesCaptured, sum.FramesWritten)
	assert.InDelta(t, time.Second.Seconds(), sum.Paused.Seconds(), 0.15)

	interval := time.Second / fps
	expected := time.Duration(sum.FramesCaptured) * interval
	assert.InDelta(t, expected.Seconds(), sum.Active.Seconds(), (3 * interval).Seconds())
}

func TestController_DoubleStartKeepsFirstSession(t *testing.T) {
	c, _ := newTestController(t, 20)

	first, err := c.Start(context.Background())
	require.NoError(t, err)

	_, err = c.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRecording)

	st := c.Status()
	assert.Equal(t, first.ID, st.SessionID)
	assert.Equal(t, StateRecording, st.State)

	sum, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, sum.ID)
}

func TestController_OperationsWithoutSession(t *testing.T) {
	c, _ := newTestController(t, 10)

	_, err := c.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.ErrorIs(t, c.Pause(), ErrNotRecording)
	assert.ErrorIs(t, c.Resume(), ErrNotRecording)

	_, err = c.Start(context.Background())
	require.NoError(t, err)
	_, err = c.Stop(context.Background())
	require.NoError(t, err)

	_, err = c.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording, "second stop is a harmless failure")
}

func TestController_StartRemovesPreviousArtifact(t *testing.T) {
	c, _ := newTestController(t, 10)

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	sum, err := c.Stop(context.Background())
	require.NoError(t, err)
	require.FileExists(t, sum.Path)

	_, err = c.Start(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, sum.Path)
	path, active := c.LastArtifact()
	assert.Empty(t, path)
	assert.True(t, active)

	_, err = c.Stop(context.Background())
	require.NoError(t, err)
}

func TestController_StartFailsWhenTempDirUnusable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	c := New(Config{FPS: 10, TempDir: filepath.Join(blocker, "sub")}, testScene(t), testRenderer(t))
	_, err := c.Start(context.Background())
	require.ErrorIs(t, err, mux.ErrStreamOpen)
	assert.Equal(t, StateIdle, c.Status().State)
}

// shrinkingRenderer returns a smaller frame from seq 3 on.
type shrinkingRenderer struct{ *render.Renderer }

func (r shrinkingRenderer) Render(seq uint64, objs []scene.ObjectState) *frame.Frame {
	if seq >= 3 {
		return frame.New(seq, 2, 2)
	}
	return r.Renderer.Render(seq, objs)
}

func TestController_MuxerFailureSurfacesOnStop(t *testing.T) {
	cs := &countingStream{}
	var texts []string
	var mu sync.Mutex

	c := New(Config{
		FPS:           50,
		RenderWorkers: 1,
		TempDir:       t.TempDir(),
		PollInterval:  10 * time.Millisecond,
		OpenStream:    countingOpener(cs),
	}, testScene(t), shrinkingRenderer{testRenderer(t)})
	c.OnStatus(func(text string) {
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
	})

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().State == StateFailed }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, c.Status().Text, "Recording failed")

	sum, err := c.Stop(context.Background())
	require.ErrorIs(t, err, mux.ErrDimensionMismatch)
	assert.NotEmpty(t, sum.Error)
	assert.Empty(t, sum.Path)
	assert.NoFileExists(t, mux.PartialPath(c.OutputPath()))
	assert.NoFileExists(t, c.OutputPath())
	assert.Less(t, sum.FramesWritten, sum.FramesCaptured)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, texts, "Idle")
}

type memoryHistory struct {
	mu       sync.Mutex
	sessions []Summary
}

func (h *memoryHistory) RecordSession(_ context.Context, s Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = append(h.sessions, s)
	return nil
}

func TestController_RecordsHistory(t *testing.T) {
	h := &memoryHistory{}
	c, _ := newTestController(t, 10, WithHistory(h))

	info, err := c.Start(context.Background())
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	_, err = c.Stop(context.Background())
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.sessions, 1)
	assert.Equal(t, info.ID, h.sessions[0].ID)
	assert.Positive(t, h.sessions[0].FramesCaptured)
}

func TestController_StatusNotifier(t *testing.T) {
	c, _ := newTestController(t, 10)
	c.cfg.StatusInterval = 20 * time.Millisecond

	var recording atomic.Int32
	c.OnStatus(func(text string) {
		if strings.Contains(text, "Recording...") {
			recording.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.RunStatusNotifier(ctx) }()

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return recording.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Stop(context.Background())
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-done)
}

func TestController_StopContextExpiredDiscardsOutput(t *testing.T) {
	blocking := make(chan struct{})
	c := New(Config{
		FPS:          20,
		TempDir:      t.TempDir(),
		PollInterval: 10 * time.Millisecond,
		OpenStream: func(path string, _, _, _ int) (mux.Stream, error) {
			if err := os.WriteFile(path, nil, 0o600); err != nil {
				return nil, err
			}
			return &slowStream{release: blocking}, nil
		},
	}, testScene(t), testRenderer(t))

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(150 * time.Millisecond)
		close(blocking)
	}()
	sum, err := c.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, sum.Path, "a discarded recording reports no artifact")
	assert.NotEmpty(t, sum.Error)
	assert.NoFileExists(t, c.OutputPath())
	assert.NoFileExists(t, mux.PartialPath(c.OutputPath()))
	assert.Equal(t, StateIdle, c.Status().State)

	path, active := c.LastArtifact()
	assert.Empty(t, path, "nothing is left for a later save")
	assert.False(t, active)
}

// slowStream blocks every write until release is closed.
type slowStream struct{ release chan struct{} }

func (s *slowStream) WriteFrame(*frame.Frame) error { <-s.release; return nil }
func (s *slowStream) Close() error                  { return nil }
