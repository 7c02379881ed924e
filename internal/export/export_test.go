// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package export

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/ManuGH/canvasrec/internal/render"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArtifacts struct {
	path   string
	active bool
}

func (f *fakeArtifacts) LastArtifact() (string, bool) { return f.path, f.active }

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "recording.avi")
	require.NoError(t, os.WriteFile(p, []byte("RIFF....AVI data"), 0o600))
	return p
}

func testRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	r, err := render.New(render.Geometry{CanvasWidth: 60, CanvasHeight: 40, Padding: 5}, render.Options{})
	require.NoError(t, err)
	return r
}

func TestSave_MovesArtifact(t *testing.T) {
	src := writeArtifact(t, t.TempDir())
	f := New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{path: src}, testRenderer(t))

	target := filepath.Join(t.TempDir(), "videos", "take1.avi")
	dst, err := f.Save(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, target, dst)

	fi, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, fi.Size())
	assert.NoFileExists(t, src, "a successful save consumes the temp artifact")

	_, err = f.Save(context.Background(), target)
	assert.ErrorIs(t, err, ErrNoRecording, "artifact was consumed")
}

func TestSave_RelativeAndDirectoryTargets(t *testing.T) {
	exportDir := t.TempDir()

	src := writeArtifact(t, t.TempDir())
	f := New(Config{ExportDir: exportDir}, &fakeArtifacts{path: src}, testRenderer(t))
	dst, err := f.Save(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, "recording.avi"), dst)

	src = writeArtifact(t, t.TempDir())
	f = New(Config{ExportDir: exportDir}, &fakeArtifacts{path: src}, testRenderer(t))
	dir := t.TempDir()
	dst, err = f.Save(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recording.avi"), dst)

	src = writeArtifact(t, t.TempDir())
	f = New(Config{ExportDir: exportDir}, &fakeArtifacts{path: src}, testRenderer(t))
	dst, err = f.Save(context.Background(), "sub/clip.avi")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, "sub", "clip.avi"), dst)
	assert.FileExists(t, dst)
}

func TestSave_Preconditions(t *testing.T) {
	f := New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{}, testRenderer(t))
	_, err := f.Save(context.Background(), "x.avi")
	assert.ErrorIs(t, err, ErrNoRecording)

	src := writeArtifact(t, t.TempDir())
	f = New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{path: src, active: true}, testRenderer(t))
	_, err = f.Save(context.Background(), "x.avi")
	assert.ErrorIs(t, err, ErrRecordingActive)
	assert.FileExists(t, src)

	f = New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{path: filepath.Join(t.TempDir(), "gone.avi")}, testRenderer(t))
	_, err = f.Save(context.Background(), "x.avi")
	assert.ErrorIs(t, err, ErrNoRecording)
}

func TestSave_CrossDeviceFallsBackToCopy(t *testing.T) {
	src := writeArtifact(t, t.TempDir())
	f := New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{path: src}, testRenderer(t))
	f.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	target := filepath.Join(t.TempDir(), "out.avi")
	dst, err := f.Save(context.Background(), target)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....AVI data", string(data))
	assert.NoFileExists(t, src)
}

func TestSave_OtherRenameFailuresAreIO(t *testing.T) {
	src := writeArtifact(t, t.TempDir())
	f := New(Config{ExportDir: t.TempDir()}, &fakeArtifacts{path: src}, testRenderer(t))
	f.rename = func(string, string) error { return errors.New("permission denied") }

	_, err := f.Save(context.Background(), filepath.Join(t.TempDir(), "out.avi"))
	require.ErrorIs(t, err, ErrIO)
	assert.FileExists(t, src, "failed saves keep the artifact")
}

func TestExportStill_WritesJPEG(t *testing.T) {
	exportDir := filepath.Join(t.TempDir(), "exports")
	f := New(Config{ExportDir: exportDir}, &fakeArtifacts{}, testRenderer(t))

	sprite := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(sprite.Pix); i += 4 {
		sprite.Pix[i], sprite.Pix[i+3] = 0xff, 0xff
	}
	objs := []scene.ObjectState{{ID: "a", AssetName: "a", X: 5, Y: 5, Scale: 1, Image: sprite}}

	dst, err := f.ExportStill(context.Background(), objs, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, DefaultStillName), dst)

	fh, err := os.Open(dst)
	require.NoError(t, err)
	defer fh.Close()
	img, err := jpeg.Decode(fh)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(50, 30), img.Bounds().Size())

	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
	assert.Less(t, b>>8, uint32(60))

	corner := color.RGBAModel.Convert(img.At(45, 25)).(color.RGBA)
	assert.Greater(t, corner.G, uint8(200), "background stays white")
}
