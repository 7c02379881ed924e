// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scene

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func testAsset(name string, variants int) *Asset {
	a := &Asset{Name: name}
	for i := 0; i < variants; i++ {
		a.Variants = append(a.Variants, solid(4, 4, color.RGBA{R: uint8(i * 50), A: 255}))
	}
	return a
}

func zOrder(states []ObjectState) []string {
	ids := make([]string, len(states))
	for i, s := range states {
		ids[i] = s.ID
	}
	return ids
}

func TestScene_AddStacksOnTop(t *testing.T) {
	sc := New()
	a, err := sc.Add(testAsset("a", 1), 10, 20)
	require.NoError(t, err)
	b, err := sc.Add(testAsset("b", 1), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Z)
	assert.Equal(t, 1, b.Z)
	assert.Equal(t, 1.0, a.Scale)
	assert.Equal(t, []string{a.ID, b.ID}, zOrder(sc.Snapshot()))
}

func TestScene_AddRejectsEmptyAsset(t *testing.T) {
	_, err := New().Add(&Asset{Name: "empty"}, 0, 0)
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestScene_FrontBackKeepTotalOrder(t *testing.T) {
	sc := New()
	var ids []string
	for i := 0; i < 4; i++ {
		s, err := sc.Add(testAsset("x", 1), i, i)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	require.NoError(t, sc.BringToFront(ids[0]))
	assert.Equal(t, []string{ids[1], ids[2], ids[3], ids[0]}, zOrder(sc.Snapshot()))

	require.NoError(t, sc.SendToBack(ids[3]))
	snap := sc.Snapshot()
	assert.Equal(t, []string{ids[3], ids[1], ids[2], ids[0]}, zOrder(snap))
	for i, s := range snap {
		assert.Equal(t, i, s.Z, "z ranks must be dense and ascending")
	}

	assert.ErrorIs(t, sc.BringToFront("nope"), ErrNotFound)
	assert.ErrorIs(t, sc.SendToBack("nope"), ErrNotFound)
}

func TestScene_TransformOperations(t *testing.T) {
	sc := New()
	s, err := sc.Add(testAsset("c", 2), 0, 0)
	require.NoError(t, err)

	require.NoError(t, sc.Move(s.ID, 40, 50))
	require.NoError(t, sc.Resize(s.ID, 1.2))
	require.NoError(t, sc.Resize(s.ID, 0.8))
	require.NoError(t, sc.Rotate(s.ID, -15))
	require.NoError(t, sc.ToggleVariant(s.ID))

	got, err := sc.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.X)
	assert.Equal(t, 50, got.Y)
	assert.InDelta(t, 0.96, got.Scale, 1e-9)
	assert.Equal(t, 345, got.Rotation)
	assert.Equal(t, 1, got.Variant)
	assert.Equal(t, "c#1", got.ImageKey())

	require.NoError(t, sc.ToggleVariant(s.ID))
	got, _ = sc.Get(s.ID)
	assert.Equal(t, 0, got.Variant, "variant wraps around")

	assert.ErrorIs(t, sc.Resize(s.ID, 0), ErrInvalidScale)
	require.NoError(t, sc.Rotate(s.ID, 720+30))
	got, _ = sc.Get(s.ID)
	assert.Equal(t, 15, got.Rotation)
}

func TestScene_LockedRejectsGeometryChanges(t *testing.T) {
	sc := New()
	s, err := sc.Add(testAsset("d", 2), 1, 1)
	require.NoError(t, err)

	locked, err := sc.ToggleLock(s.ID)
	require.NoError(t, err)
	require.True(t, locked)

	assert.ErrorIs(t, sc.Move(s.ID, 5, 5), ErrLocked)
	assert.ErrorIs(t, sc.Resize(s.ID, 2), ErrLocked)
	assert.ErrorIs(t, sc.Rotate(s.ID, 15), ErrLocked)
	assert.NoError(t, sc.ToggleVariant(s.ID), "variant toggling ignores the lock")

	locked, err = sc.ToggleLock(s.ID)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, sc.Move(s.ID, 5, 5))
}

func TestScene_Remove(t *testing.T) {
	sc := New()
	a, _ := sc.Add(testAsset("a", 1), 0, 0)
	b, _ := sc.Add(testAsset("b", 1), 0, 0)

	require.NoError(t, sc.Remove(a.ID))
	assert.ErrorIs(t, sc.Remove(a.ID), ErrNotFound)
	assert.Equal(t, 1, sc.Len())

	got, err := sc.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Z)
}

func TestScene_ReplaceRenumbers(t *testing.T) {
	sc := New()
	_, _ = sc.Add(testAsset("old", 1), 0, 0)

	asset := testAsset("new", 2)
	require.NoError(t, sc.Replace([]*Object{
		{Asset: asset, X: 1, Y: 2, Rotation: -90, Variant: 5},
		{Asset: asset, X: 3, Y: 4, Scale: 2},
	}))

	snap := sc.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 270, snap[0].Rotation)
	assert.Equal(t, 0, snap[0].Variant, "out of range variant resets")
	assert.Equal(t, 1.0, snap[0].Scale)
	assert.Equal(t, 2.0, snap[1].Scale)

	assert.ErrorIs(t, sc.Replace([]*Object{{Asset: &Asset{}}}), ErrNoVariants)
	assert.Len(t, sc.Snapshot(), 2, "failed replace keeps the old scene")
}

func TestScene_ConcurrentSnapshotAndMutation(t *testing.T) {
	sc := New()
	s, _ := sc.Add(testAsset("e", 2), 0, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = sc.Move(s.ID, i, i)
			_ = sc.ToggleVariant(s.ID)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := sc.Snapshot()
			if len(snap) == 1 && snap[0].Image == nil {
				t.Error("snapshot returned object without image")
				return
			}
		}
	}()
	wg.Wait()
}
