// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frame

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRGBA_DropsAlphaKeepsOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	f := FromRGBA(7, img)
	require.Equal(t, 2, f.Width)
	require.Equal(t, 1, f.Height)
	assert.Equal(t, uint64(7), f.Seq)
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, f.Pix)
	assert.Equal(t, "2x1", f.Resolution())
}

func TestFromRGBA_SubImageStride(t *testing.T) {
	parent := image.NewRGBA(image.Rect(0, 0, 4, 4))
	parent.SetRGBA(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := parent.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	f := FromRGBA(0, sub)
	assert.Equal(t, []byte{1, 2, 3}, f.Pix[:3])
}

func TestRGBA_RoundTripIsOpaque(t *testing.T) {
	f := New(1, 3, 2)
	for i := range f.Pix {
		f.Pix[i] = byte(i * 7)
	}
	img := f.RGBA()
	back := FromRGBA(1, img)
	assert.True(t, f.Equal(back))
	assert.Equal(t, uint8(0xff), img.Pix[3])
}

func TestEqual(t *testing.T) {
	a := New(1, 2, 2)
	b := New(2, 2, 2)
	assert.True(t, a.Equal(b), "sequence number must not matter")

	b.Pix[0] = 1
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(New(1, 2, 3)))
	assert.False(t, a.Equal(nil))
}
