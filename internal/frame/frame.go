// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package frame defines the raster unit exchanged between the renderer,
// the frame queue and the muxer.
package frame

import (
	"fmt"
	"image"
)

// BytesPerPixel is the size of one interleaved R,G,B pixel.
const BytesPerPixel = 3

// Frame is an immutable RGB raster plus its capture sequence number.
// Pix is row-major with no padding between rows.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed frame.
func New(seq uint64, width, height int) *Frame {
	return &Frame{
		Seq:    seq,
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// FromRGBA converts an RGBA image into an RGB frame, dropping alpha.
func FromRGBA(seq uint64, img *image.RGBA) *Frame {
	b := img.Bounds()
	f := New(seq, b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		dst := f.Pix[y*f.Width*BytesPerPixel : (y+1)*f.Width*BytesPerPixel]
		for x, d := 0, 0; x < len(src); x, d = x+4, d+3 {
			dst[d] = src[x]
			dst[d+1] = src[x+1]
			dst[d+2] = src[x+2]
		}
	}
	return f
}

// Size returns the frame dimensions as a point.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// Resolution formats the dimensions as WxH for logs.
func (f *Frame) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// RGBA expands the frame into an opaque *image.RGBA, the layout the JPEG
// encoder has a fast path for.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Width*BytesPerPixel : (y+1)*f.Width*BytesPerPixel]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for s, d := 0, 0; s < len(src); s, d = s+3, d+4 {
			dst[d] = src[s]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s+2]
			dst[d+3] = 0xff
		}
	}
	return img
}

// Equal reports whether two frames carry identical pixels and dimensions.
// The sequence number is ignored.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.Width != o.Width || f.Height != o.Height || len(f.Pix) != len(o.Pix) {
		return false
	}
	for i := range f.Pix {
		if f.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}
