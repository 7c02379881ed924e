// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package render composites a scene snapshot into a raster frame.
//
// Rendering is a pure function of the snapshot: it never touches the scene
// and may run concurrently from several goroutines.
package render

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/ManuGH/canvasrec/internal/cache"
	"github.com/ManuGH/canvasrec/internal/frame"
	"github.com/ManuGH/canvasrec/internal/scene"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrInvalidGeometry is returned when padding leaves no drawable area.
var ErrInvalidGeometry = errors.New("render: canvas minus padding must be positive")

// White is the default canvas background.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Geometry describes the canvas that objects are placed on. Object positions
// are canvas coordinates; the rendered area excludes Padding on every side.
type Geometry struct {
	CanvasWidth  int
	CanvasHeight int
	Padding      int
	Background   color.RGBA
}

// Size returns the output raster dimensions.
func (g Geometry) Size() (int, int) {
	return g.CanvasWidth - 2*g.Padding, g.CanvasHeight - 2*g.Padding
}

// Validate checks that the padded area is non-empty.
func (g Geometry) Validate() error {
	w, h := g.Size()
	if w <= 0 || h <= 0 || g.Padding < 0 {
		return fmt.Errorf("%w: canvas %dx%d padding %d", ErrInvalidGeometry, g.CanvasWidth, g.CanvasHeight, g.Padding)
	}
	return nil
}

// Options tunes a Renderer.
type Options struct {
	// SpriteCache memoizes scaled/rotated sprites. Nil disables caching.
	SpriteCache *cache.Memo[image.Image]
}

// Renderer renders snapshots for a fixed geometry.
type Renderer struct {
	geo     Geometry
	sprites *cache.Memo[image.Image]
}

// New validates geo and returns a renderer for it.
func New(geo Geometry, opts Options) (*Renderer, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if geo.Background == (color.RGBA{}) {
		geo.Background = White
	}
	return &Renderer{geo: geo, sprites: opts.SpriteCache}, nil
}

// Geometry returns the renderer's canvas geometry.
func (r *Renderer) Geometry() Geometry {
	return r.geo
}

// InvalidateSprites drops every cached sprite, e.g. after assets reload.
func (r *Renderer) InvalidateSprites() {
	r.sprites.Purge()
}

// Render composites objs and tags the result with seq.
func (r *Renderer) Render(seq uint64, objs []scene.ObjectState) *frame.Frame {
	return frame.FromRGBA(seq, r.RenderRGBA(objs))
}

// RenderRGBA composites objs, back to front by Z, onto a fresh background.
func (r *Renderer) RenderRGBA(objs []scene.ObjectState) *image.RGBA {
	w, h := r.geo.Size()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: r.geo.Background}, image.Point{}, xdraw.Src)

	for _, o := range sortedByZ(objs) {
		if o.Image == nil {
			continue
		}
		sprite := r.sprite(o)
		sb := sprite.Bounds()
		at := image.Pt(o.X-r.geo.Padding, o.Y-r.geo.Padding)
		xdraw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(sb.Size())}, sprite, sb.Min, xdraw.Over)
	}
	return dst
}

func (r *Renderer) sprite(o scene.ObjectState) image.Image {
	if o.Scale == 1 && o.Rotation == 0 {
		return o.Image
	}
	key := fmt.Sprintf("%s@%p|%.6f|%d", o.ImageKey(), o.Image, o.Scale, o.Rotation)
	return r.sprites.GetOrLoad(key, func() image.Image {
		return Transform(o.Image, o.Scale, o.Rotation)
	})
}

// Render is the stateless form: it composites objs for the given canvas and
// padding on a white background.
func Render(objs []scene.ObjectState, canvasWidth, canvasHeight, padding int) (*frame.Frame, error) {
	r, err := New(Geometry{CanvasWidth: canvasWidth, CanvasHeight: canvasHeight, Padding: padding}, Options{})
	if err != nil {
		return nil, err
	}
	return r.Render(0, objs), nil
}

// Transform scales img by scale and then rotates it counter-clockwise by
// degrees, growing the bounds so that no corner is clipped.
func Transform(img image.Image, scale float64, degrees int) image.Image {
	out := img
	if scale != 1 {
		b := img.Bounds()
		w := max(1, int(float64(b.Dx())*scale))
		h := max(1, int(float64(b.Dy())*scale))
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)
		out = scaled
	}
	if degrees%360 != 0 {
		out = rotate(out, degrees)
	}
	return out
}

func rotate(img image.Image, degrees int) image.Image {
	sb := img.Bounds()
	w, h := float64(sb.Dx()), float64(sb.Dy())
	rad := float64(degrees) * math.Pi / 180
	sin, cos := math.Sincos(rad)

	const eps = 1e-9
	nw := max(1, int(math.Ceil(math.Abs(w*cos)+math.Abs(h*sin)-eps)))
	nh := max(1, int(math.Ceil(math.Abs(w*sin)+math.Abs(h*cos)-eps)))

	// Source center to destination center, rotated so that positive angles
	// turn counter-clockwise on screen (y grows downwards).
	csx, csy := float64(sb.Min.X)+w/2, float64(sb.Min.Y)+h/2
	cdx, cdy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, sin, cdx - cos*csx - sin*csy,
		-sin, cos, cdy + sin*csx - cos*csy,
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.BiLinear.Transform(dst, s2d, img, sb, xdraw.Over, nil)
	return dst
}

// sortedByZ returns objs ordered by ascending Z without mutating the input.
// Snapshots already arrive sorted, so this is usually a copy.
func sortedByZ(objs []scene.ObjectState) []scene.ObjectState {
	out := slices.Clone(objs)
	slices.SortStableFunc(out, func(a, b scene.ObjectState) int { return cmp.Compare(a.Z, b.Z) })
	return out
}
