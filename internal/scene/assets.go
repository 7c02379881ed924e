// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scene

import (
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"os"
	"path/filepath"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Maximum source image size; larger images are downscaled on load.
const (
	MaxAssetWidth  = 1920
	MaxAssetHeight = 1080
)

// multiVariantShrink leaves some headroom around character sprites that had
// to be downscaled.
const multiVariantShrink = 0.9

// Asset is a named set of image variants (e.g. a character's poses).
type Asset struct {
	Name     string
	Variants []image.Image
}

// LoadAsset decodes the given files, in order, as the variants of one asset.
// Paths are resolved relative to dir unless absolute.
func LoadAsset(dir, name string, files []string) (*Asset, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("asset %q: %w", name, ErrNoVariants)
	}

	shrink := 1.0
	if len(files) > 1 {
		shrink = multiVariantShrink
	}

	a := &Asset{Name: name}
	for _, f := range files {
		p := f
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, f)
		}
		img, err := decodeFile(p)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", name, err)
		}
		a.Variants = append(a.Variants, fitWithin(img, MaxAssetWidth, MaxAssetHeight, shrink))
	}
	return a, nil
}

// DiscoverAsset finds the variants of name in dir by convention: numbered
// files name1.png, name2.png, ... for multi-pose characters, otherwise a single
// name.png or name.jpg.
func DiscoverAsset(dir, name string) (*Asset, error) {
	var files []string
	for i := 1; ; i++ {
		f := fmt.Sprintf("%s%d.png", name, i)
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			break
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		for _, ext := range []string{".png", ".jpg", ".jpeg"} {
			if _, err := os.Stat(filepath.Join(dir, name+ext)); err == nil {
				files = append(files, name+ext)
				break
			}
		}
	}
	return LoadAsset(dir, name, files)
}

func decodeFile(path string) (image.Image, error) {
	// #nosec G304 -- asset paths come from the operator's scene file
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// fitWithin downscales img to fit maxW×maxH (times shrink) keeping aspect.
// Images already within bounds are returned untouched.
func fitWithin(img image.Image, maxW, maxH int, shrink float64) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	scale := min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy())) * shrink
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Library is the set of loaded assets, addressable by name.
type Library struct {
	mu     sync.RWMutex
	assets map[string]*Asset
}

// NewLibrary returns an empty asset library.
func NewLibrary() *Library {
	return &Library{assets: make(map[string]*Asset)}
}

// Put registers or replaces an asset.
func (l *Library) Put(a *Asset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.assets[a.Name] = a
}

// Get looks up an asset by name.
func (l *Library) Get(name string) (*Asset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[name]
	return a, ok
}

// Resolve returns the named asset, discovering and registering it from dir
// on first use.
func (l *Library) Resolve(dir, name string) (*Asset, error) {
	if a, ok := l.Get(name); ok {
		return a, nil
	}
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	a, err := DiscoverAsset(dir, name)
	if err != nil {
		return nil, err
	}
	l.Put(a)
	return a, nil
}

// Names lists the registered assets alphabetically.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.assets))
	for n := range l.assets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
