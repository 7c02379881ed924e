// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scene holds the placed objects of the canvas and the operations the
// interactive side performs on them. The recorder only ever reads it through
// Snapshot.
package scene

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	// ErrNotFound is returned for operations on an unknown object ID.
	ErrNotFound = errors.New("scene: object not found")
	// ErrLocked is returned when a locked object is moved, resized or rotated.
	ErrLocked = errors.New("scene: object is locked")
	// ErrInvalidScale is returned for non-positive resize factors.
	ErrInvalidScale = errors.New("scene: scale factor must be positive")
	// ErrNoVariants is returned when an asset without images is placed.
	ErrNoVariants = errors.New("scene: asset has no image variants")
	// ErrInvalidAssetName is returned by Library.Resolve for names that are
	// not a plain file stem.
	ErrInvalidAssetName = errors.New("scene: invalid asset name")
)

// minScale keeps repeated shrinking from collapsing a sprite to zero pixels.
const minScale = 0.01

// Object is one placed sprite. Its z rank is its index in Scene.order.
type Object struct {
	ID       string
	Asset    *Asset
	X, Y     int
	Scale    float64
	Rotation int // degrees, counter-clockwise, normalized to [0,360)
	Variant  int
	Locked   bool
}

// ObjectState is an immutable copy of an object as seen at snapshot time.
type ObjectState struct {
	ID        string      `json:"id"`
	AssetName string      `json:"asset"`
	X         int         `json:"x"`
	Y         int         `json:"y"`
	Scale     float64     `json:"scale"`
	Rotation  int         `json:"rotation"`
	Variant   int         `json:"variant"`
	Variants  int         `json:"variants"`
	Z         int         `json:"z"`
	Locked    bool        `json:"locked"`
	Image     image.Image `json:"-"`
}

// ImageKey identifies the source image of the active variant.
func (s ObjectState) ImageKey() string {
	return fmt.Sprintf("%s#%d", s.AssetName, s.Variant)
}

// Scene is the ordered, concurrency-safe collection of placed objects.
type Scene struct {
	mu      sync.RWMutex
	objects map[string]*Object
	order   []string // back to front
	nextID  int
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{objects: make(map[string]*Object)}
}

// Add places a new object on top of the stack.
func (s *Scene) Add(asset *Asset, x, y int) (ObjectState, error) {
	if asset == nil || len(asset.Variants) == 0 {
		return ObjectState{}, ErrNoVariants
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.addLocked(&Object{Asset: asset, X: x, Y: y, Scale: 1})
	return s.stateLocked(obj, len(s.order)-1), nil
}

func (s *Scene) addLocked(obj *Object) *Object {
	s.nextID++
	obj.ID = fmt.Sprintf("obj-%d", s.nextID)
	if obj.Scale <= 0 {
		obj.Scale = 1
	}
	obj.Rotation = normalizeDegrees(obj.Rotation)
	if obj.Variant < 0 || obj.Variant >= len(obj.Asset.Variants) {
		obj.Variant = 0
	}
	s.objects[obj.ID] = obj
	s.order = append(s.order, obj.ID)
	return obj
}

// Replace swaps the whole scene for objs, back to front. Used by file reloads.
func (s *Scene) Replace(objs []*Object) error {
	for _, o := range objs {
		if o.Asset == nil || len(o.Asset.Variants) == 0 {
			return ErrNoVariants
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string]*Object, len(objs))
	s.order = s.order[:0]
	for _, o := range objs {
		cp := *o
		s.addLocked(&cp)
	}
	return nil
}

// Remove deletes an object.
func (s *Scene) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.objects, id)
	s.order = removeID(s.order, id)
	return nil
}

// Move sets the top-left position of an object.
func (s *Scene) Move(id string, x, y int) error {
	return s.mutate(id, true, func(o *Object) error {
		o.X, o.Y = x, y
		return nil
	})
}

// Resize multiplies the object's scale by factor.
func (s *Scene) Resize(id string, factor float64) error {
	if factor <= 0 {
		return ErrInvalidScale
	}
	return s.mutate(id, true, func(o *Object) error {
		o.Scale *= factor
		if o.Scale < minScale {
			o.Scale = minScale
		}
		return nil
	})
}

// Rotate adds degrees (counter-clockwise) to the object's rotation.
func (s *Scene) Rotate(id string, degrees int) error {
	return s.mutate(id, true, func(o *Object) error {
		o.Rotation = normalizeDegrees(o.Rotation + degrees)
		return nil
	})
}

// ToggleVariant advances to the next image variant, wrapping around.
func (s *Scene) ToggleVariant(id string) error {
	return s.mutate(id, false, func(o *Object) error {
		o.Variant = (o.Variant + 1) % len(o.Asset.Variants)
		return nil
	})
}

// ToggleLock flips the locked flag and returns the new value.
func (s *Scene) ToggleLock(id string) (bool, error) {
	var locked bool
	err := s.mutate(id, false, func(o *Object) error {
		o.Locked = !o.Locked
		locked = o.Locked
		return nil
	})
	return locked, err
}

// BringToFront gives the object the highest z rank.
func (s *Scene) BringToFront(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.order = append(removeID(s.order, id), id)
	return nil
}

// SendToBack gives the object the lowest z rank.
func (s *Scene) SendToBack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rest := removeID(s.order, id)
	s.order = append([]string{id}, rest...)
	return nil
}

// Get returns the current state of one object.
func (s *Scene) Get(id string) (ObjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		return ObjectState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for z, oid := range s.order {
		if oid == id {
			return s.stateLocked(obj, z), nil
		}
	}
	return ObjectState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Snapshot copies every object in ascending z order.
// The copy is consistent per object; it is not an atomic multi-object view
// with respect to callers that mutate between snapshots.
func (s *Scene) Snapshot() []ObjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ObjectState, 0, len(s.order))
	for z, id := range s.order {
		out = append(out, s.stateLocked(s.objects[id], z))
	}
	return out
}

// Len reports the number of placed objects.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Scene) mutate(id string, respectLock bool, fn func(*Object) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if respectLock && obj.Locked {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	return fn(obj)
}

func (s *Scene) stateLocked(o *Object, z int) ObjectState {
	return ObjectState{
		ID:        o.ID,
		AssetName: o.Asset.Name,
		X:         o.X,
		Y:         o.Y,
		Scale:     o.Scale,
		Rotation:  o.Rotation,
		Variant:   o.Variant,
		Variants:  len(o.Asset.Variants),
		Z:         z,
		Locked:    o.Locked,
		Image:     o.Asset.Variants[o.Variant],
	}
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func normalizeDegrees(d int) int {
	d %= 360
	if d < 0 {
		d += 360
	}
	return d
}
