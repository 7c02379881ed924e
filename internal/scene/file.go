// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk scene document. Objects are listed back to front.
type File struct {
	Assets  []AssetSpec  `yaml:"assets"`
	Objects []ObjectSpec `yaml:"objects"`
}

// AssetSpec names an asset and the image files of its variants.
type AssetSpec struct {
	Name     string   `yaml:"name"`
	Variants []string `yaml:"variants"`
}

// ObjectSpec places one asset.
type ObjectSpec struct {
	Asset    string  `yaml:"asset"`
	X        int     `yaml:"x"`
	Y        int     `yaml:"y"`
	Scale    float64 `yaml:"scale,omitempty"`
	Rotation int     `yaml:"rotation,omitempty"`
	Variant  int     `yaml:"variant,omitempty"`
	Locked   bool    `yaml:"locked,omitempty"`
}

// ParseFile reads a scene document strictly: unknown keys and trailing
// documents are rejected.
func ParseFile(path string) (*File, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported scene format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- scene file path is provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("strict scene parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scene file contains multiple documents or trailing content")
	}
	return &f, nil
}

// Build loads the declared assets into lib (relative to assetDir) and
// resolves the object list against it.
func (f *File) Build(assetDir string, lib *Library) ([]*Object, error) {
	for _, decl := range f.Assets {
		if decl.Name == "" {
			return nil, errors.New("scene asset without name")
		}
		a, err := LoadAsset(assetDir, decl.Name, decl.Variants)
		if err != nil {
			return nil, err
		}
		lib.Put(a)
	}

	objs := make([]*Object, 0, len(f.Objects))
	for i, o := range f.Objects {
		a, ok := lib.Get(o.Asset)
		if !ok {
			return nil, fmt.Errorf("scene object %d: unknown asset %q", i, o.Asset)
		}
		objs = append(objs, &Object{
			Asset:    a,
			X:        o.X,
			Y:        o.Y,
			Scale:    o.Scale,
			Rotation: o.Rotation,
			Variant:  o.Variant,
			Locked:   o.Locked,
		})
	}
	return objs, nil
}

// LoadInto parses path, loads its assets and replaces the scene contents.
func LoadInto(path, assetDir string, lib *Library, sc *Scene) (int, error) {
	f, err := ParseFile(path)
	if err != nil {
		return 0, err
	}
	if assetDir == "" {
		assetDir = filepath.Dir(path)
	}
	objs, err := f.Build(assetDir, lib)
	if err != nil {
		return 0, err
	}
	if err := sc.Replace(objs); err != nil {
		return 0, err
	}
	return len(objs), nil
}
