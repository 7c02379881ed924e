// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates field-level configuration errors.
package validate

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

// Error is one failed check.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects errors across many checks.
type Validator struct {
	errors []Error
}

// New creates a new validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failed check.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether no check failed.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns the accumulated errors.
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err joins the accumulated errors, or returns nil.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	errs := make([]error, len(v.errors))
	for i, e := range v.errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Range checks min <= value <= max.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value), value)
	}
}

// FloatRange checks min <= value <= max.
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", minVal, maxVal, value), value)
	}
}

// Positive checks value > 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

// NotEmpty checks that a string has non-space content.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf checks value against a fixed set.
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %v, got %q", allowed, value), value)
}

// Path rejects empty paths and relative paths that climb out of the working
// directory.
func (v *Validator) Path(field, path string) {
	if path == "" {
		v.AddError(field, "path cannot be empty", path)
		return
	}
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) && (clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))) {
		v.AddError(field, "path contains traversal sequences (..)", path)
	}
}

// ListenAddr checks a host:port listen address.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		v.AddError(field, fmt.Sprintf("invalid port %q", port), addr)
	}
}
