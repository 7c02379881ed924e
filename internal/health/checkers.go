// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
)

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewCheckFunc names fn as a checker.
func NewCheckFunc(name string, fn func(ctx context.Context) CheckResult) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// WritableDirChecker verifies that a directory exists (or can be created)
// and accepts new files.
type WritableDirChecker struct {
	name string
	path string
}

// NewWritableDirChecker creates a checker for path.
func NewWritableDirChecker(name, path string) *WritableDirChecker {
	return &WritableDirChecker{name: name, path: path}
}

func (c *WritableDirChecker) Name() string { return c.name }

func (c *WritableDirChecker) Check(_ context.Context) CheckResult {
	if err := os.MkdirAll(c.path, 0o750); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "directory unavailable", Error: err.Error()}
	}
	f, err := os.CreateTemp(c.path, ".healthcheck-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "directory not writable", Error: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "probe file not removed", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%s writable", c.path)}
}
