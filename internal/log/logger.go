// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log holds the process logger and the field names shared by every
// component.
package log

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Config.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config selects level, format and static fields of the process logger.
type Config struct {
	Level   string    // zerolog level name; empty means info
	Format  string    // FormatJSON (default) or FormatConsole
	Output  io.Writer // defaults to os.Stdout
	Service string    // defaults to "canvasrec"
	Version string
}

var base atomic.Pointer[zerolog.Logger]

// Configure replaces the process logger. main calls it once with defaults
// and again after the config file is loaded.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	if cfg.Service == "" {
		cfg.Service = "canvasrec"
	}

	zc := zerolog.New(w).With().Timestamp().Str("service", cfg.Service)
	if cfg.Version != "" {
		zc = zc.Str("version", cfg.Version)
	}
	l := zc.Logger()
	base.Store(&l)
}

// Base returns the process logger, configuring defaults on first use.
func Base() zerolog.Logger {
	if l := base.Load(); l != nil {
		return *l
	}
	Configure(Config{})
	return *base.Load()
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}
