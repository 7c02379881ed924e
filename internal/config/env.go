// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment key read by the loader.
const EnvPrefix = "CANVASREC_"

// envValue looks key up and logs where the value came from. ok is false when
// the variable is unset or empty.
func envValue(logger zerolog.Logger, key string) (string, bool) {
	v, exists := os.LookupEnv(key)
	if !exists {
		return "", false
	}
	if v == "" {
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return "", false
	}
	return v, true
}

func logEnv(logger zerolog.Logger, key string, value any) {
	logger.Debug().
		Str("key", key).
		Interface("value", value).
		Str("source", "environment").
		Msg("using environment variable")
}

func logInvalid(logger zerolog.Logger, key, raw, kind string, def any) {
	logger.Warn().
		Str("key", key).
		Str("value", raw).
		Interface("default", def).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	logger := xglog.WithComponent("config")
	if v, ok := envValue(logger, key); ok {
		logEnv(logger, key, v)
		return v
	}
	return defaultValue
}

// ParseInt reads an integer from the environment. Parse errors fall back to
// defaultValue with a warning.
func ParseInt(key string, defaultValue int) int {
	logger := xglog.WithComponent("config")
	v, ok := envValue(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logInvalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, i)
	return i
}

// ParseFloat reads a float64 from the environment.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := xglog.WithComponent("config")
	v, ok := envValue(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logInvalid(logger, key, v, "float", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, f)
	return f
}

// ParseDuration reads a Go duration ("5s") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := xglog.WithComponent("config")
	v, ok := envValue(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logInvalid(logger, key, v, "duration", defaultValue)
		return defaultValue
	}
	logEnv(logger, key, d.String())
	return d
}

// ParseBool reads a boolean from the environment. It accepts true/false,
// 1/0 and yes/no, case-insensitively.
func ParseBool(key string, defaultValue bool) bool {
	logger := xglog.WithComponent("config")
	v, ok := envValue(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		logEnv(logger, key, true)
		return true
	case "false", "0", "no":
		logEnv(logger, key, false)
		return false
	default:
		logInvalid(logger, key, v, "boolean", defaultValue)
		return defaultValue
	}
}
