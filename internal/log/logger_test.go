// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestWithComponent_AddsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "canvasrec-test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("recorder")
	l.Info().Str(FieldEvent, "recording.started").Msg("hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "canvasrec-test", m["service"])
	assert.Equal(t, "v0", m["version"])
	assert.Equal(t, "recorder", m[FieldComponent])
	assert.Equal(t, "recording.started", m[FieldEvent])
}

func TestWithContext_CorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	ctx = ContextWithRequestID(ctx, "req-9")

	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("x")

	m := decodeLine(t, &buf)
	assert.Equal(t, "sess-1", m[FieldSessionID])
	assert.Equal(t, "req-9", m[FieldRequestID])
	assert.Equal(t, "api", m[FieldComponent])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithContext(context.Background(), Base())
	l.Info().Msg("plain")

	m := decodeLine(t, &buf)
	_, hasSession := m[FieldSessionID]
	assert.False(t, hasSession)
}

func TestFromContext_FallsBackToBase(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
	//nolint:staticcheck // nil context is part of the contract
	require.NotNil(t, FromContext(nil))
	assert.Equal(t, "", SessionIDFromContext(context.Background()))
}

func TestConfigure_ConsoleFormatAndUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "verbose", Format: FormatConsole, Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("export")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len(), "unknown levels fall back to info")

	l.Info().Str(FieldEvent, "export.saved").Msg("saved")
	out := buf.String()
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "export.saved")
	assert.NotContains(t, out, "{", "console output is not JSON")
	assert.NotContains(t, out, "version=", "empty version is omitted")
}
