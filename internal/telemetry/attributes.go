// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used across spans.
const (
	ServiceNameKey           = "service.name"
	ServiceVersionKey        = "service.version"
	DeploymentEnvironmentKey = "deployment.environment"

	SessionIDKey      = "recording.session_id"
	FPSKey            = "recording.fps"
	ResolutionKey     = "recording.resolution"
	FramesCapturedKey = "recording.frames_captured"
	FramesWrittenKey  = "recording.frames_written"
	ActiveMSKey       = "recording.active_ms"
	PausedMSKey       = "recording.paused_ms"

	ExportKindKey   = "export.kind"
	ExportTargetKey = "export.target"
	ExportCopyKey   = "export.cross_device"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes a recording session at start.
func SessionAttributes(id string, fps int, resolution string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SessionIDKey, id),
		attribute.Int(FPSKey, fps),
	}
	if resolution != "" {
		attrs = append(attrs, attribute.String(ResolutionKey, resolution))
	}
	return attrs
}

// SummaryAttributes describes a finished session.
func SummaryAttributes(captured, written uint64, activeMS, pausedMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(FramesCapturedKey, int64(captured)), // #nosec G115 -- frame counts stay far below MaxInt64
		attribute.Int64(FramesWrittenKey, int64(written)),   // #nosec G115
		attribute.Int64(ActiveMSKey, activeMS),
		attribute.Int64(PausedMSKey, pausedMS),
	}
}

// ExportAttributes describes an export of the given kind (video or still).
func ExportAttributes(kind, target string, crossDevice bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExportKindKey, kind),
		attribute.String(ExportTargetKey, target),
		attribute.Bool(ExportCopyKey, crossDevice),
	}
}

// ErrorAttributes marks a span as failed with a coarse error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError records err on span and sets its status. Nil errors mark the
// span OK.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(errorType)...)
	span.SetStatus(codes.Error, err.Error())
}
