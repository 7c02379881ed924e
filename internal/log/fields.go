// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldObjectID  = "object_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Frame / stream fields
	FieldFPS            = "fps"
	FieldResolution     = "resolution"
	FieldSeq            = "seq"
	FieldFramesCaptured = "frames_captured"
	FieldFramesWritten  = "frames_written"
	FieldQueueDepth     = "queue_depth"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath      = "path"
	FieldFinalPath = "final_path"
)
