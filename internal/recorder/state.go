// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"fmt"
	"time"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	// StateStopping is reported while Stop drains the pipeline.
	StateStopping State = "stopping"
	// StateFailed is reported between a fatal muxer error and Stop.
	StateFailed State = "failed"
)

// SessionInfo is returned by Start.
type SessionInfo struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FPS        int       `json:"fps"`
	Resolution string    `json:"resolution"`
	OutputPath string    `json:"output_path"`
}

// Summary describes a finished session.
type Summary struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	StoppedAt      time.Time     `json:"stopped_at"`
	FPS            int           `json:"fps"`
	FramesCaptured uint64        `json:"frames_captured"`
	FramesWritten  uint64        `json:"frames_written"`
	Active         time.Duration `json:"active_ns"`
	Paused         time.Duration `json:"paused_ns"`
	Path           string        `json:"path,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State          State         `json:"state"`
	SessionID      string        `json:"session_id,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Paused         time.Duration `json:"paused_ns"`
	FramesCaptured uint64        `json:"frames_captured"`
	FramesWritten  uint64        `json:"frames_written"`
	QueueDepth     int           `json:"queue_depth"`
	LastArtifact   string        `json:"last_artifact,omitempty"`
	Error          string        `json:"error,omitempty"`
	Text           string        `json:"text"`
}

// StatusFunc receives human readable status lines.
type StatusFunc func(text string)

// statusText renders the line shown to the user. The recording dot blinks
// once per elapsed second.
func statusText(st Status) string {
	switch st.State {
	case StateRecording:
		secs := int64(st.Elapsed / time.Second)
		dot := "●"
		if secs%2 != 0 {
			dot = " "
		}
		return fmt.Sprintf("%s Recording... %ds", dot, secs)
	case StatePaused:
		return fmt.Sprintf("Paused %ds", int64(st.Paused/time.Second))
	case StateStopping:
		return "Finishing recording..."
	case StateFailed:
		return "Recording failed: " + st.Error
	default:
		return "Idle"
	}
}
