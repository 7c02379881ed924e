// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the Prometheus instruments of the recording
// pipeline. All collectors register on the default registry via promauto.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvasrec_frames_captured_total",
		Help: "Total number of scene samples captured by the sampling loop",
	})

	framesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvasrec_frames_written_total",
		Help: "Total number of frames appended to the output stream",
	})

	frameQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvasrec_frame_queue_depth",
		Help: "Frames rendered but not yet written (last observation)",
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "canvasrec_render_duration_seconds",
		Help:    "Time spent compositing one frame",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
	})

	recordingState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "canvasrec_recording_state",
		Help: "Current controller state (1 for the active state, 0 otherwise)",
	}, []string{"state"}) // state=idle|recording|paused|failed

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasrec_sessions_total",
		Help: "Finished recording sessions by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "canvasrec_session_active_seconds",
		Help:    "Active (unpaused) duration of finished sessions",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
	})

	muxErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasrec_mux_errors_total",
		Help: "Fatal muxer errors by reason",
	}, []string{"reason"}) // reason=stream_open|dimension_mismatch|write|finalize|unknown
)

var knownStates = []string{"idle", "recording", "paused", "failed"}

func IncFramesCaptured() { framesCapturedTotal.Inc() }
func IncFramesWritten()  { framesWrittenTotal.Inc() }

// SetQueueDepth records the current backlog between render pool and muxer.
func SetQueueDepth(n int) { frameQueueDepth.Set(float64(n)) }

// ObserveRenderDuration records how long one composite took.
func ObserveRenderDuration(d time.Duration) { renderDuration.Observe(d.Seconds()) }

// SetRecordingState flips the state gauge so exactly one label is 1.
func SetRecordingState(state string) {
	state = strings.ToLower(strings.TrimSpace(state))
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		recordingState.WithLabelValues(s).Set(v)
	}
}

// RecordSession records a finished session.
func RecordSession(success bool, active time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(active.Seconds())
}

// IncMuxError records a fatal muxer error with a normalized reason label.
func IncMuxError(reason string) {
	muxErrorsTotal.WithLabelValues(normalizeMuxReasonLabel(reason)).Inc()
}

func normalizeMuxReasonLabel(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "stream_open", "dimension_mismatch", "write", "finalize":
		return strings.ToLower(strings.TrimSpace(reason))
	default:
		return "unknown"
	}
}
