// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasrec_exports_total",
		Help: "Export attempts by kind and result",
	}, []string{"kind", "result"}) // kind=video|still, result=success|failure

	exportCrossDeviceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvasrec_export_cross_device_total",
		Help: "Saves that fell back to copy because the target is on another filesystem",
	})

	sceneReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasrec_scene_reloads_total",
		Help: "Scene file reloads by result",
	}, []string{"result"})

	sceneObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvasrec_scene_objects",
		Help: "Number of objects on the canvas after the last reload or edit",
	})
)

// IncExport records an export attempt. Unknown kinds are folded into "unknown".
func IncExport(kind string, success bool) {
	switch kind {
	case "video", "still":
	default:
		kind = "unknown"
	}
	exportsTotal.WithLabelValues(kind, result(success)).Inc()
}

func IncExportCrossDevice() { exportCrossDeviceTotal.Inc() }

// RecordSceneReload records a scene file reload and the resulting object count.
func RecordSceneReload(objects int, err error) {
	sceneReloadsTotal.WithLabelValues(result(err == nil)).Inc()
	if err == nil {
		sceneObjects.Set(float64(objects))
	}
}

// SetSceneObjects records the current object count.
func SetSceneObjects(n int) { sceneObjects.Set(float64(n)) }

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
