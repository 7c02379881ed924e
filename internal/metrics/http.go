// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canvasrec_http_request_duration_seconds",
		Help:    "Control API request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvasrec_http_requests_in_flight",
		Help: "Control API requests currently being served",
	})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvasrec_http_rate_limited_total",
		Help: "Control API requests rejected by the rate limiter",
	}, []string{"route"})
)

// HTTPRequestStarted marks a request in flight. The returned func records
// its completion.
func HTTPRequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpRequestsInFlight.Inc()
	return func(method, route string, status int) {
		httpRequestsInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	}
}

// IncRateLimited counts a rejected request.
func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}
