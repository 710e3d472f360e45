// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safetrack_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TrackingSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_tracking_samples_total",
			Help: "Position samples evaluated, by resulting status level",
		},
		[]string{"status"},
	)

	HistorySuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safetrack_history_suppressed_total",
			Help: "Samples not appended to history because they were too close to the previous entry",
		},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safetrack_tracking_sessions",
			Help: "Active tracking sessions by source mode",
		},
		[]string{"mode"},
	)

	AlertsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_alerts_published_total",
			Help: "Status transition events published",
		},
		[]string{"level"},
	)

	RecognitionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_recognition_requests_total",
			Help: "Face comparison calls by outcome",
		},
		[]string{"outcome"},
	)

	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_chat_requests_total",
			Help: "Chat proxy requests by response status",
		},
		[]string{"status"},
	)

	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetrack_geocode_requests_total",
			Help: "Geocoding lookups by kind and source (cache or upstream)",
		},
		[]string{"kind", "source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "safetrack_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)
