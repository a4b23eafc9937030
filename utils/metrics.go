package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vton_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)

	// RemoteCallDuration tracks calls to the chat and fitting services.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vton_remote_call_duration_seconds",
			Help:    "Duration of calls to remote inference services",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)

	// RemoteCallsTotal counts remote calls by outcome (ok or an error kind).
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vton_remote_calls_total",
			Help: "Total calls to remote inference services",
		},
		[]string{"service", "outcome"},
	)

	// ActiveSessions tracks sessions held in memory.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vton_active_sessions",
			Help: "Number of UI sessions held in memory",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
}

// RecordRemoteCall records the outcome of one remote service call.
func RecordRemoteCall(service, outcome string, duration float64) {
	RemoteCallDuration.WithLabelValues(service, outcome).Observe(duration)
	RemoteCallsTotal.WithLabelValues(service, outcome).Inc()
}
