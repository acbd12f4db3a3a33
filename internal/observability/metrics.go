package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total API requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamlytics_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// payloads built, labelled by kind
	PayloadCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_payloads_total",
			Help: "Total payloads built",
		},
		[]string{"kind"},
	)

	// payloads rejected by builder validation, labelled by kind
	ValidationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_validation_errors_total",
			Help: "Total payloads rejected by validation",
		},
		[]string{"kind"},
	)

	// dispatch outcomes labelled by kind and status
	DispatchCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_dispatch_total",
			Help: "Total payload dispatch attempts",
		},
		[]string{"kind", "status"},
	)

	// dispatch latency in seconds
	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamlytics_dispatch_duration_seconds",
			Help:    "Duration of payload dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// context mutations applied by the owner loop
	ContextMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_context_mutations_total",
			Help: "Total context mutations applied",
		},
		[]string{"op"},
	)

	// advertising id attempts labelled by outcome (attached, skipped, failed, cancelled)
	AdvertisingIDAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_advertising_id_total",
			Help: "Total advertising id attach attempts",
		},
		[]string{"outcome"},
	)

	// persisted settings writes labelled by status
	SettingsWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlytics_settings_writes_total",
			Help: "Total persisted settings writes",
		},
		[]string{"status"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		PayloadCount,
		ValidationErrors,
		DispatchCount,
		DispatchLatency,
		ContextMutations,
		AdvertisingIDAttempts,
		SettingsWrites,
	)
}
