package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components receive metrics by injection instead of touching globals.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Payload metrics
	IncrementPayloads(kind string)
	IncrementValidationErrors(kind string)

	// Dispatch metrics
	IncrementDispatch(kind, status string)
	RecordDispatchLatency(duration time.Duration)

	// Context metrics
	IncrementContextMutations(op string)
	IncrementAdvertisingID(outcome string)

	// Settings metrics
	IncrementSettingsWrites(status string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Payload metrics
func (r *PrometheusRegistry) IncrementPayloads(kind string) {
	PayloadCount.WithLabelValues(kind).Inc()
}

func (r *PrometheusRegistry) IncrementValidationErrors(kind string) {
	ValidationErrors.WithLabelValues(kind).Inc()
}

// Dispatch metrics
func (r *PrometheusRegistry) IncrementDispatch(kind, status string) {
	DispatchCount.WithLabelValues(kind, status).Inc()
}

func (r *PrometheusRegistry) RecordDispatchLatency(duration time.Duration) {
	DispatchLatency.Observe(duration.Seconds())
}

// Context metrics
func (r *PrometheusRegistry) IncrementContextMutations(op string) {
	ContextMutations.WithLabelValues(op).Inc()
}

func (r *PrometheusRegistry) IncrementAdvertisingID(outcome string) {
	AdvertisingIDAttempts.WithLabelValues(outcome).Inc()
}

// Settings metrics
func (r *PrometheusRegistry) IncrementSettingsWrites(status string) {
	SettingsWrites.WithLabelValues(status).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementPayloads(kind string)                                        {}
func (r *NoOpRegistry) IncrementValidationErrors(kind string)                                {}
func (r *NoOpRegistry) IncrementDispatch(kind, status string)                                {}
func (r *NoOpRegistry) RecordDispatchLatency(duration time.Duration)                         {}
func (r *NoOpRegistry) IncrementContextMutations(op string)                                  {}
func (r *NoOpRegistry) IncrementAdvertisingID(outcome string)                                {}
func (r *NoOpRegistry) IncrementSettingsWrites(status string)                                {}
