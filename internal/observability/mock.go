package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry counts calls so tests can assert on recorded metrics.
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry creates an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(key string) {
	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

// Count returns how many times the metric identified by key was recorded.
// Keys are "<method>:<labels joined by :>", e.g. "dispatch:track:ok".
func (m *MockMetricsRegistry) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

// HTTP Request metrics
func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests:" + endpoint + ":" + method + ":" + status)
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Payload metrics
func (m *MockMetricsRegistry) IncrementPayloads(kind string)         { m.inc("payloads:" + kind) }
func (m *MockMetricsRegistry) IncrementValidationErrors(kind string) { m.inc("validation:" + kind) }

// Dispatch metrics
func (m *MockMetricsRegistry) IncrementDispatch(kind, status string) {
	m.inc("dispatch:" + kind + ":" + status)
}

func (m *MockMetricsRegistry) RecordDispatchLatency(duration time.Duration) {}

// Context metrics
func (m *MockMetricsRegistry) IncrementContextMutations(op string)   { m.inc("mutation:" + op) }
func (m *MockMetricsRegistry) IncrementAdvertisingID(outcome string) { m.inc("adid:" + outcome) }
func (m *MockMetricsRegistry) IncrementSettingsWrites(status string) { m.inc("settings:" + status) }
