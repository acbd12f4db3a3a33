package analytics

import (
	"context"
	"sync"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/payload"
)

var _ Dispatcher = (*MockDispatcher)(nil)

// DispatchCall is one recorded Dispatch invocation.
type DispatchCall struct {
	Payload *payload.Payload
	Context *models.AnalyticsContext
}

// MockDispatcher is a Dispatcher for testing. It records every call and
// returns Err.
type MockDispatcher struct {
	mu    sync.Mutex
	calls []DispatchCall
	Err   error
}

// NewMockDispatcher creates a new mock dispatcher
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, p *payload.Payload, snapshot *models.AnalyticsContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, DispatchCall{Payload: p, Context: snapshot})
	return m.Err
}

// Calls returns a copy of the recorded calls.
func (m *MockDispatcher) Calls() []DispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DispatchCall, len(m.calls))
	copy(out, m.calls)
	return out
}
