package observability

import (
	"testing"

	"go.uber.org/zap"
)

func TestGetLogLevel(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "")
	if lvl := getLogLevel(); lvl != zap.DebugLevel {
		t.Fatalf("expected debug in dev, got %v", lvl)
	}

	t.Setenv("LOG_LEVEL", "warn")
	if lvl := getLogLevel(); lvl != zap.WarnLevel {
		t.Fatalf("expected explicit warn level, got %v", lvl)
	}

	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	if lvl := getLogLevel(); lvl != zap.InfoLevel {
		t.Fatalf("expected info in production, got %v", lvl)
	}
}

func TestShouldSampleBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		if !ShouldSample(1.0) {
			t.Fatal("rate 1.0 must always sample")
		}
		if ShouldSample(0) {
			t.Fatal("rate 0 must never sample")
		}
	}
}

func TestMockMetricsRegistryCounts(t *testing.T) {
	m := NewMockMetricsRegistry()
	m.IncrementDispatch("track", "ok")
	m.IncrementDispatch("track", "ok")
	m.IncrementValidationErrors("identify")
	if got := m.Count("dispatch:track:ok"); got != 2 {
		t.Fatalf("expected 2 dispatches, got %d", got)
	}
	if got := m.Count("validation:identify"); got != 1 {
		t.Fatalf("expected 1 validation error, got %d", got)
	}
	if got := m.Count("payloads:track"); got != 0 {
		t.Fatalf("expected 0 payloads, got %d", got)
	}
}
