package telemetry

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncInvocationsStarted()
	m.IncInvocationsStarted()
	m.IncInvocationsSucceeded()
	m.IncInvocationsFailed()
	m.IncBackendCalls()
	m.IncRepairAttempts()

	summary := m.GetSummary()
	if summary["invocations_started"].(int64) != 2 {
		t.Errorf("expected 2 started, got %v", summary["invocations_started"])
	}
	if summary["invocations_succeeded"].(int64) != 1 {
		t.Errorf("expected 1 succeeded, got %v", summary["invocations_succeeded"])
	}
	if summary["backend_calls"].(int64) != 1 {
		t.Errorf("expected 1 backend call, got %v", summary["backend_calls"])
	}
}

func TestMetrics_Latency(t *testing.T) {
	m := NewMetrics()
	m.RecordLatency(100 * time.Millisecond)
	m.RecordLatency(300 * time.Millisecond)

	summary := m.GetSummary()
	avg, ok := summary["avg_latency_ms"].(int64)
	if !ok {
		t.Fatal("avg_latency_ms missing")
	}
	if avg != 200 {
		t.Errorf("expected avg 200ms, got %d", avg)
	}
}

func TestMetrics_ConcurrentIncrements(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncBackendCalls()
		}()
	}
	wg.Wait()

	if got := m.GetSummary()["backend_calls"].(int64); got != 50 {
		t.Errorf("expected 50 backend calls, got %d", got)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()
	m.IncInvocationsStarted()
	m.RecordLatency(time.Millisecond)
	m.Reset()

	summary := m.GetSummary()
	if summary["invocations_started"].(int64) != 0 {
		t.Error("expected counters reset to zero")
	}
	if _, ok := summary["avg_latency_ms"]; ok {
		t.Error("expected latency samples cleared")
	}
}
