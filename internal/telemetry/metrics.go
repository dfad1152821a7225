package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects invocation counters for the gateway.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	InvocationsStarted   int64
	InvocationsSucceeded int64
	InvocationsFailed    int64
	BackendCalls         int64
	RepairAttempts       int64

	latencies []time.Duration
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		latencies: make([]time.Duration, 0, 1000),
	}
}

// IncInvocationsStarted increments the started counter.
func (m *Metrics) IncInvocationsStarted() {
	atomic.AddInt64(&m.InvocationsStarted, 1)
}

// IncInvocationsSucceeded increments the succeeded counter.
func (m *Metrics) IncInvocationsSucceeded() {
	atomic.AddInt64(&m.InvocationsSucceeded, 1)
}

// IncInvocationsFailed increments the failed counter.
func (m *Metrics) IncInvocationsFailed() {
	atomic.AddInt64(&m.InvocationsFailed, 1)
}

// IncBackendCalls increments the backend call counter.
func (m *Metrics) IncBackendCalls() {
	atomic.AddInt64(&m.BackendCalls, 1)
}

// IncRepairAttempts increments the repair attempt counter.
func (m *Metrics) IncRepairAttempts() {
	atomic.AddInt64(&m.RepairAttempts, 1)
}

// RecordLatency records an end-to-end invocation latency.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, d)
}

// GetSummary returns a snapshot of all counters.
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"invocations_started":   atomic.LoadInt64(&m.InvocationsStarted),
		"invocations_succeeded": atomic.LoadInt64(&m.InvocationsSucceeded),
		"invocations_failed":    atomic.LoadInt64(&m.InvocationsFailed),
		"backend_calls":         atomic.LoadInt64(&m.BackendCalls),
		"repair_attempts":       atomic.LoadInt64(&m.RepairAttempts),
	}

	if len(m.latencies) > 0 {
		var total time.Duration
		for _, d := range m.latencies {
			total += d
		}
		summary["avg_latency_ms"] = total.Milliseconds() / int64(len(m.latencies))
	}

	return summary
}

// Reset resets all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.InvocationsStarted, 0)
	atomic.StoreInt64(&m.InvocationsSucceeded, 0)
	atomic.StoreInt64(&m.InvocationsFailed, 0)
	atomic.StoreInt64(&m.BackendCalls, 0)
	atomic.StoreInt64(&m.RepairAttempts, 0)
	m.latencies = m.latencies[:0]
}
