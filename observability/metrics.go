package observability

import (
	"sync"
	"time"
)

// Metrics defines the interface for collecting orchestration metrics
type Metrics interface {
	// IncrementCalls increments the model call counter
	IncrementCalls(labels map[string]string)

	// RecordLatency records model call latency
	RecordLatency(duration time.Duration, labels map[string]string)

	// RecordError increments error counter
	RecordError(errorType string, labels map[string]string)

	// SetActiveInstances sets the gauge for active worker instances
	SetActiveInstances(count int)

	// IncrementTurns increments the completed turn counter
	IncrementTurns()
}

// NoOpMetrics is a no-operation implementation of Metrics
type NoOpMetrics struct{}

// IncrementCalls implements Metrics interface
func (n *NoOpMetrics) IncrementCalls(labels map[string]string) {}

// RecordLatency implements Metrics interface
func (n *NoOpMetrics) RecordLatency(duration time.Duration, labels map[string]string) {}

// RecordError implements Metrics interface
func (n *NoOpMetrics) RecordError(errorType string, labels map[string]string) {}

// SetActiveInstances implements Metrics interface
func (n *NoOpMetrics) SetActiveInstances(count int) {}

// IncrementTurns implements Metrics interface
func (n *NoOpMetrics) IncrementTurns() {}

// DefaultMetrics is a simple in-memory metrics collector. Worker calls run
// concurrently, so all counters are guarded by a mutex.
type DefaultMetrics struct {
	mu              sync.Mutex
	calls           int64
	totalLatency    time.Duration
	errors          map[string]int64
	activeInstances int
	turns           int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance
func NewDefaultMetrics() *DefaultMetrics {
	return &DefaultMetrics{
		errors: make(map[string]int64),
	}
}

// IncrementCalls implements Metrics interface
func (m *DefaultMetrics) IncrementCalls(labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

// RecordLatency implements Metrics interface
func (m *DefaultMetrics) RecordLatency(duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLatency += duration
}

// RecordError implements Metrics interface
func (m *DefaultMetrics) RecordError(errorType string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[errorType]++
}

// SetActiveInstances implements Metrics interface
func (m *DefaultMetrics) SetActiveInstances(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeInstances = count
}

// IncrementTurns implements Metrics interface
func (m *DefaultMetrics) IncrementTurns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns++
}

// GetStats returns current statistics
func (m *DefaultMetrics) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := make(map[string]int64, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	return map[string]interface{}{
		"calls":            m.calls,
		"total_latency":    m.totalLatency.String(),
		"errors":           errs,
		"active_instances": m.activeInstances,
		"turns":            m.turns,
	}
}

// Ensure implementations satisfy the interface
var _ Metrics = (*NoOpMetrics)(nil)
var _ Metrics = (*DefaultMetrics)(nil)
