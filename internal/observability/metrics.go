package observability

import "sync"

// Metrics provides counters, gauges, and histogram recording primitives.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the relay.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)        {}

// RelayMetricsSnapshot captures relay-focused runtime counters.
type RelayMetricsSnapshot struct {
	ParkedDepth         map[string]int `json:"parked_depth"`
	DroppedEvents       map[string]int `json:"dropped_events"`
	RejectedTransitions map[string]int `json:"rejected_transitions"`
	FlushedBatches      int            `json:"flushed_batches"`
	ForwardedEvents     int            `json:"forwarded_events"`
}

// RuntimeMetrics accumulates relay metrics in-memory for periodic export.
type RuntimeMetrics struct {
	mu    sync.Mutex
	relay RelayMetricsSnapshot
}

// NewRuntimeMetrics constructs a metrics accumulator with empty maps.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.relay = RelayMetricsSnapshot{
		ParkedDepth:         make(map[string]int),
		DroppedEvents:       make(map[string]int),
		RejectedTransitions: make(map[string]int),
		FlushedBatches:      0,
		ForwardedEvents:     0,
	}
	return metrics
}

// RecordParkedDepth tracks the latest non-associated buffer depth for a namespace.
func (m *RuntimeMetrics) RecordParkedDepth(namespace string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay.ParkedDepth[namespace] = depth
}

// IncrementDropped increments the dropped-event counter for a reason.
func (m *RuntimeMetrics) IncrementDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay.DroppedEvents[reason]++
}

// IncrementRejectedTransition increments the rejected merge counter for a field.
func (m *RuntimeMetrics) IncrementRejectedTransition(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay.RejectedTransitions[field]++
}

// IncrementFlushedBatches counts one completed subscription flush.
func (m *RuntimeMetrics) IncrementFlushedBatches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay.FlushedBatches++
}

// IncrementForwarded counts one event forwarded downstream.
func (m *RuntimeMetrics) IncrementForwarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay.ForwardedEvents++
}

// Snapshot copies the current relay metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() RelayMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := RelayMetricsSnapshot{
		ParkedDepth:         make(map[string]int, len(m.relay.ParkedDepth)),
		DroppedEvents:       make(map[string]int, len(m.relay.DroppedEvents)),
		RejectedTransitions: make(map[string]int, len(m.relay.RejectedTransitions)),
		FlushedBatches:      m.relay.FlushedBatches,
		ForwardedEvents:     m.relay.ForwardedEvents,
	}
	for k, v := range m.relay.ParkedDepth {
		snapshot.ParkedDepth[k] = v
	}
	for k, v := range m.relay.DroppedEvents {
		snapshot.DroppedEvents[k] = v
	}
	for k, v := range m.relay.RejectedTransitions {
		snapshot.RejectedTransitions[k] = v
	}
	return snapshot
}
