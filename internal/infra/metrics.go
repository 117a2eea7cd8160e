package infra

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	requestsTotal  atomic.Uint64
	recordsFetched atomic.Uint64
	recordsEmitted atomic.Uint64
	errorsTotal    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyMaxNs atomic.Int64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRequest records one HTTP round trip with its latency.
func (m *Metrics) RecordRequest(latencyNs int64) {
	m.requestsTotal.Add(1)
	m.latencySumNs.Add(latencyNs)
	for {
		cur := m.latencyMaxNs.Load()
		if latencyNs <= cur || m.latencyMaxNs.CompareAndSwap(cur, latencyNs) {
			return
		}
	}
}

// RecordRecords records records parsed from a response.
func (m *Metrics) RecordRecords(n int) {
	m.recordsFetched.Add(uint64(n))
}

// RecordEmitted records one record handed to the sinks.
func (m *Metrics) RecordEmitted() {
	m.recordsEmitted.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RequestsTotal  uint64
	RecordsFetched uint64
	RecordsEmitted uint64
	ErrorsTotal    uint64
	AvgLatencyNs   int64
	MaxLatencyNs   int64
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.requestsTotal.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		RequestsTotal:  count,
		RecordsFetched: m.recordsFetched.Load(),
		RecordsEmitted: m.recordsEmitted.Load(),
		ErrorsTotal:    m.errorsTotal.Load(),
		AvgLatencyNs:   avgLatency,
		MaxLatencyNs:   m.latencyMaxNs.Load(),
		Timestamp:      time.Now(),
	}
}

// LogValue renders the snapshot for slog.
func (s MetricsSnapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("requests", s.RequestsTotal),
		slog.Uint64("records_fetched", s.RecordsFetched),
		slog.Uint64("records_emitted", s.RecordsEmitted),
		slog.Uint64("errors", s.ErrorsTotal),
		slog.Duration("avg_latency", time.Duration(s.AvgLatencyNs)),
		slog.Duration("max_latency", time.Duration(s.MaxLatencyNs)),
	)
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.requestsTotal.Store(0)
	m.recordsFetched.Store(0)
	m.recordsEmitted.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyMaxNs.Store(0)
}
