package rag

import (
	"sync/atomic"
	"time"
)

// Metrics tracks query counters for the service. All fields are updated
// atomically; Snapshot gives a consistent-enough view for reporting.
type Metrics struct {
	queries            atomic.Int64
	failures           atomic.Int64
	documentsRetrieved atomic.Int64
	warningsIssued     atomic.Int64
	totalLatency       atomic.Int64 // nanoseconds
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Queries            int64         `json:"queries"`
	Failures           int64         `json:"failures"`
	DocumentsRetrieved int64         `json:"documents_retrieved"`
	WarningsIssued     int64         `json:"warnings_issued"`
	AverageLatency     time.Duration `json:"average_latency"`
}

func (m *Metrics) recordQuery(duration time.Duration, documents, warnings int) {
	m.queries.Add(1)
	m.documentsRetrieved.Add(int64(documents))
	m.warningsIssued.Add(int64(warnings))
	m.totalLatency.Add(int64(duration))
}

func (m *Metrics) recordFailure() {
	m.queries.Add(1)
	m.failures.Add(1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	queries := m.queries.Load()
	snapshot := MetricsSnapshot{
		Queries:            queries,
		Failures:           m.failures.Load(),
		DocumentsRetrieved: m.documentsRetrieved.Load(),
		WarningsIssued:     m.warningsIssued.Load(),
	}
	if succeeded := queries - snapshot.Failures; succeeded > 0 {
		snapshot.AverageLatency = time.Duration(m.totalLatency.Load() / succeeded)
	}
	return snapshot
}
