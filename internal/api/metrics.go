package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory counters exposed at /metricz.
type Metrics struct {
	startTime         time.Time
	requests          atomic.Int64
	serverErrors      atomic.Int64
	clientErrors      atomic.Int64
	batchesAccepted   atomic.Int64
	batchesRejected   atomic.Int64
	itemsRepositioned atomic.Int64
	batchReplays      atomic.Int64
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	Requests          int64   `json:"requests"`
	ServerErrors      int64   `json:"server_errors"`
	ClientErrors      int64   `json:"client_errors"`
	BatchesAccepted   int64   `json:"batches_accepted"`
	BatchesRejected   int64   `json:"batches_rejected"`
	ItemsRepositioned int64   `json:"items_repositioned"`
	BatchReplays      int64   `json:"batch_replays"`
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordRequest()     { m.requests.Add(1) }
func (m *Metrics) RecordError()       { m.serverErrors.Add(1) }
func (m *Metrics) RecordClientError() { m.clientErrors.Add(1) }

// RecordBatch counts a position batch of n records.
func (m *Metrics) RecordBatch(n int, accepted bool) {
	if !accepted {
		m.batchesRejected.Add(1)
		return
	}
	m.batchesAccepted.Add(1)
	m.itemsRepositioned.Add(int64(n))
}

// RecordReplay counts a batch answered from its Idempotency-Key.
func (m *Metrics) RecordReplay() { m.batchReplays.Add(1) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
		Requests:          m.requests.Load(),
		ServerErrors:      m.serverErrors.Load(),
		ClientErrors:      m.clientErrors.Load(),
		BatchesAccepted:   m.batchesAccepted.Load(),
		BatchesRejected:   m.batchesRejected.Load(),
		ItemsRepositioned: m.itemsRepositioned.Load(),
		BatchReplays:      m.batchReplays.Load(),
	}
}
