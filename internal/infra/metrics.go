package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	messagesProcessed atomic.Uint64
	ringDrops         atomic.Uint64
	decodeErrors      atomic.Uint64
	reconnects        atomic.Uint64
	sequenceGaps      atomic.Uint64
	alertsFired       atomic.Uint64

	// Gauges
	broadcastClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordMessage counts one message dispatched by the engine.
func (m *Metrics) RecordMessage() {
	m.messagesProcessed.Add(1)
}

// RecordRingDrop counts a message dropped because the ring was full.
func (m *Metrics) RecordRingDrop() {
	m.ringDrops.Add(1)
}

// RecordDecodeError counts a frame the decoder rejected.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordReconnect counts a scheduled reconnect.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// RecordSequenceGap counts a detected depth sequence gap.
func (m *Metrics) RecordSequenceGap() {
	m.sequenceGaps.Add(1)
}

// RecordAlert counts a fired large-trade alert.
func (m *Metrics) RecordAlert() {
	m.alertsFired.Add(1)
}

// IncrementClients increments connected broadcast clients by 1.
func (m *Metrics) IncrementClients() {
	m.broadcastClients.Add(1)
}

// DecrementClients decrements connected broadcast clients by 1.
func (m *Metrics) DecrementClients() {
	m.broadcastClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	MessagesProcessed uint64
	RingDrops         uint64
	DecodeErrors      uint64
	Reconnects        uint64
	SequenceGaps      uint64
	AlertsFired       uint64
	BroadcastClients  int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesProcessed: m.messagesProcessed.Load(),
		RingDrops:         m.ringDrops.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		Reconnects:        m.reconnects.Load(),
		SequenceGaps:      m.sequenceGaps.Load(),
		AlertsFired:       m.alertsFired.Load(),
		BroadcastClients:  m.broadcastClients.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.messagesProcessed.Store(0)
	m.ringDrops.Store(0)
	m.decodeErrors.Store(0)
	m.reconnects.Store(0)
	m.sequenceGaps.Store(0)
	m.alertsFired.Store(0)
	m.broadcastClients.Store(0)
}
