package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	cacheInserts     atomic.Uint64
	staleRejects     atomic.Uint64
	notificationLost atomic.Uint64
	decodeErrors     atomic.Uint64
	rpcBatchFailures atomic.Uint64
	booksPublished   atomic.Uint64
	feedReconnects   atomic.Uint64

	// Gauges
	activeSubscribers atomic.Int32
	feedConnected     atomic.Int32 // 1 = connected, 0 = down
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordInsert records a successful cache insert.
func (m *Metrics) RecordInsert() {
	m.cacheInserts.Add(1)
}

// RecordStaleReject records an insert rejected by the slot guard.
func (m *Metrics) RecordStaleReject() {
	m.staleRejects.Add(1)
}

// RecordLag records notifications lost by a lagging subscriber.
func (m *Metrics) RecordLag(missed uint64) {
	m.notificationLost.Add(missed)
}

// RecordDecodeError records a failed account decode.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordRPCBatchFailure records a failed batch fetch cycle.
func (m *Metrics) RecordRPCBatchFailure() {
	m.rpcBatchFailures.Add(1)
}

// RecordBookPublished records an order-book side update.
func (m *Metrics) RecordBookPublished() {
	m.booksPublished.Add(1)
}

// RecordFeedReconnect records a websocket feed reconnect attempt.
func (m *Metrics) RecordFeedReconnect() {
	m.feedReconnects.Add(1)
}

// AddActiveSubscriber records a new hub subscription.
func (m *Metrics) AddActiveSubscriber() {
	m.activeSubscribers.Add(1)
}

// RemoveActiveSubscriber records a closed hub subscription.
func (m *Metrics) RemoveActiveSubscriber() {
	m.activeSubscribers.Add(-1)
}

// SetFeedConnected sets the websocket feed state.
func (m *Metrics) SetFeedConnected(up bool) {
	if up {
		m.feedConnected.Store(1)
	} else {
		m.feedConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CacheInserts      uint64
	StaleRejects      uint64
	NotificationsLost uint64
	DecodeErrors      uint64
	RPCBatchFailures  uint64
	BooksPublished    uint64
	FeedReconnects    uint64
	ActiveSubscribers int32
	FeedConnected     bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CacheInserts:      m.cacheInserts.Load(),
		StaleRejects:      m.staleRejects.Load(),
		NotificationsLost: m.notificationLost.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		RPCBatchFailures:  m.rpcBatchFailures.Load(),
		BooksPublished:    m.booksPublished.Load(),
		FeedReconnects:    m.feedReconnects.Load(),
		ActiveSubscribers: m.activeSubscribers.Load(),
		FeedConnected:     m.feedConnected.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.cacheInserts.Store(0)
	m.staleRejects.Store(0)
	m.notificationLost.Store(0)
	m.decodeErrors.Store(0)
	m.rpcBatchFailures.Store(0)
	m.booksPublished.Store(0)
	m.feedReconnects.Store(0)
	m.activeSubscribers.Store(0)
	m.feedConnected.Store(0)
}
