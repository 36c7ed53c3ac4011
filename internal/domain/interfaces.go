package domain

// Sink receives rendered engine output. Implementations must not block the
// engine goroutine; slow consumers buffer or drop on their own side.
type Sink interface {
	PublishMetrics(book BookMetrics, flow TradeFlowMetrics)
	PublishAlert(alert TradeAlert)
	PublishStatus(connected bool, state string)
}

// ForceEmitter is implemented by sinks that keep their own emission rate
// limit and can be told to let the next publish through immediately, e.g.
// right after a resync.
type ForceEmitter interface {
	ForceNext()
}

// SnapshotRequester lets the engine ask the feed side for a fresh depth
// snapshot after a sequence gap. Must be safe to call from the engine
// goroutine; duplicate requests while one is in flight are suppressed.
type SnapshotRequester interface {
	RequestSnapshot()
}
