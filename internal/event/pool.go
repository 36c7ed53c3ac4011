package event

import (
	"sync"

	"github.com/ianfigueroa/Titan/internal/domain"
)

// Pools for the high-frequency payloads. The feed goroutine acquires, the
// engine goroutine releases after dispatch, so steady-state traffic recycles
// a small working set instead of allocating per message.
//
// Usage:
//
//	du := event.AcquireDepthUpdate()
//	// ... fill fields ...
//	ring.TryPush(event.DepthUpdateMsg(du, now))
//	// consumer side, after applying:
//	event.ReleaseDepthUpdate(du)

var depthUpdatePool = sync.Pool{
	New: func() any {
		return &domain.DepthUpdate{}
	},
}

// AcquireDepthUpdate gets a DepthUpdate from the pool. Scalar fields are
// zero; the level slices are empty but keep their capacity.
func AcquireDepthUpdate() *domain.DepthUpdate {
	return depthUpdatePool.Get().(*domain.DepthUpdate)
}

// ReleaseDepthUpdate resets the update and returns it to the pool. The
// caller must not touch it afterwards.
func ReleaseDepthUpdate(u *domain.DepthUpdate) {
	if u == nil {
		return
	}
	bids := u.Bids[:0]
	asks := u.Asks[:0]
	*u = domain.DepthUpdate{}
	u.Bids = bids
	u.Asks = asks

	depthUpdatePool.Put(u)
}

var aggTradePool = sync.Pool{
	New: func() any {
		return &domain.AggTrade{}
	},
}

// AcquireAggTrade gets an AggTrade from the pool.
func AcquireAggTrade() *domain.AggTrade {
	return aggTradePool.Get().(*domain.AggTrade)
}

// ReleaseAggTrade resets the trade and returns it to the pool.
func ReleaseAggTrade(t *domain.AggTrade) {
	if t == nil {
		return
	}
	*t = domain.AggTrade{}
	aggTradePool.Put(t)
}
