// Package orderbook maintains the local price-indexed liquidity ladder for
// one symbol.
package orderbook

import (
	"slices"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/pkg/quant"
)

// side is one half of the book: exact-price levels plus an ascending index
// of the prices so best lookup and top-K walks stay ordered.
type side struct {
	levels map[quant.Decimal]float64
	prices []quant.Decimal // ascending
}

func newSide() side {
	return side{levels: make(map[quant.Decimal]float64)}
}

func (s *side) upsert(price quant.Decimal, qty float64) {
	if _, exists := s.levels[price]; !exists {
		pos, _ := slices.BinarySearch(s.prices, price)
		s.prices = slices.Insert(s.prices, pos, price)
	}
	s.levels[price] = qty
}

func (s *side) remove(price quant.Decimal) {
	if _, exists := s.levels[price]; !exists {
		return
	}
	delete(s.levels, price)
	pos, found := slices.BinarySearch(s.prices, price)
	if found {
		s.prices = slices.Delete(s.prices, pos, pos+1)
	}
}

func (s *side) clear() {
	clear(s.levels)
	s.prices = s.prices[:0]
}

func (s *side) size() int {
	return len(s.prices)
}

// lowest and highest assume the side is non-empty.
func (s *side) lowest() quant.Decimal  { return s.prices[0] }
func (s *side) highest() quant.Decimal { return s.prices[len(s.prices)-1] }

// OrderBook applies snapshots and incremental updates and serves metrics.
//
// Best-price handles are cached price keys with a validity flag: any
// mutation of a side invalidates that side's cache, and reads refresh it
// lazily. With no mutation between reads, Metrics resolves top-of-book
// from the cache without touching the index.
//
// Owned exclusively by the engine goroutine; no internal locking.
type OrderBook struct {
	bids side
	asks side

	lastUpdateID    uint64
	imbalanceLevels int

	bestBid      quant.Decimal
	bestAsk      quant.Decimal
	bestBidValid bool
	bestAskValid bool
}

// New creates an order book. imbalanceLevels is the K used for the
// depth-weighted imbalance metric.
func New(imbalanceLevels int) *OrderBook {
	if imbalanceLevels <= 0 {
		imbalanceLevels = 5
	}
	return &OrderBook{
		bids:            newSide(),
		asks:            newSide(),
		imbalanceLevels: imbalanceLevels,
	}
}

// ApplySnapshot wipes both sides and installs the snapshot levels. Levels
// with non-positive quantity are skipped.
func (b *OrderBook) ApplySnapshot(snap *domain.DepthSnapshot) domain.BookMetrics {
	b.bids.clear()
	b.asks.clear()
	b.invalidateBestCache()

	for _, lvl := range snap.Bids {
		if lvl.Qty > 0 {
			b.bids.upsert(lvl.Price, lvl.Qty)
		}
	}
	for _, lvl := range snap.Asks {
		if lvl.Qty > 0 {
			b.asks.upsert(lvl.Price, lvl.Qty)
		}
	}

	b.lastUpdateID = snap.LastUpdateID
	return b.Metrics()
}

// ApplyUpdate folds one incremental update into the book: positive
// quantities upsert, zero quantities delete. Sequence-gap checking is the
// caller's job via HasSequenceGap; ApplyUpdate itself never rejects.
func (b *OrderBook) ApplyUpdate(update *domain.DepthUpdate) domain.BookMetrics {
	if len(update.Bids) > 0 {
		for _, lvl := range update.Bids {
			if lvl.Qty > 0 {
				b.bids.upsert(lvl.Price, lvl.Qty)
			} else {
				b.bids.remove(lvl.Price)
			}
		}
		// Any upsert may introduce a new best; any erase may remove one.
		b.bestBidValid = false
	}

	if len(update.Asks) > 0 {
		for _, lvl := range update.Asks {
			if lvl.Qty > 0 {
				b.asks.upsert(lvl.Price, lvl.Qty)
			} else {
				b.asks.remove(lvl.Price)
			}
		}
		b.bestAskValid = false
	}

	b.lastUpdateID = update.FinalUpdateID
	return b.Metrics()
}

// HasSequenceGap reports whether an update with the given ids would leave a
// hole: its pu must equal the book's last update id.
//
// firstUpdateID is accepted for a future tightening (U <= last+1) but is
// not consulted; see the sync protocol notes in DESIGN.md.
func (b *OrderBook) HasSequenceGap(firstUpdateID, prevFinalUpdateID uint64) bool {
	_ = firstUpdateID
	return prevFinalUpdateID != b.lastUpdateID
}

// Metrics computes the read-only top-of-book view, refreshing the best
// caches lazily.
func (b *OrderBook) Metrics() domain.BookMetrics {
	m := domain.BookMetrics{
		LastUpdateID: b.lastUpdateID,
		Timestamp:    time.Now(),
	}

	if b.bids.size() > 0 {
		if !b.bestBidValid {
			b.bestBid = b.bids.highest()
			b.bestBidValid = true
		}
		m.BestBid = b.bestBid
		m.BestBidQty = b.bids.levels[b.bestBid]
	}
	if b.asks.size() > 0 {
		if !b.bestAskValid {
			b.bestAsk = b.asks.lowest()
			b.bestAskValid = true
		}
		m.BestAsk = b.bestAsk
		m.BestAskQty = b.asks.levels[b.bestAsk]
	}

	m.Imbalance = b.imbalance()

	if b.bids.size() == 0 || b.asks.size() == 0 {
		return m
	}

	m.Spread = m.BestAsk.Sub(m.BestBid)
	m.MidPrice = (m.BestBid.Float64() + m.BestAsk.Float64()) / 2
	if m.MidPrice > 0 {
		m.SpreadBps = m.Spread.Float64() / m.MidPrice * 10000
	}
	return m
}

// imbalance is (B - A) / (B + A) over the top K levels of each side;
// zero when both sums are zero.
func (b *OrderBook) imbalance() float64 {
	var bidVolume, askVolume float64

	prices := b.bids.prices
	count := 0
	for i := len(prices) - 1; i >= 0 && count < b.imbalanceLevels; i-- {
		bidVolume += b.bids.levels[prices[i]]
		count++
	}

	count = 0
	for _, p := range b.asks.prices {
		if count >= b.imbalanceLevels {
			break
		}
		askVolume += b.asks.levels[p]
		count++
	}

	total := bidVolume + askVolume
	if total <= 0 {
		return 0
	}
	return (bidVolume - askVolume) / total
}

// Clear empties both sides and resets sequencing.
func (b *OrderBook) Clear() {
	b.bids.clear()
	b.asks.clear()
	b.lastUpdateID = 0
	b.invalidateBestCache()
}

func (b *OrderBook) invalidateBestCache() {
	b.bestBidValid = false
	b.bestAskValid = false
}

// BidLevels returns the number of stored bid levels.
func (b *OrderBook) BidLevels() int {
	return b.bids.size()
}

// AskLevels returns the number of stored ask levels.
func (b *OrderBook) AskLevels() int {
	return b.asks.size()
}

// LastUpdateID returns the sequence id of the last applied snapshot or update.
func (b *OrderBook) LastUpdateID() uint64 {
	return b.lastUpdateID
}
