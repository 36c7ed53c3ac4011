package domain

import (
	"time"

	"github.com/ianfigueroa/Titan/pkg/quant"
)

// BookMetrics is an immutable top-of-book view computed from the order book.
type BookMetrics struct {
	BestBid      quant.Decimal
	BestAsk      quant.Decimal
	BestBidQty   float64
	BestAskQty   float64
	Spread       quant.Decimal
	SpreadBps    float64
	MidPrice     float64
	Imbalance    float64 // -1..+1, positive = bid-heavy
	LastUpdateID uint64
	Timestamp    time.Time
}

// IsValid reports whether both sides are present and uncrossed. Crossed
// books are reported, never repaired; recovery is sequencing-based.
func (b BookMetrics) IsValid() bool {
	return b.BestBid > 0 && b.BestAsk > 0 && b.BestAsk > b.BestBid
}

// VWAPMid is the size-weighted mid price, falling back to the plain mid
// when both top quantities are zero.
func (b BookMetrics) VWAPMid() float64 {
	total := b.BestBidQty + b.BestAskQty
	if total <= 0 {
		return b.MidPrice
	}
	return (b.BestBid.Float64()*b.BestAskQty + b.BestAsk.Float64()*b.BestBidQty) / total
}

// MicroPrice weights toward the side with less resting quantity, the side
// more likely to be hit next.
func (b BookMetrics) MicroPrice() float64 {
	total := b.BestBidQty + b.BestAskQty
	if total <= 0 {
		return b.MidPrice
	}
	bidWeight := b.BestAskQty / total
	askWeight := b.BestBidQty / total
	return b.BestBid.Float64()*bidWeight + b.BestAsk.Float64()*askWeight
}

// TradeAlert is a large-trade notification: a trade whose size sits more
// than the configured number of standard deviations above the rolling mean.
type TradeAlert struct {
	Price     float64
	Quantity  float64
	IsBuy     bool
	Deviation float64 // standard deviations above the mean
	Timestamp time.Time
}

// TradeFlowMetrics aggregates the rolling trade statistics.
type TradeFlowMetrics struct {
	VWAP            float64
	TotalBuyVolume  float64
	TotalSellVolume float64
	NetFlow         float64 // buy - sell
	TradeCount      int
	LastAlert       *TradeAlert
}
