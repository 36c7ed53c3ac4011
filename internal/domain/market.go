// Package domain holds the value types shared by the feed, the engine and
// the output sinks.
package domain

import (
	"github.com/ianfigueroa/Titan/pkg/quant"
)

// PriceLevel is one rung of the liquidity ladder. The price is exact
// fixed-point so equal quotes always collide on the same key; the quantity
// stays float64 because it only accumulates.
//
// In update records a quantity of exactly zero is the delete sentinel;
// stored book levels always have Qty > 0.
type PriceLevel struct {
	Price quant.Decimal
	Qty   float64
}

// DepthSnapshot is the full ladder state fetched over REST. It is consumed
// once when applied to the book.
type DepthSnapshot struct {
	LastUpdateID uint64
	EventTime    uint64 // ms, zero when the venue omits it
	Symbol       string
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// DepthUpdate is one incremental change set from the @depth stream.
// It advances the book's sequence iff PrevFinalUpdateID equals the book's
// last update id.
type DepthUpdate struct {
	EventTime         uint64 // ms
	TransactionTime   uint64 // ms
	Symbol            string
	FirstUpdateID     uint64 // U
	FinalUpdateID     uint64 // u
	PrevFinalUpdateID uint64 // pu
	Bids              []PriceLevel
	Asks              []PriceLevel
}

// AggTrade is one aggregated trade from the @aggTrade stream.
// IsBuyerMaker == false means the taker (aggressor) was the buyer.
type AggTrade struct {
	EventTime    uint64 // ms
	Symbol       string
	AggTradeID   uint64
	Price        float64
	Quantity     float64
	FirstTradeID uint64
	LastTradeID  uint64
	TradeTime    uint64 // ms
	IsBuyerMaker bool
}

// StreamMessage is the combined-stream wrapper: the stream name plus the
// raw inner JSON object.
type StreamMessage struct {
	Stream string
	Data   []byte
}
