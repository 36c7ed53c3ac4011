// Package output renders engine state for the console and the local
// broadcast endpoint.
package output

import (
	"encoding/json"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
)

type bookPayload struct {
	BestBid      float64 `json:"bestBid"`
	BestBidQty   float64 `json:"bestBidQty"`
	BestAsk      float64 `json:"bestAsk"`
	BestAskQty   float64 `json:"bestAskQty"`
	Spread       float64 `json:"spread"`
	SpreadBps    float64 `json:"spreadBps"`
	MidPrice     float64 `json:"midPrice"`
	Imbalance    float64 `json:"imbalance"`
	LastUpdateID uint64  `json:"lastUpdateId"`
}

type tradePayload struct {
	VWAP       float64 `json:"vwap"`
	BuyVolume  float64 `json:"buyVolume"`
	SellVolume float64 `json:"sellVolume"`
	NetFlow    float64 `json:"netFlow"`
	TradeCount int     `json:"tradeCount"`
}

type metricsPayload struct {
	Type      string       `json:"type"`
	Timestamp string       `json:"timestamp"`
	Book      bookPayload  `json:"book"`
	Trade     tradePayload `json:"trade"`
}

type alertPayload struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Deviation float64 `json:"deviation"`
}

type statusPayload struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Connected bool   `json:"connected"`
	State     string `json:"state"`
}

// FormatMetrics renders the combined book and trade-flow metrics message.
func FormatMetrics(book domain.BookMetrics, flow domain.TradeFlowMetrics) []byte {
	payload := metricsPayload{
		Type:      "metrics",
		Timestamp: isoTimestamp(),
		Book: bookPayload{
			BestBid:      book.BestBid.Float64(),
			BestBidQty:   book.BestBidQty,
			BestAsk:      book.BestAsk.Float64(),
			BestAskQty:   book.BestAskQty,
			Spread:       book.Spread.Float64(),
			SpreadBps:    book.SpreadBps,
			MidPrice:     book.MidPrice,
			Imbalance:    book.Imbalance,
			LastUpdateID: book.LastUpdateID,
		},
		Trade: tradePayload{
			VWAP:       flow.VWAP,
			BuyVolume:  flow.TotalBuyVolume,
			SellVolume: flow.TotalSellVolume,
			NetFlow:    flow.NetFlow,
			TradeCount: flow.TradeCount,
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

// FormatAlert renders a large-trade alert message.
func FormatAlert(alert domain.TradeAlert) []byte {
	side := "SELL"
	if alert.IsBuy {
		side = "BUY"
	}
	payload := alertPayload{
		Type:      "alert",
		Timestamp: isoTimestamp(),
		Side:      side,
		Price:     alert.Price,
		Quantity:  alert.Quantity,
		Deviation: alert.Deviation,
	}
	b, _ := json.Marshal(payload)
	return b
}

// FormatStatus renders a connection-status message.
func FormatStatus(connected bool, state string) []byte {
	payload := statusPayload{
		Type:      "status",
		Timestamp: isoTimestamp(),
		Connected: connected,
		State:     state,
	}
	b, _ := json.Marshal(payload)
	return b
}

// isoTimestamp is the wall-clock display timestamp: ISO-8601 UTC with
// millisecond precision.
func isoTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
