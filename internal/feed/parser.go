// Package feed ingests the Binance combined stream: wire decoding, the
// snapshot/bridge synchronization state machine, and the transports.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/pkg/quant"
)

// Wire shapes. Prices and quantities arrive as ASCII decimal strings.

type streamEnvelopeWire struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthUpdateWire struct {
	EventType         string     `json:"e"`
	EventTime         uint64     `json:"E"`
	TransactionTime   uint64     `json:"T"`
	Symbol            string     `json:"s"`
	FirstUpdateID     uint64     `json:"U"`
	FinalUpdateID     uint64     `json:"u"`
	PrevFinalUpdateID uint64     `json:"pu"`
	Bids              [][]string `json:"b"`
	Asks              [][]string `json:"a"`
}

type aggTradeWire struct {
	EventType    string `json:"e"`
	EventTime    uint64 `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   uint64 `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID uint64 `json:"f"`
	LastTradeID  uint64 `json:"l"`
	TradeTime    uint64 `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type depthSnapshotWire struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	EventTime    uint64     `json:"E"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// ParseStreamEnvelope splits a combined-stream frame into its stream name
// and inner payload.
func ParseStreamEnvelope(data []byte) (domain.StreamMessage, error) {
	var wire streamEnvelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.StreamMessage{}, fmt.Errorf("%w: envelope: %v", domain.ErrDecode, err)
	}
	if wire.Stream == "" || len(wire.Data) == 0 {
		return domain.StreamMessage{}, fmt.Errorf("%w: envelope missing stream or data", domain.ErrDecode)
	}
	return domain.StreamMessage{Stream: wire.Stream, Data: wire.Data}, nil
}

// ParseDepthUpdateInto decodes a @depth payload into out, reusing out's
// level slices. Pure: no I/O, no shared state.
func ParseDepthUpdateInto(data []byte, out *domain.DepthUpdate) error {
	var wire depthUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: depth update: %v", domain.ErrDecode, err)
	}
	if wire.EventType != "depthUpdate" {
		return fmt.Errorf("%w: unexpected event type %q", domain.ErrDecode, wire.EventType)
	}

	bids, err := parseLevels(wire.Bids, out.Bids[:0])
	if err != nil {
		return fmt.Errorf("%w: depth bids: %v", domain.ErrDecode, err)
	}
	asks, err := parseLevels(wire.Asks, out.Asks[:0])
	if err != nil {
		return fmt.Errorf("%w: depth asks: %v", domain.ErrDecode, err)
	}

	out.EventTime = wire.EventTime
	out.TransactionTime = wire.TransactionTime
	if out.TransactionTime == 0 {
		out.TransactionTime = wire.EventTime
	}
	out.Symbol = wire.Symbol
	out.FirstUpdateID = wire.FirstUpdateID
	out.FinalUpdateID = wire.FinalUpdateID
	out.PrevFinalUpdateID = wire.PrevFinalUpdateID
	out.Bids = bids
	out.Asks = asks
	return nil
}

// ParseDepthUpdate is ParseDepthUpdateInto with a fresh destination.
func ParseDepthUpdate(data []byte) (*domain.DepthUpdate, error) {
	out := &domain.DepthUpdate{}
	if err := ParseDepthUpdateInto(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseAggTradeInto decodes an @aggTrade payload into out.
func ParseAggTradeInto(data []byte, out *domain.AggTrade) error {
	var wire aggTradeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: aggTrade: %v", domain.ErrDecode, err)
	}
	if wire.EventType != "aggTrade" {
		return fmt.Errorf("%w: unexpected event type %q", domain.ErrDecode, wire.EventType)
	}

	price, err := strconv.ParseFloat(wire.Price, 64)
	if err != nil {
		return fmt.Errorf("%w: aggTrade price %q", domain.ErrDecode, wire.Price)
	}
	qty, err := strconv.ParseFloat(wire.Quantity, 64)
	if err != nil {
		return fmt.Errorf("%w: aggTrade qty %q", domain.ErrDecode, wire.Quantity)
	}

	out.EventTime = wire.EventTime
	out.Symbol = wire.Symbol
	out.AggTradeID = wire.AggTradeID
	out.Price = price
	out.Quantity = qty
	out.FirstTradeID = wire.FirstTradeID
	out.LastTradeID = wire.LastTradeID
	out.TradeTime = wire.TradeTime
	out.IsBuyerMaker = wire.IsBuyerMaker
	return nil
}

// ParseAggTrade is ParseAggTradeInto with a fresh destination.
func ParseAggTrade(data []byte) (*domain.AggTrade, error) {
	out := &domain.AggTrade{}
	if err := ParseAggTradeInto(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseDepthSnapshot decodes a REST depth snapshot body.
func ParseDepthSnapshot(data []byte, symbol string) (*domain.DepthSnapshot, error) {
	var wire depthSnapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", domain.ErrDecode, err)
	}
	if wire.LastUpdateID == 0 {
		return nil, fmt.Errorf("%w: snapshot missing lastUpdateId", domain.ErrDecode)
	}

	bids, err := parseLevels(wire.Bids, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot bids: %v", domain.ErrDecode, err)
	}
	asks, err := parseLevels(wire.Asks, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot asks: %v", domain.ErrDecode, err)
	}

	return &domain.DepthSnapshot{
		LastUpdateID: wire.LastUpdateID,
		EventTime:    wire.EventTime,
		Symbol:       symbol,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

// parseLevels decodes ["price", "qty"] pairs into dst. Prices parse as
// fixed-point for exact key matching; quantities stay float64.
func parseLevels(raw [][]string, dst []domain.PriceLevel) ([]domain.PriceLevel, error) {
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("level with %d fields", len(pair))
		}
		price, err := quant.Parse(pair[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %v", pair[0], err)
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("qty %q: %v", pair[1], err)
		}
		dst = append(dst, domain.PriceLevel{Price: price, Qty: qty})
	}
	return dst, nil
}
