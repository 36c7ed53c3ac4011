// Package event defines the tagged messages carried on the ring from the
// feed goroutine to the engine goroutine.
package event

import (
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
)

// Kind tags a Message variant.
type Kind uint8

const (
	KindNone Kind = iota
	KindDepthUpdate
	KindAggTrade
	KindSnapshot
	KindConnectionLost
	KindConnectionRestored
	KindSequenceGap
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindDepthUpdate:
		return "DepthUpdate"
	case KindAggTrade:
		return "AggTrade"
	case KindSnapshot:
		return "Snapshot"
	case KindConnectionLost:
		return "ConnectionLost"
	case KindConnectionRestored:
		return "ConnectionRestored"
	case KindSequenceGap:
		return "SequenceGap"
	case KindShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Message is the tagged union stored in the ring by value. Exactly the
// payload fields named by Kind are set; the rest stay zero. Depth and Trade
// payloads come from the pool in this package so the steady-state path does
// not allocate per message.
type Message struct {
	Kind       Kind
	ReceivedAt time.Time

	Depth    *domain.DepthUpdate  // KindDepthUpdate
	Trade    *domain.AggTrade     // KindAggTrade
	Snapshot *domain.DepthSnapshot // KindSnapshot

	Reason string // KindConnectionLost

	Expected uint64 // KindSequenceGap
	Received uint64 // KindSequenceGap
}

// DepthUpdateMsg wraps a depth update with its receipt timestamp.
func DepthUpdateMsg(update *domain.DepthUpdate, at time.Time) Message {
	return Message{Kind: KindDepthUpdate, ReceivedAt: at, Depth: update}
}

// AggTradeMsg wraps an aggregated trade with its receipt timestamp.
func AggTradeMsg(trade *domain.AggTrade, at time.Time) Message {
	return Message{Kind: KindAggTrade, ReceivedAt: at, Trade: trade}
}

// SnapshotMsg wraps a depth snapshot with its receipt timestamp.
func SnapshotMsg(snapshot *domain.DepthSnapshot, at time.Time) Message {
	return Message{Kind: KindSnapshot, ReceivedAt: at, Snapshot: snapshot}
}

// ConnectionLostMsg reports a dropped upstream session.
func ConnectionLostMsg(reason string, at time.Time) Message {
	return Message{Kind: KindConnectionLost, ReceivedAt: at, Reason: reason}
}

// ConnectionRestoredMsg reports a re-established upstream session.
func ConnectionRestoredMsg(at time.Time) Message {
	return Message{Kind: KindConnectionRestored, ReceivedAt: at}
}

// SequenceGapMsg reports a detected gap in depth sequencing.
func SequenceGapMsg(expected, received uint64, at time.Time) Message {
	return Message{Kind: KindSequenceGap, ReceivedAt: at, Expected: expected, Received: received}
}

// ShutdownMsg tells the engine loop to exit.
func ShutdownMsg(at time.Time) Message {
	return Message{Kind: KindShutdown, ReceivedAt: at}
}
