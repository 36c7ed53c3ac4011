// Package engine is the single-threaded consumer of the message ring. It
// owns the order book, the trade-flow statistics and the sync state, and
// pushes rendered output to the sinks.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/internal/event"
	"github.com/ianfigueroa/Titan/internal/infra"
	"github.com/ianfigueroa/Titan/internal/orderbook"
	"github.com/ianfigueroa/Titan/internal/queue"
	"github.com/ianfigueroa/Titan/internal/trade"
)

// Engine pops messages from the ring and dispatches by tag. Run MUST
// execute in exactly one goroutine; the book and the stats have no
// internal locking and rely on that single-writer discipline.
type Engine struct {
	ring      *queue.SpscRing[event.Message]
	book      *orderbook.OrderBook
	flow      *trade.Flow
	requester domain.SnapshotRequester
	sinks     []domain.Sink

	// syncState is atomic only so status endpoints on other goroutines can
	// read it; the engine goroutine is the sole writer.
	syncState       atomic.Int32
	lastProcessedID uint64
	connected       bool

	emitInterval time.Duration
	lastEmit     time.Time
	forceEmit    bool
}

// New assembles the engine around its ring and collaborators.
func New(
	ring *queue.SpscRing[event.Message],
	book *orderbook.OrderBook,
	flow *trade.Flow,
	requester domain.SnapshotRequester,
	emitInterval time.Duration,
	sinks ...domain.Sink,
) *Engine {
	e := &Engine{
		ring:         ring,
		book:         book,
		flow:         flow,
		requester:    requester,
		sinks:        sinks,
		emitInterval: emitInterval,
		lastEmit:     time.Now().Add(-emitInterval), // allow immediate first emit
	}
	e.syncState.Store(int32(domain.SyncInitializing))
	return e
}

// SyncState returns the engine's synchronization state. Safe from any
// goroutine.
func (e *Engine) SyncState() domain.SyncState {
	return domain.SyncState(e.syncState.Load())
}

// LastProcessedID returns the last applied depth sequence id. Engine
// goroutine only.
func (e *Engine) LastProcessedID() uint64 {
	return e.lastProcessedID
}

// Connected reports the engine's view of the upstream session. Engine
// goroutine only.
func (e *Engine) Connected() bool {
	return e.connected
}

func (e *Engine) setSyncState(s domain.SyncState) {
	e.syncState.Store(int32(s))
}

// Run consumes the ring until a Shutdown message or context cancellation.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("ENGINE_PANIC", slog.Any("panic", r))
			e.DumpState("engine_panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		if ctx.Err() != nil {
			slog.Info("Engine stopping on context")
			return
		}

		msg, ok := e.ring.TryPop()
		if !ok {
			// Idle: periodic rate-limited emission, then yield briefly.
			e.emitMetrics()
			time.Sleep(time.Millisecond)
			continue
		}

		infra.GlobalMetrics.RecordMessage()
		if e.process(msg) {
			slog.Info("Engine stopping on shutdown message")
			return
		}
	}
}

// process dispatches one message. Returns true on Shutdown.
func (e *Engine) process(msg event.Message) bool {
	switch msg.Kind {
	case event.KindSnapshot:
		e.handleSnapshot(msg.Snapshot)
	case event.KindDepthUpdate:
		e.handleDepthUpdate(msg.Depth)
	case event.KindAggTrade:
		e.handleAggTrade(msg.Trade)
	case event.KindConnectionLost:
		e.handleConnectionLost(msg.Reason)
	case event.KindConnectionRestored:
		e.handleConnectionRestored()
	case event.KindSequenceGap:
		e.handleSequenceGap(msg.Expected, msg.Received)
	case event.KindShutdown:
		return true
	default:
		slog.Warn("Unknown message kind", slog.String("kind", msg.Kind.String()))
	}
	return false
}

func (e *Engine) handleSnapshot(snap *domain.DepthSnapshot) {
	slog.Info("Applying snapshot", slog.Uint64("lastUpdateId", snap.LastUpdateID))

	e.book.ApplySnapshot(snap)
	e.lastProcessedID = snap.LastUpdateID
	e.setSyncState(domain.SyncSynced)

	// Force an immediate emit: the engine's own limiter and any sink-side
	// limiter both step aside for the first post-sync metrics.
	e.forceEmit = true
	for _, s := range e.sinks {
		if f, ok := s.(domain.ForceEmitter); ok {
			f.ForceNext()
		}
	}
}

func (e *Engine) handleDepthUpdate(update *domain.DepthUpdate) {
	defer event.ReleaseDepthUpdate(update)

	if e.SyncState() != domain.SyncSynced {
		return // drop until synced
	}

	if e.lastProcessedID > 0 &&
		e.book.HasSequenceGap(update.FirstUpdateID, update.PrevFinalUpdateID) {
		slog.Warn("Sequence gap detected",
			slog.Uint64("expected", e.lastProcessedID),
			slog.Uint64("prevFinal", update.PrevFinalUpdateID))
		infra.GlobalMetrics.RecordSequenceGap()

		e.setSyncState(domain.SyncWaitingSnapshot)
		e.book.Clear()
		e.requester.RequestSnapshot()
		return
	}

	e.book.ApplyUpdate(update)
	e.lastProcessedID = update.FinalUpdateID
}

func (e *Engine) handleAggTrade(t *domain.AggTrade) {
	defer event.ReleaseAggTrade(t)

	e.flow.ProcessTrade(t)

	if alert, ok := e.flow.TakeAlert(); ok {
		infra.GlobalMetrics.RecordAlert()
		for _, s := range e.sinks {
			s.PublishAlert(*alert)
		}
	}
}

func (e *Engine) handleConnectionLost(reason string) {
	slog.Warn("Connection lost", slog.String("reason", reason))
	e.connected = false
	e.setSyncState(domain.SyncWaitingSnapshot)
	for _, s := range e.sinks {
		s.PublishStatus(false, "disconnected")
	}
}

func (e *Engine) handleConnectionRestored() {
	slog.Info("Connection restored")
	e.connected = true
	e.setSyncState(domain.SyncWaitingSnapshot)
	for _, s := range e.sinks {
		s.PublishStatus(true, "connected")
	}
}

func (e *Engine) handleSequenceGap(expected, received uint64) {
	slog.Warn("Sequence gap reported",
		slog.Uint64("expected", expected), slog.Uint64("received", received))
	infra.GlobalMetrics.RecordSequenceGap()

	e.setSyncState(domain.SyncWaitingSnapshot)
	e.book.Clear()
	e.requester.RequestSnapshot()
}

// emitMetrics pushes a metrics snapshot to all sinks, rate-limited to the
// configured interval. A fresh sync forces an immediate emit.
func (e *Engine) emitMetrics() {
	if e.SyncState() != domain.SyncSynced {
		return
	}

	now := time.Now()
	if !e.forceEmit && now.Sub(e.lastEmit) < e.emitInterval {
		return
	}
	e.forceEmit = false
	e.lastEmit = now

	book := e.book.Metrics()
	flow := e.flow.CurrentMetrics()
	for _, s := range e.sinks {
		s.PublishMetrics(book, flow)
	}
}

// DumpState writes the engine's view of the world to a file for
// post-mortem inspection.
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping engine state", slog.String("file", filename))

	data := struct {
		SyncState       string                  `json:"sync_state"`
		LastProcessedID uint64                  `json:"last_processed_id"`
		Book            domain.BookMetrics      `json:"book"`
		Flow            domain.TradeFlowMetrics `json:"flow"`
	}{
		SyncState:       e.SyncState().String(),
		LastProcessedID: e.lastProcessedID,
		Book:            e.book.Metrics(),
		Flow:            e.flow.CurrentMetrics(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
