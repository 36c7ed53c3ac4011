package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/internal/event"
	"github.com/ianfigueroa/Titan/internal/orderbook"
	"github.com/ianfigueroa/Titan/internal/queue"
	"github.com/ianfigueroa/Titan/internal/trade"
	"github.com/ianfigueroa/Titan/pkg/quant"
)

type fakeSink struct {
	mu         sync.Mutex
	metrics    []domain.BookMetrics
	alerts     []domain.TradeAlert
	statuses   []string
	forceCalls int
}

func (s *fakeSink) ForceNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceCalls++
}

func (s *fakeSink) PublishMetrics(book domain.BookMetrics, flow domain.TradeFlowMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, book)
}

func (s *fakeSink) PublishAlert(alert domain.TradeAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
}

func (s *fakeSink) PublishStatus(connected bool, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, state)
}

type fakeRequester struct {
	calls int
}

func (r *fakeRequester) RequestSnapshot() { r.calls++ }

func newTestEngine(t *testing.T) (*Engine, *queue.SpscRing[event.Message], *fakeSink, *fakeRequester) {
	t.Helper()
	ring, err := queue.NewSpscRing[event.Message](64)
	if err != nil {
		t.Fatal(err)
	}
	sink := &fakeSink{}
	req := &fakeRequester{}
	e := New(ring, orderbook.New(5), trade.NewFlow(100, 2.0), req, 10*time.Millisecond, sink)
	return e, ring, sink, req
}

func level(price string, qty float64) domain.PriceLevel {
	return domain.PriceLevel{Price: quant.MustParse(price), Qty: qty}
}

func snapshot1000() *domain.DepthSnapshot {
	return &domain.DepthSnapshot{
		LastUpdateID: 1000,
		Bids:         []domain.PriceLevel{level("42150.50", 1.5), level("42149.00", 2.0)},
		Asks:         []domain.PriceLevel{level("42151.00", 1.0), level("42152.00", 1.5)},
	}
}

func TestEngine_SnapshotSyncs(t *testing.T) {
	e, _, sink, _ := newTestEngine(t)

	if e.SyncState() != domain.SyncInitializing {
		t.Fatalf("initial state = %s", e.SyncState())
	}

	e.handleSnapshot(snapshot1000())

	if e.SyncState() != domain.SyncSynced {
		t.Errorf("state = %s; want Synced", e.SyncState())
	}
	if e.LastProcessedID() != 1000 {
		t.Errorf("lastProcessedID = %d; want 1000", e.LastProcessedID())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.forceCalls != 1 {
		t.Errorf("sink ForceNext calls = %d; want 1 (forced post-sync emit)", sink.forceCalls)
	}
}

func TestEngine_DropsUpdatesUntilSynced(t *testing.T) {
	e, _, _, req := newTestEngine(t)

	u := &domain.DepthUpdate{FinalUpdateID: 1001, PrevFinalUpdateID: 1000}
	e.handleDepthUpdate(u)

	if e.LastProcessedID() != 0 {
		t.Error("update before sync must be dropped")
	}
	if req.calls != 0 {
		t.Error("dropped pre-sync update must not trigger a re-fetch")
	}
}

func TestEngine_BridgedReplayEndsSynced(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	e.handleSnapshot(snapshot1000())
	e.handleDepthUpdate(&domain.DepthUpdate{
		FirstUpdateID: 1000, FinalUpdateID: 1001, PrevFinalUpdateID: 1000,
	})
	e.handleDepthUpdate(&domain.DepthUpdate{
		FirstUpdateID: 1002, FinalUpdateID: 1005, PrevFinalUpdateID: 1001,
	})

	if e.SyncState() != domain.SyncSynced {
		t.Errorf("state = %s; want Synced", e.SyncState())
	}
	if e.LastProcessedID() != 1005 {
		t.Errorf("lastProcessedID = %d; want 1005", e.LastProcessedID())
	}
}

func TestEngine_SequenceGapTriggersResync(t *testing.T) {
	e, _, _, req := newTestEngine(t)

	e.handleSnapshot(snapshot1000())

	// U=1010, u=1010, pu=1005 while the book sits at 1000.
	e.handleDepthUpdate(&domain.DepthUpdate{
		FirstUpdateID: 1010, FinalUpdateID: 1010, PrevFinalUpdateID: 1005,
	})

	if e.SyncState() != domain.SyncWaitingSnapshot {
		t.Errorf("state = %s; want WaitingSnapshot", e.SyncState())
	}
	if req.calls != 1 {
		t.Errorf("RequestSnapshot calls = %d; want 1", req.calls)
	}
	if e.book.BidLevels() != 0 || e.book.AskLevels() != 0 {
		t.Error("book must be cleared on gap")
	}
}

func TestEngine_BridgingUpdateNotAGap(t *testing.T) {
	e, _, _, req := newTestEngine(t)
	e.handleSnapshot(snapshot1000())

	// Contiguous update deleting the best bid.
	e.handleDepthUpdate(&domain.DepthUpdate{
		FirstUpdateID: 1001, FinalUpdateID: 1002, PrevFinalUpdateID: 1000,
		Bids: []domain.PriceLevel{level("42150.50", 0)},
	})

	if req.calls != 0 {
		t.Error("contiguous update must not trigger a re-fetch")
	}
	m := e.book.Metrics()
	if m.BestBid != quant.MustParse("42149.00") {
		t.Errorf("best bid = %s; want 42149 after delete", m.BestBid)
	}
}

func TestEngine_AlertRoutedToSinks(t *testing.T) {
	e, _, sink, _ := newTestEngine(t)

	for i := 0; i < 5; i++ {
		e.handleAggTrade(&domain.AggTrade{Price: 42150, Quantity: 1})
	}
	e.handleAggTrade(&domain.AggTrade{Price: 42150, Quantity: 100, IsBuyerMaker: false})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d; want 1", len(sink.alerts))
	}
	if !sink.alerts[0].IsBuy || sink.alerts[0].Deviation <= 2 {
		t.Errorf("alert = %+v", sink.alerts[0])
	}
}

func TestEngine_ConnectionEventsUpdateStatus(t *testing.T) {
	e, _, sink, _ := newTestEngine(t)
	e.handleSnapshot(snapshot1000())

	e.handleConnectionLost("read timeout")
	if e.SyncState() != domain.SyncWaitingSnapshot {
		t.Error("lost connection must leave Synced")
	}

	e.handleConnectionRestored()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.statuses) != 2 || sink.statuses[0] != "disconnected" || sink.statuses[1] != "connected" {
		t.Errorf("statuses = %v", sink.statuses)
	}
}

func TestEngine_RunStopsOnShutdown(t *testing.T) {
	e, ring, sink, _ := newTestEngine(t)

	ring.TryPush(event.SnapshotMsg(snapshot1000(), time.Now()))
	ring.TryPush(event.ShutdownMsg(time.Now()))

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on Shutdown")
	}

	if e.SyncState() != domain.SyncSynced {
		t.Error("snapshot before shutdown should have been applied")
	}
	_ = sink
}

func TestEngine_EmitRateLimited(t *testing.T) {
	e, ring, sink, _ := newTestEngine(t)
	ring.TryPush(event.SnapshotMsg(snapshot1000(), time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	sink.mu.Lock()
	n := len(sink.metrics)
	sink.mu.Unlock()

	// Interval 10ms over ~100ms: roughly ten emissions, never hundreds.
	if n < 2 {
		t.Errorf("metric emissions = %d; want a few", n)
	}
	if n > 30 {
		t.Errorf("metric emissions = %d; rate limit not applied", n)
	}
}
