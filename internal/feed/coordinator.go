package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
	"github.com/ianfigueroa/Titan/internal/event"
	"github.com/ianfigueroa/Titan/internal/infra"
	"github.com/ianfigueroa/Titan/internal/queue"
)

// Stream is a server-push connection delivering opaque text frames.
type Stream interface {
	Connect(ctx context.Context, url string) error
	// ReadFrame blocks until the next frame or a session error.
	ReadFrame() ([]byte, error)
	Close()
}

// SnapshotFetcher issues a one-shot request and returns the response body.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// snapshotResult is what the fetch goroutine hands back to the session
// loop: a parsed snapshot or the failure that ended the attempt.
type snapshotResult struct {
	snap *domain.DepthSnapshot
	err  error
}

// Coordinator owns the feed synchronization protocol: it buffers depth
// updates while the REST snapshot is in flight, locates the bridging
// update, replays the rest, and goes live. Sequence gaps detected by the
// engine come back through RequestSnapshot.
//
// Run executes on the feed goroutine, which is the SOLE producer of the
// ring: frames, snapshot results and resync requests all funnel into the
// session loop over channels, and only that loop calls TryPush. The fetch
// goroutine never touches the ring; the engine goroutine only touches
// RequestSnapshot and State.
type Coordinator struct {
	cfg    *infra.Config
	stream Stream
	rest   SnapshotFetcher
	ring   *queue.SpscRing[event.Message]

	backoff *infra.Backoff
	state   atomic.Int32

	// buffer belongs to the session loop exclusively.
	buffer []*domain.DepthUpdate

	// snapshotReq carries engine resync requests into the session loop;
	// snapshotRes carries fetch results back from the fetch goroutine.
	snapshotReq chan struct{}
	snapshotRes chan snapshotResult

	// Single-flight guard: one snapshot fetch at a time, duplicates are
	// suppressed so rapid gap detection cannot fan out requests.
	snapshotInflight atomic.Bool
}

// NewCoordinator wires the sync state machine to its collaborators.
func NewCoordinator(cfg *infra.Config, stream Stream, rest SnapshotFetcher, ring *queue.SpscRing[event.Message]) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		stream: stream,
		rest:   rest,
		ring:   ring,
		backoff: infra.NewBackoff(
			cfg.ReconnectDelayInitial(),
			cfg.ReconnectDelayMax(),
			cfg.Network.ReconnectBackoffMultiplier,
			cfg.Network.ReconnectJitterFactor,
		),
		snapshotReq: make(chan struct{}, 1),
		snapshotRes: make(chan snapshotResult, 1),
	}
}

// State returns the current feed state.
func (c *Coordinator) State() domain.FeedState {
	return domain.FeedState(c.state.Load())
}

func (c *Coordinator) setState(s domain.FeedState) {
	old := domain.FeedState(c.state.Swap(int32(s)))
	if old != s {
		slog.Debug("Feed state changed",
			slog.String("from", old.String()), slog.String("to", s.String()))
	}
}

// Run drives the connect / sync / live / reconnect cycle until ctx is
// cancelled, then hands the engine a Shutdown message.
func (c *Coordinator) Run(ctx context.Context) {
	streamURL := StreamURL(c.cfg.Network.WSHost, c.cfg.Network.WSPort, c.cfg.SymbolLower())

	for ctx.Err() == nil {
		c.setState(domain.FeedConnecting)

		if err := c.stream.Connect(ctx, streamURL); err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("Stream connect failed",
				slog.Any("error", err), slog.Int("attempt", c.backoff.Attempts()+1))
			c.push(event.ConnectionLostMsg(err.Error(), time.Now()))
			c.setState(domain.FeedReconnecting)
			infra.GlobalMetrics.RecordReconnect()
			if !c.sleepBackoff(ctx) {
				break
			}
			continue
		}

		slog.Info("Stream connected", slog.String("symbol", c.cfg.SymbolLower()))
		c.backoff.Reset()

		c.runSession(ctx)
		c.stream.Close()
		if ctx.Err() != nil {
			break
		}

		c.push(event.ConnectionLostMsg("connection closed", time.Now()))
		c.setState(domain.FeedReconnecting)
		infra.GlobalMetrics.RecordReconnect()
		if !c.sleepBackoff(ctx) {
			break
		}
	}

	c.setState(domain.FeedDisconnected)
	c.pushShutdown()
}

// runSession serves one connected session: a reader goroutine feeds raw
// frames into the loop, which multiplexes them with snapshot results and
// resync requests. Every ring push happens here.
func (c *Coordinator) runSession(ctx context.Context) {
	c.releaseBuffer()
	c.drainSnapshotChannels()

	c.setState(domain.FeedWaitingSnapshot)
	c.push(event.ConnectionRestoredMsg(time.Now()))
	c.startSnapshotFetch(ctx)

	frames := make(chan []byte, 256)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			frame, err := c.stream.ReadFrame()
			if err != nil {
				select {
				case readErr <- err:
				case <-done:
				}
				return
			}
			select {
			case frames <- frame:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			if ctx.Err() == nil {
				slog.Warn("Stream read failed", slog.Any("error", err))
			}
			return

		case frame := <-frames:
			c.handleFrame(frame)

		case <-c.snapshotReq:
			c.setState(domain.FeedWaitingSnapshot)
			c.releaseBuffer()
			c.startSnapshotFetch(ctx)

		case res := <-c.snapshotRes:
			c.snapshotInflight.Store(false)
			if res.err != nil {
				if ctx.Err() != nil {
					return
				}
				// Reconnect through the backoff policy; the fresh session
				// re-fetches from scratch.
				slog.Error("Snapshot fetch failed", slog.Any("error", res.err))
				return
			}
			if !c.applySnapshot(res.snap) {
				// The buffer outran this snapshot; fetch a fresh one.
				slog.Warn("No bridging update for snapshot, re-fetching",
					slog.Uint64("lastUpdateId", res.snap.LastUpdateID))
				c.startSnapshotFetch(ctx)
			}
		}
	}
}

// handleFrame decodes one combined-stream frame. Decode failures drop the
// frame and keep the session.
func (c *Coordinator) handleFrame(frame []byte) {
	msg, err := ParseStreamEnvelope(frame)
	if err != nil {
		infra.GlobalMetrics.RecordDecodeError()
		slog.Warn("Bad stream frame", slog.Any("error", err))
		return
	}

	switch {
	case IsDepthStream(msg.Stream):
		c.handleDepthFrame(msg.Data)
	case IsAggTradeStream(msg.Stream):
		c.handleAggTradeFrame(msg.Data)
	}
}

func (c *Coordinator) handleDepthFrame(data []byte) {
	u := event.AcquireDepthUpdate()
	if err := ParseDepthUpdateInto(data, u); err != nil {
		event.ReleaseDepthUpdate(u)
		infra.GlobalMetrics.RecordDecodeError()
		slog.Warn("Bad depth update", slog.Any("error", err))
		return
	}

	switch c.State() {
	case domain.FeedLive:
		c.forwardDepth(u)
	case domain.FeedWaitingSnapshot, domain.FeedSyncing, domain.FeedConnecting:
		c.buffer = append(c.buffer, u)
	default:
		event.ReleaseDepthUpdate(u)
	}
}

func (c *Coordinator) handleAggTradeFrame(data []byte) {
	t := event.AcquireAggTrade()
	if err := ParseAggTradeInto(data, t); err != nil {
		event.ReleaseAggTrade(t)
		infra.GlobalMetrics.RecordDecodeError()
		slog.Warn("Bad aggTrade", slog.Any("error", err))
		return
	}

	// Trades are forwarded in every state.
	if !c.ring.TryPush(event.AggTradeMsg(t, time.Now())) {
		event.ReleaseAggTrade(t)
		infra.GlobalMetrics.RecordRingDrop()
	}
}

// forwardDepth pushes one update to the engine, dropping it when the ring
// is full. A dropped update surfaces later as a sequence gap, which the
// resync protocol recovers.
func (c *Coordinator) forwardDepth(u *domain.DepthUpdate) {
	if !c.ring.TryPush(event.DepthUpdateMsg(u, time.Now())) {
		event.ReleaseDepthUpdate(u)
		infra.GlobalMetrics.RecordRingDrop()
	}
}

// RequestSnapshot asks for a fresh snapshot after the engine detects a
// sequence gap. Safe to call from the engine goroutine: it only signals
// the session loop, which does the buffer reset and the fetch itself. A
// fetch already in flight absorbs the request.
func (c *Coordinator) RequestSnapshot() {
	if c.snapshotInflight.Load() {
		slog.Debug("Snapshot already in flight, ignoring request")
		return
	}

	slog.Info("Snapshot requested")
	c.setState(domain.FeedWaitingSnapshot)

	select {
	case c.snapshotReq <- struct{}{}:
	default: // a request is already pending
	}
}

// startSnapshotFetch launches the REST fetch off the session loop. The
// goroutine does network and parse work only and reports through
// snapshotRes; it never touches the ring or the buffer.
func (c *Coordinator) startSnapshotFetch(ctx context.Context) {
	if !c.snapshotInflight.CompareAndSwap(false, true) {
		return
	}

	depthURL := DepthURL(c.cfg.Network.RESTHost, c.cfg.Network.RESTPort, c.cfg.SymbolUpper(), c.cfg.Engine.DepthLimit)
	symbol := c.cfg.SymbolUpper()

	go func() {
		var res snapshotResult
		body, err := c.rest.Fetch(ctx, depthURL)
		if err != nil {
			res.err = err
		} else {
			res.snap, res.err = ParseDepthSnapshot(body, symbol)
		}

		select {
		case c.snapshotRes <- res:
		case <-ctx.Done():
			c.snapshotInflight.Store(false)
		}
	}()
}

// drainSnapshotChannels discards a stale request or result left over from
// a previous session.
func (c *Coordinator) drainSnapshotChannels() {
	select {
	case <-c.snapshotReq:
	default:
	}
	select {
	case <-c.snapshotRes:
		c.snapshotInflight.Store(false)
	default:
	}
}

// applySnapshot forwards the snapshot and replays buffered updates through
// the bridging algorithm. Returns false when a gap past the snapshot means
// a fresh one is needed. Session loop only.
//
// For each buffered update, in arrival order:
//  1. u <= lastUpdateId: stale, discard.
//  2. U <= lastUpdateId+1 <= u: the bridging update; forward it and
//     everything after it.
//  3. otherwise (U > lastUpdateId+1 before any bridge): lost updates that
//     no replay can supply; abort and re-fetch.
//
// A drained buffer without a bridge leaves the feed live: the engine's
// pu check catches any discontinuity on the next streamed update.
func (c *Coordinator) applySnapshot(snap *domain.DepthSnapshot) bool {
	c.setState(domain.FeedSyncing)

	buffered := c.buffer
	c.buffer = nil

	if !c.ring.TryPush(event.SnapshotMsg(snap, time.Now())) {
		// Without the snapshot the replay is meaningless; reconnect.
		infra.GlobalMetrics.RecordRingDrop()
		slog.Error("Ring full while applying snapshot")
		releaseAll(buffered)
		c.stream.Close()
		return true
	}

	last := snap.LastUpdateID
	slog.Info("Applying snapshot",
		slog.Uint64("lastUpdateId", last), slog.Int("buffered", len(buffered)))

	bridged := false
	for i, u := range buffered {
		if !bridged {
			if u.FinalUpdateID <= last {
				event.ReleaseDepthUpdate(u) // stale
				continue
			}
			if u.FirstUpdateID <= last+1 && last+1 <= u.FinalUpdateID {
				bridged = true
				slog.Debug("Found bridging update",
					slog.Uint64("U", u.FirstUpdateID), slog.Uint64("u", u.FinalUpdateID))
			} else {
				slog.Warn("Sync gap beyond snapshot",
					slog.Uint64("lastUpdateId", last), slog.Uint64("U", u.FirstUpdateID))
				releaseAll(buffered[i:])
				c.setState(domain.FeedWaitingSnapshot)
				return false
			}
		}
		c.forwardDepth(u)
	}

	c.setState(domain.FeedLive)
	slog.Info("Feed is live")
	return true
}

func (c *Coordinator) sleepBackoff(ctx context.Context) bool {
	delay := c.backoff.NextDelay()
	slog.Info("Reconnecting",
		slog.Duration("delay", delay), slog.Int("attempt", c.backoff.Attempts()))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *Coordinator) push(msg event.Message) {
	if !c.ring.TryPush(msg) {
		infra.GlobalMetrics.RecordRingDrop()
	}
}

// pushShutdown delivers the Shutdown message, waiting out transient ring
// pressure so the engine reliably sees it.
func (c *Coordinator) pushShutdown() {
	for i := 0; i < 1000; i++ {
		if c.ring.TryPush(event.ShutdownMsg(time.Now())) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	slog.Error("Failed to deliver shutdown message, ring saturated")
}

func (c *Coordinator) releaseBuffer() {
	releaseAll(c.buffer)
	c.buffer = nil
}

func releaseAll(updates []*domain.DepthUpdate) {
	for _, u := range updates {
		event.ReleaseDepthUpdate(u)
	}
}
