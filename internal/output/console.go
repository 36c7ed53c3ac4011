package output

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
)

// Console renders metric lines and alerts through the structured logger.
// Metric lines are rate-limited internally; alerts and status changes pass
// straight through. Called only from the engine goroutine.
type Console struct {
	interval   time.Duration
	lastOutput time.Time
	forceNext  bool
}

// NewConsole creates a console sink emitting at most one metrics line per
// interval.
func NewConsole(interval time.Duration) *Console {
	return &Console{
		interval:   interval,
		lastOutput: time.Now().Add(-interval), // allow immediate first line
	}
}

// ForceNext makes the next PublishMetrics bypass the rate limit, e.g.
// right after a resync.
func (c *Console) ForceNext() {
	c.forceNext = true
}

// PublishMetrics prints the BID/ASK/SPREAD/IMB/VWAP/TRADES line.
func (c *Console) PublishMetrics(book domain.BookMetrics, flow domain.TradeFlowMetrics) {
	now := time.Now()
	if !c.forceNext && now.Sub(c.lastOutput) < c.interval {
		return
	}
	c.forceNext = false
	c.lastOutput = now

	slog.Info(fmt.Sprintf(
		"BID: %.2f (%.3f) | ASK: %.2f (%.3f) | SPREAD: %.1fbps | IMB: %+.0f%% | VWAP: %.2f | TRADES: %d",
		book.BestBid.Float64(), book.BestBidQty,
		book.BestAsk.Float64(), book.BestAskQty,
		book.SpreadBps,
		book.Imbalance*100,
		flow.VWAP,
		flow.TradeCount,
	))
}

// PublishAlert prints a large-trade alert.
func (c *Console) PublishAlert(alert domain.TradeAlert) {
	side := "SELL"
	if alert.IsBuy {
		side = "BUY"
	}
	slog.Warn(fmt.Sprintf("ALERT: LARGE %s %.3f @ %.2f (%.1f sigma)",
		side, alert.Quantity, alert.Price, alert.Deviation))
}

// PublishStatus prints connection transitions.
func (c *Console) PublishStatus(connected bool, state string) {
	if connected {
		slog.Info("Connection established", slog.String("state", state))
		c.forceNext = true
	} else {
		slog.Warn("Connection lost", slog.String("state", state))
	}
}
