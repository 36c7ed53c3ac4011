package trade

import (
	"github.com/ianfigueroa/Titan/internal/domain"
)

// Flow aggregates trades into VWAP, buy/sell volume and alert detection.
// Owned exclusively by the engine goroutine.
type Flow struct {
	stats    *RollingStats
	detector *AlertDetector

	totalBuyVolume  float64
	totalSellVolume float64
	lastAlert       *domain.TradeAlert
}

// NewFlow creates a trade-flow aggregator.
func NewFlow(vwapWindow int, largeTradeStdDevs float64) *Flow {
	return &Flow{
		stats:    NewRollingStats(vwapWindow),
		detector: NewAlertDetector(largeTradeStdDevs),
	}
}

// ProcessTrade folds one aggregated trade in and returns updated metrics.
// The alert check runs against the statistics that already include the
// trade itself, mirroring the order of the stats update.
func (f *Flow) ProcessTrade(t *domain.AggTrade) domain.TradeFlowMetrics {
	f.stats.AddTrade(t.Price, t.Quantity)

	// is_buyer_maker = false means the taker (aggressor) was the buyer.
	isBuy := !t.IsBuyerMaker
	if isBuy {
		f.totalBuyVolume += t.Quantity
	} else {
		f.totalSellVolume += t.Quantity
	}

	if alert, ok := f.detector.CheckTrade(
		t.Price,
		t.Quantity,
		isBuy,
		f.stats.RollingAvgSize(),
		f.stats.RollingStdDev(),
	); ok {
		f.lastAlert = &alert
	}

	return f.CurrentMetrics()
}

// CurrentMetrics returns the metrics without processing a new trade.
func (f *Flow) CurrentMetrics() domain.TradeFlowMetrics {
	return domain.TradeFlowMetrics{
		VWAP:            f.stats.VWAP(),
		TotalBuyVolume:  f.totalBuyVolume,
		TotalSellVolume: f.totalSellVolume,
		NetFlow:         f.totalBuyVolume - f.totalSellVolume,
		TradeCount:      f.stats.TradeCount(),
		LastAlert:       f.lastAlert,
	}
}

// TakeAlert returns the most recent alert once and clears it, so a single
// alert is not re-emitted on every subsequent metrics read.
func (f *Flow) TakeAlert() (*domain.TradeAlert, bool) {
	if f.lastAlert == nil {
		return nil, false
	}
	a := f.lastAlert
	f.lastAlert = nil
	return a, true
}

// Reset clears all rolling state and volumes.
func (f *Flow) Reset() {
	f.stats.Clear()
	f.totalBuyVolume = 0
	f.totalSellVolume = 0
	f.lastAlert = nil
}
