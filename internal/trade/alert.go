package trade

import (
	"time"

	"github.com/ianfigueroa/Titan/internal/domain"
)

// AlertDetector flags trades whose size exceeds the rolling mean by more
// than threshold standard deviations. Only positive deviations alert.
type AlertDetector struct {
	threshold float64
}

// NewAlertDetector creates a detector. threshold is in standard deviations,
// e.g. 2.0.
func NewAlertDetector(threshold float64) *AlertDetector {
	return &AlertDetector{threshold: threshold}
}

// CheckTrade returns an alert when (qty - avg) / stdDev exceeds the
// threshold. A zero stdDev never alerts.
func (d *AlertDetector) CheckTrade(price, qty float64, isBuy bool, rollingAvg, rollingStdDev float64) (domain.TradeAlert, bool) {
	if rollingStdDev <= 0 {
		return domain.TradeAlert{}, false
	}

	deviation := (qty - rollingAvg) / rollingStdDev
	if deviation <= d.threshold {
		return domain.TradeAlert{}, false
	}

	return domain.TradeAlert{
		Price:     price,
		Quantity:  qty,
		IsBuy:     isBuy,
		Deviation: deviation,
		Timestamp: time.Now(),
	}, true
}

// Threshold returns the configured threshold.
func (d *AlertDetector) Threshold() float64 {
	return d.threshold
}
