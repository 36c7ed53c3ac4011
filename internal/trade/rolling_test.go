package trade

import (
	"math"
	"testing"
)

func TestRollingStats_WindowSlide(t *testing.T) {
	r := NewRollingStats(3)

	r.AddTrade(100, 1)
	r.AddTrade(200, 1)
	r.AddTrade(300, 1)
	r.AddTrade(400, 1) // evicts (100, 1)

	if got := r.VWAP(); got != 300 {
		t.Errorf("VWAP = %v; want 300", got)
	}
	if got := r.TradeCount(); got != 3 {
		t.Errorf("TradeCount = %d; want 3", got)
	}
	if got := r.TotalVolume(); got != 3 {
		t.Errorf("TotalVolume = %v; want 3", got)
	}
	if got := r.RollingAvgSize(); got != 1 {
		t.Errorf("RollingAvgSize = %v; want 1", got)
	}
	if got := r.RollingStdDev(); got != 0 {
		t.Errorf("RollingStdDev = %v; want 0 for constant sizes", got)
	}
}

func TestRollingStats_WelfordAfterEviction(t *testing.T) {
	r := NewRollingStats(3)

	// Window ends as sizes {2, 3, 4}: mean 3, population std sqrt(2/3).
	r.AddTrade(100, 1)
	r.AddTrade(200, 2)
	r.AddTrade(300, 3)
	r.AddTrade(400, 4)

	if got := r.RollingAvgSize(); math.Abs(got-3) > 1e-9 {
		t.Errorf("RollingAvgSize = %v; want 3", got)
	}
	if got := r.RollingStdDev(); math.Abs(got-0.8165) > 0.0001 {
		t.Errorf("RollingStdDev = %v; want ~0.8165", got)
	}

	// VWAP over the surviving window.
	want := (200.0*2 + 300*3 + 400*4) / 9.0
	if got := r.VWAP(); math.Abs(got-want) > 1e-9 {
		t.Errorf("VWAP = %v; want %v", got, want)
	}
}

func TestRollingStats_MatchesDirectComputation(t *testing.T) {
	// Within the window the online stats must equal the direct formulas.
	r := NewRollingStats(100)

	prices := []float64{42150.5, 42151, 42149.75, 42150, 42152.25}
	qtys := []float64{0.5, 1.25, 2, 0.75, 3.5}

	var sumPQ, sumQ float64
	for i := range prices {
		r.AddTrade(prices[i], qtys[i])
		sumPQ += prices[i] * qtys[i]
		sumQ += qtys[i]
	}

	if got, want := r.VWAP(), sumPQ/sumQ; math.Abs(got-want) > 1e-9 {
		t.Errorf("VWAP = %v; want %v", got, want)
	}

	mean := sumQ / float64(len(qtys))
	var variance float64
	for _, q := range qtys {
		variance += (q - mean) * (q - mean)
	}
	variance /= float64(len(qtys))

	if got := r.RollingAvgSize(); math.Abs(got-mean) > 1e-9 {
		t.Errorf("RollingAvgSize = %v; want %v", got, mean)
	}
	if got := r.RollingStdDev(); math.Abs(got-math.Sqrt(variance)) > 1e-9 {
		t.Errorf("RollingStdDev = %v; want %v", got, math.Sqrt(variance))
	}
}

func TestRollingStats_Empty(t *testing.T) {
	r := NewRollingStats(10)
	if r.VWAP() != 0 || r.RollingAvgSize() != 0 || r.RollingStdDev() != 0 {
		t.Error("empty stats must read zero")
	}

	r.AddTrade(100, 1)
	if r.RollingStdDev() != 0 {
		t.Error("std dev with a single sample must be zero")
	}
}

func TestRollingStats_Clear(t *testing.T) {
	r := NewRollingStats(4)
	r.AddTrade(100, 2)
	r.AddTrade(105, 4)
	r.Clear()

	if r.TradeCount() != 0 || r.VWAP() != 0 || r.RollingAvgSize() != 0 {
		t.Error("Clear should reset all state")
	}

	r.AddTrade(50, 1)
	if r.VWAP() != 50 {
		t.Errorf("VWAP after Clear = %v; want 50", r.VWAP())
	}
}

func TestRollingStats_LongSlide_NoDrift(t *testing.T) {
	r := NewRollingStats(8)

	// Constant sizes through many evictions must keep std dev pinned at
	// zero; the m2 clamp absorbs the floating residue.
	for i := 0; i < 10_000; i++ {
		r.AddTrade(40000+float64(i%7), 0.25)
	}
	if got := r.RollingStdDev(); got > 1e-6 {
		t.Errorf("RollingStdDev drifted to %v", got)
	}
	if got := r.RollingAvgSize(); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("RollingAvgSize drifted to %v", got)
	}
}
