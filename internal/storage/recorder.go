// Package storage persists fired alerts and periodic metric snapshots to
// SQLite for later inspection.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ianfigueroa/Titan/internal/domain"
)

// AlertRecord is one persisted large-trade alert.
type AlertRecord struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	Side      string
	Price     float64
	Quantity  float64
	Deviation float64
}

// MetricsRecord is one persisted metrics snapshot row.
type MetricsRecord struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	BestBid      float64
	BestBidQty   float64
	BestAsk      float64
	BestAskQty   float64
	Spread       float64
	SpreadBps    float64
	MidPrice     float64
	Imbalance    float64
	LastUpdateID uint64
	VWAP         float64
	BuyVolume    float64
	SellVolume   float64
	NetFlow      float64
	TradeCount   int
}

type record struct {
	alert   *AlertRecord
	metrics *MetricsRecord
}

// Recorder implements the engine's sink interface over a SQLite database.
// Writes go through a buffered channel drained by a worker goroutine, so
// the engine never waits on the database; records are dropped when the
// buffer is full.
type Recorder struct {
	db      *gorm.DB
	pending chan record
	done    chan struct{}
}

// NewRecorder opens (or creates) the database at path and migrates the
// schema.
func NewRecorder(path string) (*Recorder, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open recording database: %w", err)
	}

	if err := db.AutoMigrate(&AlertRecord{}, &MetricsRecord{}); err != nil {
		return nil, fmt.Errorf("migrate recording database: %w", err)
	}

	return &Recorder{
		db:      db,
		pending: make(chan record, 1024),
		done:    make(chan struct{}),
	}, nil
}

// Run drains the write buffer until ctx is cancelled, then flushes what is
// already queued.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			// Flush whatever is still buffered.
			for {
				select {
				case rec := <-r.pending:
					r.write(rec)
				default:
					return
				}
			}
		case rec := <-r.pending:
			r.write(rec)
		}
	}
}

// Wait blocks until Run has exited.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) write(rec record) {
	var err error
	switch {
	case rec.alert != nil:
		err = r.db.Create(rec.alert).Error
	case rec.metrics != nil:
		err = r.db.Create(rec.metrics).Error
	}
	if err != nil {
		slog.Error("Recorder write failed", slog.Any("error", err))
	}
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.pending <- rec:
	default:
		slog.Debug("Recorder buffer full, dropping record")
	}
}

// PublishMetrics queues one metrics row.
func (r *Recorder) PublishMetrics(book domain.BookMetrics, flow domain.TradeFlowMetrics) {
	r.enqueue(record{metrics: &MetricsRecord{
		CreatedAt:    time.Now(),
		BestBid:      book.BestBid.Float64(),
		BestBidQty:   book.BestBidQty,
		BestAsk:      book.BestAsk.Float64(),
		BestAskQty:   book.BestAskQty,
		Spread:       book.Spread.Float64(),
		SpreadBps:    book.SpreadBps,
		MidPrice:     book.MidPrice,
		Imbalance:    book.Imbalance,
		LastUpdateID: book.LastUpdateID,
		VWAP:         flow.VWAP,
		BuyVolume:    flow.TotalBuyVolume,
		SellVolume:   flow.TotalSellVolume,
		NetFlow:      flow.NetFlow,
		TradeCount:   flow.TradeCount,
	}})
}

// PublishAlert queues one alert row.
func (r *Recorder) PublishAlert(alert domain.TradeAlert) {
	side := "SELL"
	if alert.IsBuy {
		side = "BUY"
	}
	r.enqueue(record{alert: &AlertRecord{
		CreatedAt: alert.Timestamp,
		Side:      side,
		Price:     alert.Price,
		Quantity:  alert.Quantity,
		Deviation: alert.Deviation,
	}})
}

// PublishStatus is a no-op; connection transitions are not recorded.
func (r *Recorder) PublishStatus(connected bool, state string) {}

// RecentAlerts returns up to limit alerts, newest first.
func (r *Recorder) RecentAlerts(limit int) ([]AlertRecord, error) {
	var alerts []AlertRecord
	err := r.db.Order("id desc").Limit(limit).Find(&alerts).Error
	return alerts, err
}

// RecentMetrics returns up to limit metric rows, newest first.
func (r *Recorder) RecentMetrics(limit int) ([]MetricsRecord, error) {
	var rows []MetricsRecord
	err := r.db.Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}
