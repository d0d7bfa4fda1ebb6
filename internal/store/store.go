// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"crosscheck/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, ticker string) (time.Time, error)

	// Trend reports
	SaveReport(ctx context.Context, report *models.TrendReport) error
	GetReport(ctx context.Context, id string) (*models.TrendReport, error)
	GetReports(ctx context.Context, filter ReportFilter) ([]models.TrendReport, error)

	// Golden crosses
	SaveGoldenCross(ctx context.Context, cross GoldenCross) error
	GetGoldenCrosses(ctx context.Context, filter CrossFilter) ([]GoldenCross, error)

	// Sync
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// ReportFilter represents filters for querying trend reports.
type ReportFilter struct {
	Title     string
	EventType models.EventType
	Since     time.Time
	Limit     int
}

// GoldenCross is a buy signal recorded by a scan.
type GoldenCross struct {
	Ticker     string    `json:"ticker"`
	Date       time.Time `json:"date"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CrossFilter represents filters for querying golden crosses.
type CrossFilter struct {
	Ticker string
	From   time.Time
	To     time.Time
	Limit  int
}
