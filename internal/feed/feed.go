// Package feed provides daily price sources for the crossover marker.
package feed

import (
	"context"
	"sort"
	"strings"
	"time"

	"crosscheck/internal/models"
)

// Source returns daily candles for a ticker, oldest first. Zero from or to leaves
// that side of the range open.
type Source interface {
	Name() string
	Bars(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)
}

// NormalizeTicker upper-cases a ticker and maps share-class dots to dashes
// (BRK.B becomes BRK-B), the form used by CSV files and the cache.
func NormalizeTicker(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(ticker)), ".", "-")
}

// inRange reports whether t falls inside the optional [from, to] range, by date.
func inRange(t, from, to time.Time) bool {
	d := t.Format(models.DateLayout)
	if !from.IsZero() && d < from.Format(models.DateLayout) {
		return false
	}
	if !to.IsZero() && d > to.Format(models.DateLayout) {
		return false
	}
	return true
}

func sortCandles(candles []models.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}
