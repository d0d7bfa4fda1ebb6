package trend

import (
	"fmt"
	"strings"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

// Basis selects which window price is compared to the event price.
type Basis string

const (
	// BasisAverage compares the mean adjusted close over the window.
	BasisAverage Basis = "average"
	// BasisTerminal compares the last adjusted close of the window.
	BasisTerminal Basis = "terminal"
)

// ParseBasis parses a comparison basis; empty means average.
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisAverage:
		return BasisAverage, nil
	case BasisTerminal:
		return BasisTerminal, nil
	default:
		return "", fmt.Errorf("unknown comparison basis %q (must be average or terminal)", s)
	}
}

// Classify builds the trend record of one event.
//
// A buy is valid when the window price is strictly above the buy price; a sell is
// valid when it is strictly below the sell price. Equality is never valid.
// An empty window cannot be averaged and returns ErrInvalidWindow.
func Classify(event models.PriceRow, window Window, eventType models.EventType, basis Basis) (models.TrendRecord, error) {
	if window.Len() == 0 {
		return models.TrendRecord{}, fmt.Errorf("event on %s: %w", event.Date.Format(models.DateLayout), apperrors.ErrInvalidWindow)
	}
	if !eventType.Valid() {
		return models.TrendRecord{}, fmt.Errorf("classify: unknown event type %q", eventType)
	}

	last := window.Rows[window.Len()-1]
	rec := models.TrendRecord{
		Date:          event.Date,
		Price:         event.AdjClose,
		AveragePrice:  averagePrice(window.Rows),
		TerminalPrice: last.AdjClose,
		WindowEnd:     last.Date,
		WindowLen:     window.Len(),
		Truncated:     window.Truncated,
	}

	compared := rec.AveragePrice
	if basis == BasisTerminal {
		compared = rec.TerminalPrice
	}

	switch eventType {
	case models.EventBuy:
		rec.Valid = compared > rec.Price
	case models.EventSell:
		rec.Valid = compared < rec.Price
	}
	return rec, nil
}

// averagePrice is the arithmetic mean of adjusted closes; rows must be non-empty.
func averagePrice(rows []models.PriceRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.AdjClose
	}
	return total / float64(len(rows))
}
