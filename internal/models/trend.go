package models

import (
	"encoding/json"
	"time"

	apperrors "crosscheck/internal/errors"
)

// TrendRecord is the validation outcome of a single buy or sell event.
type TrendRecord struct {
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	AveragePrice  float64   `json:"average_price"`
	TerminalPrice float64   `json:"terminal_price"`
	WindowEnd     time.Time `json:"window_end"`
	WindowLen     int       `json:"window_len"`
	Truncated     bool      `json:"truncated,omitempty"`
	Valid         bool      `json:"valid"`
}

// TrendReport collects the records of one validation run.
type TrendReport struct {
	ID        string        `json:"id,omitempty"`
	Title     string        `json:"title"`
	EventType EventType     `json:"event_type"`
	Policy    string        `json:"policy"`
	Basis     string        `json:"basis"`
	Records   []TrendRecord `json:"records"`
	Skipped   int           `json:"skipped"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

// ValidCount returns the number of valid records.
func (r TrendReport) ValidCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Valid {
			n++
		}
	}
	return n
}

// PercentCorrect returns the fraction of valid records in [0, 1].
// A report without records has no defined rate and returns ErrUndefinedAggregate.
func (r TrendReport) PercentCorrect() (float64, error) {
	if len(r.Records) == 0 {
		return 0, apperrors.ErrUndefinedAggregate
	}
	return float64(r.ValidCount()) / float64(len(r.Records)), nil
}

// MarshalJSON adds the derived percent_correct (null when undefined).
func (r TrendReport) MarshalJSON() ([]byte, error) {
	type plain TrendReport
	var pct *float64
	if v, err := r.PercentCorrect(); err == nil {
		pct = &v
	}
	return json.Marshal(struct {
		plain
		Valid          int      `json:"valid"`
		PercentCorrect *float64 `json:"percent_correct"`
	}{plain(r), r.ValidCount(), pct})
}
