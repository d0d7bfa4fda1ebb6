// Package models provides domain models for crossover signal validation.
package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date layout used across event logs and price files.
const DateLayout = "2006-01-02"

// EventType represents the side of a crossover event.
type EventType string

const (
	EventBuy  EventType = "buy"
	EventSell EventType = "sell"
)

// Opposite returns the other event type.
func (e EventType) Opposite() EventType {
	if e == EventBuy {
		return EventSell
	}
	return EventBuy
}

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	return e == EventBuy || e == EventSell
}

// ParseEventType parses "buy"/"sell" (also "golden"/"death").
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "buy", "golden", "golden_cross":
		return EventBuy, nil
	case "sell", "death", "death_cross":
		return EventSell, nil
	default:
		return "", fmt.Errorf("unknown event type %q (must be buy or sell)", s)
	}
}

// Candle represents daily OHLCV data.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    int64
}

// Price returns the adjusted close, falling back to close.
func (c Candle) Price() float64 {
	if c.AdjClose > 0 {
		return c.AdjClose
	}
	return c.Close
}

// PriceRow is one daily observation of an event log.
type PriceRow struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adjclose"`
	Buy      bool      `json:"buy,omitempty"`
	Sell     bool      `json:"sell,omitempty"`
}

// Has reports whether the row carries the marker for the given event type.
func (r PriceRow) Has(e EventType) bool {
	switch e {
	case EventBuy:
		return r.Buy
	case EventSell:
		return r.Sell
	}
	return false
}

// EventLog is an ordered sequence of price rows with buy/sell markers.
type EventLog struct {
	Title string
	Rows  []PriceRow
}

// Len returns the number of rows.
func (l EventLog) Len() int {
	return len(l.Rows)
}

// Count returns how many rows carry the given marker.
func (l EventLog) Count(e EventType) int {
	n := 0
	for _, r := range l.Rows {
		if r.Has(e) {
			n++
		}
	}
	return n
}

// Validate checks that dates are strictly increasing and prices positive.
func (l EventLog) Validate() error {
	for i, r := range l.Rows {
		if r.Date.IsZero() {
			return fmt.Errorf("row %d: missing date", i)
		}
		if !(r.AdjClose > 0) {
			return fmt.Errorf("row %d (%s): price must be positive, got %v", i, r.Date.Format(DateLayout), r.AdjClose)
		}
		if i > 0 && !r.Date.After(l.Rows[i-1].Date) {
			return fmt.Errorf("row %d (%s): date not after previous row (%s)",
				i, r.Date.Format(DateLayout), l.Rows[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}
