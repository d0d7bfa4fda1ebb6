// Package strategy marks golden-cross entries and exits on daily price series.
package strategy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/indicators"
	"crosscheck/internal/models"
	"crosscheck/internal/trend"
)

// ExitRule selects when an open position is closed.
type ExitRule string

const (
	// ExitDeathCross closes when the fast average crosses below the slow one.
	ExitDeathCross ExitRule = "death_cross"
	// ExitHoldMonths closes once the position has been held for HoldMonths.
	ExitHoldMonths ExitRule = "hold_months"
)

// Params holds the crossover rule parameters.
type Params struct {
	Fast       int      `mapstructure:"fast" json:"fast"`
	Slow       int      `mapstructure:"slow" json:"slow"`
	Average    string   `mapstructure:"average" json:"average"` // sma, ema
	Exit       ExitRule `mapstructure:"exit" json:"exit"`
	HoldMonths int      `mapstructure:"hold_months" json:"hold_months"`
}

// DefaultParams returns the classic 50/200 golden cross with a death-cross exit.
func DefaultParams() Params {
	return Params{
		Fast:       50,
		Slow:       200,
		Average:    "sma",
		Exit:       ExitDeathCross,
		HoldMonths: 9,
	}
}

// Validate validates the parameters.
func (p Params) Validate() error {
	if p.Fast <= 0 {
		return apperrors.NewValidationError("fast", p.Fast, "must be positive")
	}
	if p.Slow <= p.Fast {
		return apperrors.NewValidationError("slow", p.Slow, fmt.Sprintf("must be greater than fast (%d)", p.Fast))
	}
	switch p.Exit {
	case ExitDeathCross:
	case ExitHoldMonths:
		if p.HoldMonths <= 0 {
			return apperrors.NewValidationError("hold_months", p.HoldMonths, "must be positive")
		}
	default:
		return apperrors.NewValidationError("exit", p.Exit, "must be death_cross or hold_months")
	}
	if _, err := indicators.New(strings.ToLower(p.Average), 1); err != nil {
		return apperrors.NewValidationError("average", p.Average, err.Error())
	}
	return nil
}

func (p Params) String() string {
	s := fmt.Sprintf("%s(%d/%d) exit=%s", strings.ToUpper(p.Average), p.Fast, p.Slow, p.Exit)
	if p.Exit == ExitHoldMonths {
		s += fmt.Sprintf("(%d)", p.HoldMonths)
	}
	return s
}

// SmaCross is a long-only moving-average crossover rule.
type SmaCross struct {
	params Params
	fast   indicators.Indicator
	slow   indicators.Indicator
}

// New creates a crossover rule.
func New(params Params) (*SmaCross, error) {
	if params.Average == "" {
		params.Average = "sma"
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	kind := strings.ToLower(params.Average)
	fast, _ := indicators.New(kind, params.Fast)
	slow, _ := indicators.New(kind, params.Slow)
	return &SmaCross{params: params, fast: fast, slow: slow}, nil
}

// Params returns the rule parameters.
func (s *SmaCross) Params() Params {
	return s.params
}

// Mark turns daily candles into an event log with buy and sell markers.
//
// While flat, a fast-over-slow cross marks a buy on that day. While long, the exit
// rule marks the sell. Markers sit on the signal bar; no fills are simulated.
func (s *SmaCross) Mark(title string, candles []models.Candle) (models.EventLog, error) {
	candles = normalize(candles)
	if len(candles) < s.params.Slow {
		return models.EventLog{}, apperrors.NewDataError("candles", title,
			fmt.Sprintf("need at least %d daily bars, got %d", s.params.Slow, len(candles)),
			apperrors.ErrInsufficientData)
	}

	fastValues, err := s.fast.Calculate(candles)
	if err != nil {
		return models.EventLog{}, fmt.Errorf("%s: %w", s.fast.Name(), err)
	}
	slowValues, err := s.slow.Calculate(candles)
	if err != nil {
		return models.EventLog{}, fmt.Errorf("%s: %w", s.slow.Name(), err)
	}
	crosses := indicators.CrossOver(fastValues, slowValues, s.params.Slow-1)

	log := models.EventLog{Title: title, Rows: make([]models.PriceRow, len(candles))}
	inPosition := false
	var entry time.Time

	for i, c := range candles {
		row := models.PriceRow{Date: c.Timestamp, AdjClose: c.Price()}

		if !inPosition {
			if crosses[i] == indicators.CrossUp {
				row.Buy = true
				inPosition = true
				entry = c.Timestamp
			}
		} else {
			switch s.params.Exit {
			case ExitDeathCross:
				row.Sell = crosses[i] == indicators.CrossDown
			case ExitHoldMonths:
				row.Sell = trend.ElapsedMonths(entry, c.Timestamp) >= s.params.HoldMonths
			}
			if row.Sell {
				inPosition = false
			}
		}
		log.Rows[i] = row
	}

	if err := log.Validate(); err != nil {
		return models.EventLog{}, apperrors.NewDataError("candles", title, err.Error(), apperrors.ErrInvalidEventLog)
	}
	return log, nil
}

// normalize truncates timestamps to dates, sorts, drops duplicate days and
// bars without a positive price.
func normalize(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if !(c.Price() > 0) {
			continue
		}
		y, m, d := c.Timestamp.Date()
		c.Timestamp = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	dedup := out[:0]
	for i, c := range out {
		if i > 0 && c.Timestamp.Equal(dedup[len(dedup)-1].Timestamp) {
			dedup[len(dedup)-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Signal is a single marked event.
type Signal struct {
	Ticker string           `json:"ticker"`
	Date   time.Time        `json:"date"`
	Type   models.EventType `json:"type"`
	Price  float64          `json:"price"`
}

// Signals lists every marker of the log in date order.
func Signals(log models.EventLog) []Signal {
	var out []Signal
	for _, r := range log.Rows {
		if r.Buy {
			out = append(out, Signal{Ticker: log.Title, Date: r.Date, Type: models.EventBuy, Price: r.AdjClose})
		}
		if r.Sell {
			out = append(out, Signal{Ticker: log.Title, Date: r.Date, Type: models.EventSell, Price: r.AdjClose})
		}
	}
	return out
}

// CrossesOn returns the signals of the given type that fall on the as-of date.
func CrossesOn(log models.EventLog, asOf time.Time, eventType models.EventType) []Signal {
	y, m, d := asOf.Date()
	var out []Signal
	for _, sig := range Signals(log) {
		sy, sm, sd := sig.Date.Date()
		if sig.Type == eventType && sy == y && sm == m && sd == d {
			out = append(out, sig)
		}
	}
	return out
}
