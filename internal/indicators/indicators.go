// Package indicators provides the moving-average indicators used by the crossover rule.
package indicators

import (
	"errors"
	"fmt"

	"crosscheck/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Indicator defines the interface for single-value technical indicators.
// Values before the warmup period are zero.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// SMA calculates Simple Moving Average of adjusted closes.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(candles))
	prices := adjustedPrices(candles)

	// rolling window sum
	var window float64
	for i, p := range prices {
		window += p
		if i >= s.period {
			window -= prices[i-s.period]
		}
		if i >= s.period-1 {
			result[i] = window / float64(s.period)
		}
	}

	return result, nil
}

// EMA calculates Exponential Moving Average of adjusted closes.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < e.period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(candles))
	prices := adjustedPrices(candles)
	multiplier := 2.0 / float64(e.period+1)

	// First EMA is SMA
	result[e.period-1] = mean(prices[:e.period])

	for i := e.period; i < len(candles); i++ {
		result[i] = (prices[i]-result[i-1])*multiplier + result[i-1]
	}

	return result, nil
}

// New returns an indicator by kind ("sma" or "ema").
func New(kind string, period int) (Indicator, error) {
	switch kind {
	case "", "sma":
		return NewSMA(period), nil
	case "ema":
		return NewEMA(period), nil
	default:
		return nil, fmt.Errorf("unknown moving average %q", kind)
	}
}
