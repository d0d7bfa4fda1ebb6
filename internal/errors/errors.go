// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidWindow      = errors.New("invalid window: no rows to average")
	ErrUndefinedAggregate = errors.New("undefined aggregate: no qualifying events")
	ErrMalformedDate      = errors.New("malformed date field")
	ErrMalformedPrice     = errors.New("malformed price field")
	ErrInvalidEventLog    = errors.New("invalid event log")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDataNotFound       = errors.New("data not found")
	ErrSourceUnavailable  = errors.New("price source unavailable")
)

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Row      int
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	where := e.Symbol
	if e.Row > 0 {
		where = fmt.Sprintf("%s row %d", e.Symbol, e.Row)
	}
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, where, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, where, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// NewRowError creates a DataError pinned to a 1-based row number.
func NewRowError(dataType, symbol string, row int, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Row:      row,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match validation failures against ErrConfigInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// TickerError records a failure of one ticker inside a batch.
type TickerError struct {
	Ticker string
	Stage  string
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("ticker %s failed at %s: %v", e.Ticker, e.Stage, e.Err)
}

func (e *TickerError) Unwrap() error {
	return e.Err
}

// NewTickerError creates a new TickerError.
func NewTickerError(ticker, stage string, err error) *TickerError {
	return &TickerError{
		Ticker: ticker,
		Stage:  stage,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
