package trend

import (
	"fmt"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

// SkipFunc is called for an event whose forward window came back empty.
type SkipFunc func(event models.PriceRow, index int)

type buildOptions struct {
	basis  Basis
	onSkip SkipFunc
}

// Option configures BuildReport.
type Option func(*buildOptions)

// WithBasis sets the comparison basis (default BasisAverage).
func WithBasis(b Basis) Option {
	return func(o *buildOptions) {
		o.basis = b
	}
}

// OnSkip registers a callback for events skipped because of an empty window.
func OnSkip(fn SkipFunc) Option {
	return func(o *buildOptions) {
		o.onSkip = fn
	}
}

// BuildReport validates every event of the given type in one pass over the log.
//
// Events whose forward window is empty are skipped and counted in Report.Skipped.
// Any other failure aborts the whole report.
func BuildReport(log models.EventLog, eventType models.EventType, policy WindowPolicy, opts ...Option) (models.TrendReport, error) {
	o := buildOptions{basis: BasisAverage}
	for _, opt := range opts {
		opt(&o)
	}

	if !eventType.Valid() {
		return models.TrendReport{}, fmt.Errorf("build report: unknown event type %q", eventType)
	}
	if err := policy.Validate(); err != nil {
		return models.TrendReport{}, fmt.Errorf("build report: %w", err)
	}
	if err := log.Validate(); err != nil {
		return models.TrendReport{}, fmt.Errorf("build report %s: %w: %v", log.Title, apperrors.ErrInvalidEventLog, err)
	}

	report := models.TrendReport{
		Title:     log.Title,
		EventType: eventType,
		Policy:    policy.String(),
		Basis:     string(o.basis),
		Records:   make([]models.TrendRecord, 0),
	}

	for i, row := range log.Rows {
		if !row.Has(eventType) {
			continue
		}

		window := ForwardWindow(log, i+1, policy)
		if window.Len() == 0 {
			report.Skipped++
			if o.onSkip != nil {
				o.onSkip(row, i)
			}
			continue
		}

		rec, err := Classify(row, window, eventType, o.basis)
		if err != nil {
			return models.TrendReport{}, err
		}
		report.Records = append(report.Records, rec)
	}

	return report, nil
}
