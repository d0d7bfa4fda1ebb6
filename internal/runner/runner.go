// Package runner validates golden and death crosses across many tickers.
package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/feed"
	"crosscheck/internal/logging"
	"crosscheck/internal/models"
	"crosscheck/internal/performance"
	"crosscheck/internal/strategy"
	"crosscheck/internal/trend"
)

// Stages reported in TickerError.
const (
	StageQueue    = "queue"
	StageFetch    = "fetch"
	StageMark     = "mark"
	StageValidate = "validate"
	StageStore    = "store"
)

// ReportSink persists finished reports.
type ReportSink interface {
	SaveReport(ctx context.Context, report *models.TrendReport) error
}

// Options configures a Runner.
type Options struct {
	Workers int
	From    time.Time
	To      time.Time
	// GoldenPolicy bounds the window after each buy, DeathPolicy after each sell.
	GoldenPolicy trend.WindowPolicy
	DeathPolicy  trend.WindowPolicy
	Basis        trend.Basis
	// RequestsPerSecond caps source requests across workers; 0 disables the cap.
	RequestsPerSecond float64
}

// DefaultOptions validates buys until the next sell and sells over five months.
func DefaultOptions() Options {
	return Options{
		Workers:      4,
		GoldenPolicy: trend.UntilOpposite(models.EventBuy),
		DeathPolicy:  trend.FixedMonths(5),
		Basis:        trend.BasisAverage,
	}
}

// Runner fetches, marks and validates tickers.
type Runner struct {
	source  feed.Source
	marker  *strategy.SmaCross
	opts    Options
	sink    ReportSink
	limiter *performance.RateLimiter
	logger  zerolog.Logger
}

// New creates a runner. sink may be nil.
func New(source feed.Source, marker *strategy.SmaCross, opts Options, sink ReportSink, logger zerolog.Logger) *Runner {
	if opts.Basis == "" {
		opts.Basis = trend.BasisAverage
	}
	var limiter *performance.RateLimiter
	if opts.RequestsPerSecond > 0 {
		limiter = performance.NewRateLimiter(opts.RequestsPerSecond, opts.Workers)
	}
	return &Runner{
		source:  source,
		marker:  marker,
		opts:    opts,
		sink:    sink,
		limiter: limiter,
		logger:  logging.WithOperation(logger, "batch"),
	}
}

// Options returns the runner configuration.
func (r *Runner) Options() Options {
	return r.opts
}

// TickerResult is the outcome for one ticker. Err is a *errors.TickerError when set.
type TickerResult struct {
	Ticker      string              `json:"ticker"`
	GoldenCross *models.TrendReport `json:"golden_cross,omitempty"`
	DeathCross  *models.TrendReport `json:"death_cross,omitempty"`
	Log         models.EventLog     `json:"-"`
	Err         error               `json:"-"`
}

// OK reports whether the ticker completed.
func (t TickerResult) OK() bool {
	return t.Err == nil
}

// Run processes tickers on the worker pool. Results keep the input order; a failed
// ticker never affects the others.
func (r *Runner) Run(ctx context.Context, tickers []string) BatchResult {
	results := make([]TickerResult, len(tickers))

	pool := performance.NewWorkerPool(r.opts.Workers)
	pool.Start()
	for i, ticker := range tickers {
		i, ticker := i, ticker
		err := pool.SubmitContext(ctx, func() {
			results[i] = r.Ticker(ctx, ticker)
		})
		if err != nil {
			results[i] = r.fail(ticker, StageQueue, err)
		}
	}
	pool.Stop()

	stats := pool.Stats()
	r.logger.Debug().
		Int("workers", stats.Workers).
		Uint64("tasks", stats.TasksDone).
		Int("tickers", len(tickers)).
		Msg("Batch finished")

	return BatchResult{Results: results}
}

// Ticker runs fetch, mark and validate for one ticker.
func (r *Runner) Ticker(ctx context.Context, ticker string) TickerResult {
	if err := ctx.Err(); err != nil {
		return r.fail(ticker, StageFetch, err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return r.fail(ticker, StageFetch, err)
	}

	candles, err := r.source.Bars(ctx, ticker, r.opts.From, r.opts.To)
	if err != nil {
		return r.fail(ticker, StageFetch, err)
	}

	log, err := r.marker.Mark(ticker, candles)
	if err != nil {
		return r.fail(ticker, StageMark, err)
	}

	golden, death, err := r.Validate(log)
	if err != nil {
		return r.fail(ticker, StageValidate, err)
	}

	if r.sink != nil {
		for _, report := range []*models.TrendReport{&golden, &death} {
			if err := r.sink.SaveReport(ctx, report); err != nil {
				return r.fail(ticker, StageStore, err)
			}
		}
	}

	logger := logging.WithTicker(r.logger, ticker)
	logging.LogReport(logger, golden)
	logging.LogReport(logger, death)

	return TickerResult{Ticker: ticker, GoldenCross: &golden, DeathCross: &death, Log: log}
}

// Validate builds the golden cross (buy) and death cross (sell) reports of a log.
func (r *Runner) Validate(log models.EventLog) (models.TrendReport, models.TrendReport, error) {
	skip := func(eventType models.EventType) trend.Option {
		return trend.OnSkip(func(event models.PriceRow, _ int) {
			logging.LogSkippedEvent(r.logger, log.Title, eventType, event.Date)
		})
	}

	golden, err := trend.BuildReport(log, models.EventBuy, r.opts.GoldenPolicy,
		trend.WithBasis(r.opts.Basis), skip(models.EventBuy))
	if err != nil {
		return models.TrendReport{}, models.TrendReport{}, err
	}
	death, err := trend.BuildReport(log, models.EventSell, r.opts.DeathPolicy,
		trend.WithBasis(r.opts.Basis), skip(models.EventSell))
	if err != nil {
		return models.TrendReport{}, models.TrendReport{}, err
	}
	return golden, death, nil
}

func (r *Runner) fail(ticker, stage string, err error) TickerResult {
	logging.LogTickerFailure(r.logger, ticker, stage, err)
	return TickerResult{Ticker: ticker, Err: apperrors.NewTickerError(ticker, stage, err)}
}
