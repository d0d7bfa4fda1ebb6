package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/logging"
	"crosscheck/internal/models"
	"crosscheck/pkg/utils"
)

// barsClient is the part of the Alpaca market data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource fetches split and dividend adjusted daily bars from Alpaca.
type AlpacaSource struct {
	client  barsClient
	retry   utils.RetryConfig
	history time.Duration
	logger  zerolog.Logger
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	// History bounds requests with an open start, defaulting to 20 years.
	History time.Duration
	Retry   utils.RetryConfig
}

// NewAlpacaSource creates a source backed by the Alpaca market data API.
func NewAlpacaSource(opts AlpacaOptions, logger zerolog.Logger) (*AlpacaSource, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, apperrors.NewValidationError("alpaca credentials", "", "ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	})
	return newAlpacaSource(client, opts, logger), nil
}

func newAlpacaSource(client barsClient, opts AlpacaOptions, logger zerolog.Logger) *AlpacaSource {
	if opts.History <= 0 {
		opts.History = 20 * 365 * 24 * time.Hour
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = utils.DefaultRetryConfig()
	}
	return &AlpacaSource{
		client:  client,
		retry:   opts.Retry,
		history: opts.History,
		logger:  logging.WithOperation(logger, "alpaca_bars"),
	}
}

// Name identifies the source.
func (s *AlpacaSource) Name() string { return "alpaca" }

// Bars requests daily bars with all corporate-action adjustments applied.
func (s *AlpacaSource) Bars(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-s.history)
	}
	symbol := NormalizeTicker(ticker)
	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      from,
		End:        to,
	}

	bars, err := utils.RetryWithResult(ctx, s.retry, func() ([]marketdata.Bar, error) {
		start := time.Now()
		bars, err := s.client.GetBars(alpacaSymbol(symbol), req)
		logging.LogAPICall(s.logger, "GET", "bars/"+symbol, time.Since(start), err)
		return bars, classifyAlpacaError(symbol, err)
	})
	if errors.Is(err, apperrors.ErrDataNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("alpaca bars for %s: %w: %w", symbol, apperrors.ErrSourceUnavailable, err)
	}
	if len(bars) == 0 {
		return nil, apperrors.NewDataError("candles", symbol, "no bars returned", apperrors.ErrDataNotFound)
	}

	candles := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, models.Candle{
			Timestamp: time.Date(b.Timestamp.Year(), b.Timestamp.Month(), b.Timestamp.Day(), 0, 0, 0, 0, time.UTC),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			AdjClose:  b.Close,
			Volume:    int64(b.Volume),
		})
	}
	sortCandles(candles)
	return candles, nil
}

// classifyAlpacaError stops retries for client errors. Rejected symbols become
// ErrDataNotFound; rate limits, server errors and transport errors stay retryable.
func classifyAlpacaError(symbol string, err error) error {
	var apiErr *alpaca.APIError
	if err == nil || !errors.As(err, &apiErr) {
		return err
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusBadRequest || code == http.StatusNotFound || code == http.StatusUnprocessableEntity:
		return utils.Permanent(apperrors.NewDataError("candles", symbol, apiErr.Message, apperrors.ErrDataNotFound))
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return err
	case code >= http.StatusBadRequest:
		return utils.Permanent(err)
	}
	return err
}

// alpacaSymbol converts BRK-B back to the BRK.B form Alpaca expects.
func alpacaSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, "-", ".")
}
