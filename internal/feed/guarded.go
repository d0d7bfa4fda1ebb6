package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
	"crosscheck/internal/resilience"
)

// GuardedSource fails fast once the upstream keeps failing. Missing data for a
// ticker and cancelled requests do not count against the upstream.
type GuardedSource struct {
	upstream Source
	breaker  *resilience.CircuitBreaker
}

// NewGuardedSource wraps upstream with a circuit breaker.
func NewGuardedSource(upstream Source, cfg resilience.CircuitBreakerConfig, logger zerolog.Logger) *GuardedSource {
	if cfg.IsFailure == nil {
		cfg.IsFailure = upstreamFailure
	}
	return &GuardedSource{
		upstream: upstream,
		breaker:  resilience.NewCircuitBreaker(upstream.Name(), cfg, logger),
	}
}

func upstreamFailure(err error) bool {
	return !errors.Is(err, apperrors.ErrDataNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Name identifies the source.
func (s *GuardedSource) Name() string { return s.upstream.Name() }

// Breaker exposes the circuit breaker state.
func (s *GuardedSource) Breaker() *resilience.CircuitBreaker { return s.breaker }

// Bars forwards to the upstream while the circuit is closed.
func (s *GuardedSource) Bars(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	candles, err := resilience.Do(s.breaker, func() ([]models.Candle, error) {
		return s.upstream.Bars(ctx, ticker, from, to)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%s bars for %s: %w: %w", s.upstream.Name(), ticker, apperrors.ErrSourceUnavailable, err)
	}
	return candles, err
}
