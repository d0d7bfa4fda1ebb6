package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crosscheck/internal/models"
)

// CandleCache is the storage a CachedSource reads through.
type CandleCache interface {
	SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, ticker string) (time.Time, error)
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error
}

// CachedSource serves candles from the cache while they are fresh and cover the
// requested range, and falls back to stale cached data when the upstream source fails.
type CachedSource struct {
	upstream Source
	cache    CandleCache
	maxAge   time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCachedSource wraps upstream with a read-through cache.
func NewCachedSource(upstream Source, cache CandleCache, maxAge time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Name identifies the source.
func (s *CachedSource) Name() string { return "cached:" + s.upstream.Name() }

func syncKey(ticker string) string {
	return "candles:" + ticker
}

// coverage is the date range fetched from upstream for a ticker. A zero From
// means from the start of history. Open-ended fetches store the sync time as To.
type coverage struct {
	From time.Time
	To   time.Time
}

func (s *CachedSource) coverage(ticker string) (coverage, bool) {
	to := s.cache.GetLastSync(syncKey(ticker) + ":to")
	if to.IsZero() {
		return coverage{}, false
	}
	return coverage{From: s.cache.GetLastSync(syncKey(ticker) + ":from"), To: to}, true
}

// covers reports whether c holds every bar of [from, to]. An open-ended request is
// covered only by a fetch that reached the last sync.
func (c coverage) covers(from, to, lastSync time.Time) bool {
	if !c.From.IsZero() && (from.IsZero() || from.Before(c.From)) {
		return false
	}
	if to.IsZero() {
		to = lastSync
	}
	return !c.To.Before(to)
}

func (s *CachedSource) setCoverage(ticker string, c coverage) error {
	if err := s.cache.SetLastSync(syncKey(ticker)+":from", c.From); err != nil {
		return err
	}
	return s.cache.SetLastSync(syncKey(ticker)+":to", c.To)
}

// Bars returns cached candles when they are fresh and cover [from, to], otherwise
// fetches and stores them.
func (s *CachedSource) Bars(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	ticker = NormalizeTicker(ticker)

	cached, err := s.cache.GetCandles(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached candles: %w", err)
	}

	lastSync := s.cache.GetLastSync(syncKey(ticker))
	age := s.now().Sub(lastSync)
	have, ok := s.coverage(ticker)
	covered := ok && have.covers(from, to, lastSync)
	if len(cached) > 0 && covered && age < s.maxAge {
		s.logger.Debug().Str("ticker", ticker).Int("candles", len(cached)).Msg("Serving candles from cache")
		return cached, nil
	}

	candles, err := s.upstream.Bars(ctx, ticker, from, to)
	if err != nil {
		if len(cached) == 0 {
			return nil, err
		}
		event := s.logger.Warn().
			Str("ticker", ticker).
			Dur("age", age).
			Bool("covers_range", covered).
			Err(err)
		if latest, ferr := s.cache.GetCandlesFreshness(ctx, ticker); ferr == nil {
			event = event.Time("latest_bar", latest)
		}
		event.Msg("Upstream failed, serving stale candles")
		return cached, nil
	}

	if err := s.cache.SaveCandles(ctx, ticker, candles); err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Failed to cache candles")
		return candles, nil
	}

	now := s.now()
	fetched := coverage{From: from, To: to}
	if fetched.To.IsZero() {
		fetched.To = now
	}
	if ok && overlaps(have, fetched) {
		fetched = merge(have, fetched)
	}
	if err := s.setCoverage(ticker, fetched); err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Failed to record cached range")
	}
	if err := s.cache.SetLastSync(syncKey(ticker), now); err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Failed to mark candles synced")
	}
	return candles, nil
}

func overlaps(a, b coverage) bool {
	return !b.From.After(a.To) && (a.From.IsZero() || !a.From.After(b.To))
}

func merge(a, b coverage) coverage {
	out := a
	if b.From.IsZero() || (!out.From.IsZero() && b.From.Before(out.From)) {
		out.From = b.From
	}
	if b.To.After(out.To) {
		out.To = b.To
	}
	return out
}
