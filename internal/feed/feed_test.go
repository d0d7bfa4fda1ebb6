package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
	"crosscheck/internal/resilience"
	"crosscheck/pkg/utils"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const yahooCSV = `Date,Open,High,Low,Close,Adj Close,Volume
2020-01-03,10,11,9,10.5,10.2,1000
2020-01-02,9,10,8,9.5,9.25,900
2020-01-06,null,null,null,null,null,null
2020-01-07,11,12,10,11.5,11.1,1200
`

func writeCSV(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCSVSource_Bars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SPY.csv", yahooCSV)

	src := NewCSVSource(dir)
	candles, err := src.Bars(context.Background(), "spy", time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Len(t, candles, 3, "null row is skipped")
	assert.Equal(t, day(2020, 1, 2), candles[0].Timestamp, "sorted oldest first")
	assert.Equal(t, 9.25, candles[0].AdjClose)
	assert.Equal(t, int64(1200), candles[2].Volume)
}

func TestCSVSource_Range(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SPY.csv", yahooCSV)

	candles, err := NewCSVSource(dir).Bars(context.Background(), "SPY", day(2020, 1, 3), day(2020, 1, 6))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, day(2020, 1, 3), candles[0].Timestamp)
}

func TestCSVSource_Missing(t *testing.T) {
	_, err := NewCSVSource(t.TempDir()).Bars(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestCSVSource_BadDate(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BAD.csv", "Date,Open,High,Low,Close,Adj Close,Volume\n01/02/2020,1,1,1,1,1,1\n")

	_, err := NewCSVSource(dir).Bars(context.Background(), "BAD", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrMalformedDate)
}

func TestCSVSource_WriteThenRead(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "prices"))
	in := []models.Candle{
		{Timestamp: day(2021, 3, 1), Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjClose: 1.4, Volume: 10},
		{Timestamp: day(2021, 3, 2), Open: 1.5, High: 2.5, Low: 1, Close: 2, AdjClose: 1.9, Volume: 20},
	}
	require.NoError(t, src.WriteCandles("BRK.B", in))
	assert.FileExists(t, filepath.Join(src.Dir, "BRK-B.csv"))

	out, err := src.Bars(context.Background(), "BRK.B", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "BRK-B", NormalizeTicker(" brk.b "))
	assert.Equal(t, "BRK.B", alpacaSymbol("BRK-B"))
}

type fakeBars struct {
	calls int
	fail  int
	err   error
	bars  []marketdata.Bar
	req   marketdata.GetBarsRequest
	sym   string
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.calls++
	f.sym = symbol
	f.req = req
	if f.calls <= f.fail {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func TestAlpacaSource_RetriesAndConverts(t *testing.T) {
	client := &fakeBars{
		fail: 1,
		bars: []marketdata.Bar{
			{Timestamp: time.Date(2022, 5, 3, 4, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 42},
		},
	}
	src := newAlpacaSource(client, AlpacaOptions{Retry: fastRetry()}, zerolog.Nop())

	candles, err := src.Bars(context.Background(), "brk-b", day(2022, 1, 1), day(2022, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "BRK.B", client.sym)
	assert.Equal(t, marketdata.All, client.req.Adjustment)

	require.Len(t, candles, 1)
	assert.Equal(t, day(2022, 5, 3), candles[0].Timestamp)
	assert.Equal(t, 1.5, candles[0].AdjClose)
	assert.Equal(t, int64(42), candles[0].Volume)
}

func TestAlpacaSource_Unavailable(t *testing.T) {
	client := &fakeBars{fail: 10}
	src := newAlpacaSource(client, AlpacaOptions{Retry: fastRetry()}, zerolog.Nop())

	_, err := src.Bars(context.Background(), "SPY", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.Equal(t, 3, client.calls)
}

func TestAlpacaSource_ClientErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		calls       int
		notFound    bool
		unavailable bool
	}{
		{"invalid symbol", &alpaca.APIError{StatusCode: 422, Message: "invalid symbol: ZZZZ"}, 1, true, false},
		{"unknown symbol", &alpaca.APIError{StatusCode: 404, Message: "not found"}, 1, true, false},
		{"bad credentials", &alpaca.APIError{StatusCode: 401, Message: "unauthorized"}, 1, false, true},
		{"rate limited", &alpaca.APIError{StatusCode: 429, Message: "too many requests"}, 3, false, true},
		{"server error", &alpaca.APIError{StatusCode: 502, Message: "bad gateway"}, 3, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeBars{fail: 10, err: tt.err}
			src := newAlpacaSource(client, AlpacaOptions{Retry: fastRetry()}, zerolog.Nop())

			_, err := src.Bars(context.Background(), "ZZZZ", day(2022, 1, 1), day(2022, 6, 1))
			require.Error(t, err)
			assert.Equal(t, tt.calls, client.calls)
			assert.Equal(t, tt.notFound, errors.Is(err, apperrors.ErrDataNotFound))
			assert.Equal(t, tt.unavailable, errors.Is(err, apperrors.ErrSourceUnavailable))
			assert.Equal(t, !tt.notFound, upstreamFailure(err), "only rejected symbols leave the breaker alone")
		})
	}
}

func TestNewAlpacaSource_RequiresCredentials(t *testing.T) {
	_, err := NewAlpacaSource(AlpacaOptions{}, zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

type memCache struct {
	candles map[string][]models.Candle
	syncs   map[string]time.Time
}

func newMemCache() *memCache {
	return &memCache{candles: map[string][]models.Candle{}, syncs: map[string]time.Time{}}
}

func (m *memCache) SaveCandles(_ context.Context, ticker string, candles []models.Candle) error {
	m.candles[ticker] = candles
	return nil
}

func (m *memCache) GetCandles(_ context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range m.candles[ticker] {
		if inRange(c.Timestamp, from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCache) GetCandlesFreshness(_ context.Context, ticker string) (time.Time, error) {
	var latest time.Time
	for _, c := range m.candles[ticker] {
		if c.Timestamp.After(latest) {
			latest = c.Timestamp
		}
	}
	return latest, nil
}

func (m *memCache) GetLastSync(key string) time.Time { return m.syncs[key] }

func (m *memCache) SetLastSync(key string, t time.Time) error {
	m.syncs[key] = t
	return nil
}

type stubSource struct {
	calls   int
	err     error
	candles []models.Candle
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Bars(context.Context, string, time.Time, time.Time) ([]models.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	now := day(2023, 1, 10)
	upstream := &stubSource{candles: []models.Candle{{Timestamp: day(2023, 1, 9), Close: 5}}}
	cache := newMemCache()

	src := NewCachedSource(upstream, cache, time.Hour, zerolog.Nop())
	src.now = func() time.Time { return now }
	assert.Equal(t, "cached:stub", src.Name())

	got, err := src.Bars(ctx, "spy", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, now, cache.GetLastSync("candles:SPY"))

	_, err = src.Bars(ctx, "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.calls, "fresh cache is served")

	now = now.Add(2 * time.Hour)
	upstream.err = errors.New("down")
	got, err = src.Bars(ctx, "SPY", time.Time{}, time.Time{})
	require.NoError(t, err, "stale cache is served when upstream fails")
	assert.Len(t, got, 1)
	assert.Equal(t, 2, upstream.calls)

	_, err = src.Bars(ctx, "QQQ", time.Time{}, time.Time{})
	assert.Error(t, err, "no cache and failing upstream")
}

// yearlySource holds one bar per year from 2010 and honours the requested range.
type yearlySource struct {
	calls int
}

func (s *yearlySource) Name() string { return "yearly" }

func (s *yearlySource) Bars(_ context.Context, _ string, from, to time.Time) ([]models.Candle, error) {
	s.calls++
	var out []models.Candle
	for y := 2010; y <= 2020; y++ {
		c := models.Candle{Timestamp: day(y, 6, 1), Close: float64(y)}
		if inRange(c.Timestamp, from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestCachedSource_FetchesUncoveredRange(t *testing.T) {
	ctx := context.Background()
	upstream := &yearlySource{}
	cache := newMemCache()
	src := NewCachedSource(upstream, cache, time.Hour, zerolog.Nop())
	src.now = func() time.Time { return day(2021, 1, 10) }

	got, err := src.Bars(ctx, "SPY", day(2018, 1, 1), day(2020, 12, 31))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = src.Bars(ctx, "SPY", day(2010, 1, 1), day(2020, 12, 31))
	require.NoError(t, err)
	assert.Len(t, got, 11, "wider range goes upstream")
	assert.Equal(t, 2, upstream.calls)

	got, err = src.Bars(ctx, "SPY", day(2012, 1, 1), day(2015, 12, 31))
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 2, upstream.calls, "range inside the merged coverage is served from cache")

	_, err = src.Bars(ctx, "SPY", time.Time{}, day(2020, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 3, upstream.calls, "full history was never fetched")

	_, err = src.Bars(ctx, "SPY", day(2015, 1, 1), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, upstream.calls, "open-ended request needs a fetch up to the sync time")

	_, err = src.Bars(ctx, "SPY", day(2016, 1, 1), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, upstream.calls)
}

func TestGuardedSource(t *testing.T) {
	ctx := context.Background()
	upstream := &stubSource{err: apperrors.ErrDataNotFound}
	cfg := resilience.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Hour}
	src := NewGuardedSource(upstream, cfg, zerolog.Nop())
	assert.Equal(t, "stub", src.Name())

	for i := 0; i < 3; i++ {
		_, err := src.Bars(ctx, "GONE", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
	}
	assert.Equal(t, resilience.CircuitClosed, src.Breaker().State(), "missing data does not trip the breaker")

	upstream.err = errors.New("503 service unavailable")
	src.Bars(ctx, "SPY", time.Time{}, time.Time{})
	src.Bars(ctx, "QQQ", time.Time{}, time.Time{})
	require.Equal(t, resilience.CircuitOpen, src.Breaker().State())

	calls := upstream.calls
	_, err := src.Bars(ctx, "DIA", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, calls, upstream.calls, "open breaker skips the upstream")
}
