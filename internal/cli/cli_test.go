package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosscheck/internal/config"
	"crosscheck/internal/feed"
	"crosscheck/internal/models"
	"crosscheck/internal/strategy"
)

var wave = []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11, 10, 9, 8, 7, 6, 5}

// testConfig writes a WAVE price file and returns a config using a 2/4 crossover
// over it with a store in a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Strategy = strategy.Params{Fast: 2, Slow: 4, Average: "sma", Exit: strategy.ExitDeathCross, HoldMonths: 9}
	cfg.Data.Source = config.SourceCSV
	cfg.Data.CSVDir = filepath.Join(dir, "data")
	cfg.Data.Database = filepath.Join(dir, "db", "crosscheck.db")
	cfg.Data.From = ""
	cfg.Data.RequestsPerSecond = 0
	cfg.Batch.Workers = 2
	cfg.Universe.Tickers = nil

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(wave))
	for i, p := range wave {
		candles[i] = models.Candle{Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, AdjClose: p, Volume: 1000}
	}
	require.NoError(t, feed.NewCSVSource(cfg.Data.CSVDir).WriteCandles("WAVE", candles))
	require.NoError(t, feed.NewCSVSource(cfg.Data.CSVDir).WriteCandles("SHORT", candles[:3]))
	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func runJSON(t *testing.T, cfg *config.Config, target interface{}, args ...string) {
	t.Helper()
	out, err := run(t, cfg, append(args, "--json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), target), out)
}

type reportView struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	EventType      string   `json:"event_type"`
	Policy         string   `json:"policy"`
	Valid          int      `json:"valid"`
	PercentCorrect *float64 `json:"percent_correct"`
	Records        []struct {
		Price        float64 `json:"price"`
		AveragePrice float64 `json:"average_price"`
		Valid        bool    `json:"valid"`
	} `json:"records"`
}

func TestVersion(t *testing.T) {
	var got map[string]string
	runJSON(t, testConfig(t), &got, "version")
	assert.Equal(t, Version, got["version"])
}

func TestBacktest_JSON(t *testing.T) {
	cfg := testConfig(t)

	var got struct {
		Ticker      string     `json:"ticker"`
		Bars        int        `json:"bars"`
		GoldenCross reportView `json:"golden_cross"`
		DeathCross  reportView `json:"death_cross"`
		Signals     []struct {
			Type string `json:"type"`
		} `json:"signals"`
		PerYear []struct {
			Year  int `json:"year"`
			Count int `json:"count"`
		} `json:"golden_crosses_per_year"`
	}
	runJSON(t, cfg, &got, "backtest", "wave", "--signals")

	assert.Equal(t, "WAVE", got.Ticker)
	assert.Equal(t, len(wave), got.Bars)
	require.Len(t, got.GoldenCross.Records, 1)
	assert.Equal(t, 8.0, got.GoldenCross.Records[0].Price)
	assert.Equal(t, 10.0, got.GoldenCross.Records[0].AveragePrice)
	require.NotNil(t, got.GoldenCross.PercentCorrect)
	assert.Equal(t, 1.0, *got.GoldenCross.PercentCorrect)
	assert.Equal(t, "fixed_months(5)", got.DeathCross.Policy)
	assert.Len(t, got.Signals, 2)
	require.Len(t, got.PerYear, 1)
	assert.Equal(t, 2020, got.PerYear[0].Year)
	assert.Equal(t, 1, got.PerYear[0].Count)
}

func TestBacktest_WriteLogThenValidate(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "wave_log.csv")

	out, err := run(t, cfg, "backtest", "WAVE", "--write-log", path, "--records")
	require.NoError(t, err)
	assert.Contains(t, out, "WAVE golden cross")
	assert.Contains(t, out, "100.00%")

	var reports []reportView
	runJSON(t, cfg, &reports, "validate", path, "--type", "buy")
	require.Len(t, reports, 1)
	assert.Equal(t, "WAVE", reports[0].Title)
	assert.Equal(t, "buy", reports[0].EventType)
	require.Len(t, reports[0].Records, 1)
	assert.Equal(t, 10.0, reports[0].Records[0].AveragePrice)
}

func TestBacktest_InsufficientData(t *testing.T) {
	_, err := run(t, testConfig(t), "backtest", "SHORT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark")
}

func TestBacktest_RejectsBadTicker(t *testing.T) {
	_, err := run(t, testConfig(t), "backtest", "../etc")
	assert.Error(t, err)
}

const eventLog = `Backtest trade log
ticker,datetime,adjclose,buy,sell
SPY,2020-01-01 00:00:00,100,,
SPY,2020-01-02 00:00:00,101,101,
SPY,2020-01-03 00:00:00,104,,
SPY,2020-01-06 00:00:00,106,,
SPY,2020-01-07 00:00:00,103,,103
SPY,2020-01-08 00:00:00,99,,
SPY,2020-01-09 00:00:00,104,,
`

func TestValidate_EventLog(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "spy.csv")
	require.NoError(t, os.WriteFile(path, []byte(eventLog), 0o644))

	var reports []reportView
	runJSON(t, cfg, &reports, "validate", path, "--save")
	require.Len(t, reports, 2)

	golden, death := reports[0], reports[1]
	assert.Equal(t, "SPY", golden.Title)
	require.Len(t, golden.Records, 1)
	assert.Equal(t, 105.0, golden.Records[0].AveragePrice)
	assert.True(t, golden.Records[0].Valid)
	assert.NotEmpty(t, golden.ID, "saved reports carry an id")

	require.Len(t, death.Records, 1)
	assert.Equal(t, 101.5, death.Records[0].AveragePrice)
	assert.True(t, death.Records[0].Valid)

	var saved []reportView
	runJSON(t, cfg, &saved, "history", "SPY")
	assert.Len(t, saved, 2)

	var one reportView
	runJSON(t, cfg, &one, "history", "show", golden.ID)
	assert.Equal(t, golden.ID, one.ID)
	assert.Len(t, one.Records, 1)
}

func TestValidate_Errors(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "spy.csv")
	require.NoError(t, os.WriteFile(path, []byte(eventLog), 0o644))

	_, err := run(t, cfg, "validate", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = run(t, cfg, "validate", path, "--golden-policy", "fixed_months:0")
	assert.Error(t, err)

	_, err = run(t, cfg, "validate", path, "--type", "hold")
	assert.Error(t, err)
}

func TestBatch_SeparatesFailures(t *testing.T) {
	cfg := testConfig(t)

	var got struct {
		Summary struct {
			Tickers     int `json:"tickers"`
			Succeeded   int `json:"succeeded"`
			Failed      int `json:"failed"`
			GoldenCross struct {
				Mean *float64 `json:"mean_percent_correct"`
			} `json:"golden_cross"`
			GoldenPerYear []struct {
				Year  int `json:"year"`
				Count int `json:"count"`
			} `json:"golden_crosses_per_year"`
		} `json:"summary"`
		Results  []struct{ Ticker string } `json:"results"`
		Failures []failureView             `json:"failures"`
	}
	runJSON(t, cfg, &got, "batch", "WAVE,SHORT", "MISSING")

	assert.Equal(t, 3, got.Summary.Tickers)
	assert.Equal(t, 1, got.Summary.Succeeded)
	assert.Equal(t, 2, got.Summary.Failed)
	require.NotNil(t, got.Summary.GoldenCross.Mean)
	assert.Equal(t, 1.0, *got.Summary.GoldenCross.Mean)
	require.Len(t, got.Summary.GoldenPerYear, 1)
	assert.Equal(t, 2020, got.Summary.GoldenPerYear[0].Year)

	require.Len(t, got.Failures, 2)
	assert.Equal(t, "SHORT", got.Failures[0].Ticker)
	assert.Equal(t, "mark", got.Failures[0].Stage)
	assert.Equal(t, "MISSING", got.Failures[1].Ticker)
	assert.Equal(t, "fetch", got.Failures[1].Stage)

	var saved []reportView
	runJSON(t, cfg, &saved, "history")
	assert.Len(t, saved, 2, "persisted by default")
}

func TestBatch_AllFailed(t *testing.T) {
	_, err := run(t, testConfig(t), "batch", "MISSING", "--persist=false")
	assert.Error(t, err)
}

func TestBatch_ScrapesUniverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<table id="constituents">
<tr><th>Symbol</th><th>Security</th><th>CIK</th></tr>
<tr><td>WAVE</td><td>Wave Corp</td><td>0000000001</td></tr>
<tr><td>MISSING</td><td>Gone Inc</td><td>0000000002</td></tr>
</table>`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Universe.URL = srv.URL

	var constituents []struct {
		Ticker string `json:"ticker"`
		CIK    string `json:"cik"`
	}
	runJSON(t, cfg, &constituents, "universe")
	require.Len(t, constituents, 2)
	assert.Equal(t, "0000000001", constituents[0].CIK)

	out, err := run(t, cfg, "batch", "--limit", "1", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "1 tickers from "+srv.URL)
	assert.Contains(t, out, "WAVE")
	assert.NotContains(t, out, "MISSING")
}

func TestScan_RecordsGoldenCrosses(t *testing.T) {
	cfg := testConfig(t)

	var got struct {
		Scanned int `json:"scanned"`
		Crosses []struct {
			Ticker string  `json:"ticker"`
			Price  float64 `json:"price"`
		} `json:"crosses"`
	}
	runJSON(t, cfg, &got, "scan", "WAVE", "--date", "2020-01-07")
	assert.Equal(t, 1, got.Scanned)
	require.Len(t, got.Crosses, 1)
	assert.Equal(t, 8.0, got.Crosses[0].Price)

	runJSON(t, cfg, &got, "scan", "WAVE", "--date", "2020-01-08")
	assert.Empty(t, got.Crosses)

	var crosses []struct {
		Ticker string    `json:"ticker"`
		Date   time.Time `json:"date"`
	}
	runJSON(t, cfg, &crosses, "crosses", "wave")
	require.Len(t, crosses, 1)
	assert.Equal(t, "WAVE", crosses[0].Ticker)
	assert.Equal(t, "2020-01-07", crosses[0].Date.Format(models.DateLayout))
}

func TestScan_NotifiesWebhook(t *testing.T) {
	cfg := testConfig(t)
	var (
		mu       sync.Mutex
		payloads []map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
	}))
	received := func() []map[string]interface{} {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]interface{}(nil), payloads...)
	}
	defer srv.Close()
	cfg.Notify.WebhookURL = srv.URL

	_, err := run(t, cfg, "scan", "WAVE", "--date", "2020-01-08", "--save=false")
	require.NoError(t, err)
	assert.Empty(t, received(), "no crosses, no notification")

	_, err = run(t, cfg, "scan", "WAVE", "--date", "2020-01-07", "--save=false")
	require.NoError(t, err)
	got := received()
	require.Len(t, got, 1)
	assert.Equal(t, "golden_crosses", got[0]["type"])
	assert.Equal(t, "WAVE", got[0]["message"])
}

func TestConfigShow_MasksCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credentials.Alpaca.APIKey = "PKABCDEFGHIJKL"
	cfg.Credentials.Alpaca.APISecret = "secretsecretsecret"

	out, err := run(t, cfg, "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "PKAB******IJKL")
	assert.NotContains(t, out, "PKABCDEFGHIJKL")
	assert.NotContains(t, out, "secretsecretsecret")

	out, err = run(t, cfg, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "PKAB******IJKL")
	assert.True(t, strings.Contains(out, "SMA(2/4)"), out)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "config", "validate")
	require.NoError(t, err)

	cfg.Batch.Workers = 0
	_, err = run(t, cfg, "config", "validate")
	assert.Error(t, err)
}
