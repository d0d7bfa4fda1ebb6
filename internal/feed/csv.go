package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

// yahooRow is one line of a Yahoo Finance daily history export.
type yahooRow struct {
	Date     string `csv:"Date"`
	Open     string `csv:"Open"`
	High     string `csv:"High"`
	Low      string `csv:"Low"`
	Close    string `csv:"Close"`
	AdjClose string `csv:"Adj Close"`
	Volume   string `csv:"Volume"`
}

// CSVSource reads <Dir>/<TICKER>.csv files in the Yahoo daily layout.
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a source over a directory of CSV files.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// Name identifies the source.
func (s *CSVSource) Name() string { return "csv" }

// Path returns the file read for a ticker.
func (s *CSVSource) Path(ticker string) string {
	return filepath.Join(s.Dir, NormalizeTicker(ticker)+".csv")
}

// Bars loads and filters candles from the ticker's file. Rows with null prices are skipped.
func (s *CSVSource) Bars(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(ticker)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewDataError("candles", ticker, path, apperrors.ErrDataNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rows []yahooRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, apperrors.NewDataError("candles", ticker, "decoding csv", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, r := range rows {
		c, ok, err := r.candle()
		if err != nil {
			return nil, apperrors.NewRowError("candles", ticker, i+2, err.Error(), apperrors.ErrMalformedDate)
		}
		if !ok || !inRange(c.Timestamp, from, to) {
			continue
		}
		candles = append(candles, c)
	}
	sortCandles(candles)
	return candles, nil
}

func (r yahooRow) candle() (models.Candle, bool, error) {
	date := strings.TrimSpace(r.Date)
	if i := strings.IndexAny(date, " T"); i >= 0 {
		date = date[:i]
	}
	ts, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return models.Candle{}, false, fmt.Errorf("date %q", r.Date)
	}

	closePrice, ok := parsePrice(r.Close)
	if !ok {
		return models.Candle{}, false, nil
	}
	adj, ok := parsePrice(r.AdjClose)
	if !ok {
		adj = closePrice
	}
	open, _ := parsePrice(r.Open)
	high, _ := parsePrice(r.High)
	low, _ := parsePrice(r.Low)
	volume, _ := strconv.ParseInt(strings.TrimSpace(r.Volume), 10, 64)

	return models.Candle{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		AdjClose:  adj,
		Volume:    volume,
	}, true, nil
}

func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WriteCandles writes candles to the ticker's file in the Yahoo layout.
func (s *CSVSource) WriteCandles(ticker string, candles []models.Candle) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	rows := make([]*yahooRow, len(candles))
	for i, c := range candles {
		rows[i] = &yahooRow{
			Date:     c.Timestamp.Format(models.DateLayout),
			Open:     formatFloat(c.Open),
			High:     formatFloat(c.High),
			Low:      formatFloat(c.Low),
			Close:    formatFloat(c.Close),
			AdjClose: formatFloat(c.Price()),
			Volume:   strconv.FormatInt(c.Volume, 10),
		}
	}

	f, err := os.Create(s.Path(ticker))
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("writing csv: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
