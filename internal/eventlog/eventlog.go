// Package eventlog reads and writes event logs in the tabular layout produced by
// backtest writers: optional banner lines, a header row containing "datetime",
// one row per bar, and optional footer sections.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

// logRow mirrors the columns the reader cares about; other columns are ignored.
type logRow struct {
	Ticker   string `csv:"ticker"`
	DateTime string `csv:"datetime"`
	AdjClose string `csv:"adjclose"`
	Close    string `csv:"close"`
	Buy      string `csv:"buy"`
	Sell     string `csv:"sell"`
}

var knownColumns = map[string]bool{
	"id": true, "len": true, "ticker": true, "datetime": true, "open": true, "high": true,
	"low": true, "close": true, "adjclose": true, "volume": true, "openinterest": true,
	"buy": true, "sell": true,
}

const utf8BOM = "\uFEFF"

// ReadFile reads an event log from disk. The file name (without extension) is the
// fallback title.
func ReadFile(path string) (models.EventLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.EventLog{}, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return Read(f, base)
}

// Read parses an event log. The title comes from a ticker column, else from the
// second header column when that is not a known column, else fallbackTitle.
func Read(r io.Reader, fallbackTitle string) (models.EventLog, error) {
	header, body, headerLine, err := splitTable(r)
	if err != nil {
		return models.EventLog{}, err
	}

	title := fallbackTitle
	if len(header) > 1 && !knownColumns[strings.ToLower(strings.TrimSpace(header[1]))] {
		title = strings.TrimSpace(header[1])
	}

	var rows []logRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return models.EventLog{}, apperrors.NewDataError("eventlog", title, "decoding rows", err)
	}

	log := models.EventLog{Title: title, Rows: make([]models.PriceRow, 0, len(rows))}
	for i, rec := range rows {
		line := headerLine + i + 1
		if strings.TrimSpace(rec.DateTime) == "" {
			break
		}
		if i == 0 && strings.TrimSpace(rec.Ticker) != "" {
			log.Title = strings.TrimSpace(rec.Ticker)
		}

		row, err := parseRow(rec, log.Title, line)
		if err != nil {
			return models.EventLog{}, err
		}
		log.Rows = append(log.Rows, row)
	}

	if err := log.Validate(); err != nil {
		return models.EventLog{}, apperrors.NewDataError("eventlog", log.Title, err.Error(), apperrors.ErrInvalidEventLog)
	}
	return log, nil
}

// splitTable locates the header row and returns it together with the CSV text from
// the header up to the first footer line. headerLine is 1-based.
func splitTable(r io.Reader) ([]string, []byte, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		header     []string
		headerLine int
		body       bytes.Buffer
		lineNo     int
	)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}

		if header == nil {
			fields, err := csv.NewReader(strings.NewReader(line)).Read()
			if err != nil || !containsColumn(fields, "datetime") {
				continue
			}
			header = fields
			headerLine = lineNo
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "=") {
			break
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, 0, fmt.Errorf("reading event log: %w", err)
	}
	if header == nil {
		return nil, nil, 0, apperrors.NewDataError("eventlog", "", "no header row with a datetime column", apperrors.ErrInvalidEventLog)
	}
	return header, body.Bytes(), headerLine, nil
}

func containsColumn(fields []string, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), name) {
			return true
		}
	}
	return false
}

func parseRow(rec logRow, title string, line int) (models.PriceRow, error) {
	date, err := ParseDate(rec.DateTime)
	if err != nil {
		return models.PriceRow{}, apperrors.NewRowError("eventlog", title, line,
			fmt.Sprintf("datetime %q", rec.DateTime), apperrors.ErrMalformedDate)
	}

	raw := strings.TrimSpace(rec.AdjClose)
	if raw == "" || strings.EqualFold(raw, "nan") {
		raw = strings.TrimSpace(rec.Close)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.PriceRow{}, apperrors.NewRowError("eventlog", title, line,
			fmt.Sprintf("price %q", raw), apperrors.ErrMalformedPrice)
	}

	return models.PriceRow{
		Date:     date,
		AdjClose: price,
		Buy:      marked(rec.Buy),
		Sell:     marked(rec.Sell),
	}, nil
}

// ParseDate parses a YYYY-MM-DD date, ignoring any time suffix.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i >= 0 {
		s = s[:i]
	}
	return time.Parse(models.DateLayout, s)
}

// marked reports marker presence: any value other than empty or NaN counts.
func marked(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "nan")
}

// Write emits the log as ticker,datetime,adjclose,buy,sell rows.
func Write(w io.Writer, log models.EventLog) error {
	rows := make([]*logOut, len(log.Rows))
	for i, r := range log.Rows {
		rows[i] = &logOut{
			Ticker:   log.Title,
			DateTime: r.Date.Format(models.DateLayout),
			AdjClose: strconv.FormatFloat(r.AdjClose, 'f', -1, 64),
			Buy:      marker(r.Buy, r.AdjClose),
			Sell:     marker(r.Sell, r.AdjClose),
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing event log: %w", err)
	}
	return nil
}

// WriteFile writes the log to path.
func WriteFile(path string, log models.EventLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating event log: %w", err)
	}
	if err := Write(f, log); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type logOut struct {
	Ticker   string `csv:"ticker"`
	DateTime string `csv:"datetime"`
	AdjClose string `csv:"adjclose"`
	Buy      string `csv:"buy"`
	Sell     string `csv:"sell"`
}

func marker(set bool, price float64) string {
	if !set {
		return ""
	}
	return strconv.FormatFloat(price, 'f', -1, 64)
}
