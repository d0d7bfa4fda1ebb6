// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Batch workers share the pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Daily candles per ticker
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		adjclose REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	-- One row per validated event log and event type
	CREATE TABLE IF NOT EXISTS trend_reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		event_type TEXT NOT NULL,
		policy TEXT NOT NULL,
		basis TEXT NOT NULL,
		skipped INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trend_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL REFERENCES trend_reports(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		date DATETIME NOT NULL,
		price REAL NOT NULL,
		average_price REAL NOT NULL,
		terminal_price REAL NOT NULL,
		window_end DATETIME NOT NULL,
		window_len INTEGER NOT NULL,
		truncated INTEGER NOT NULL DEFAULT 0,
		valid INTEGER NOT NULL DEFAULT 0
	);

	-- Golden crosses found by scans
	CREATE TABLE IF NOT EXISTS golden_crosses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		date DATETIME NOT NULL,
		price REAL NOT NULL,
		recorded_at DATETIME NOT NULL,
		UNIQUE(ticker, date)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_candles_symbol ON candles(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_reports_title ON trend_reports(title, event_type);
	CREATE INDEX IF NOT EXISTS idx_records_report ON trend_records(report_id, seq);
	CREATE INDEX IF NOT EXISTS idx_crosses_date ON golden_crosses(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database, replacing existing days.
func (s *SQLiteStore) SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, adjclose, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, ticker, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Price(), c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles from the database. Zero bounds are open.
func (s *SQLiteStore) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	if to.IsZero() {
		to = endOfTime
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, adjclose, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, ticker, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.AdjClose, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, ticker string) (time.Time, error) {
	var timestamp time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp FROM candles WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1
	`, ticker).Scan(&timestamp)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	return timestamp.UTC(), nil
}

// ============================================================================
// Trend Report Methods
// ============================================================================

// SaveReport stores a report and its records. A missing ID or creation time is
// filled in on the report.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *models.TrendReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO trend_reports (id, title, event_type, policy, basis, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.Title, string(report.EventType), report.Policy, report.Basis, report.Skipped, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trend_records WHERE report_id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trend_records (report_id, seq, date, price, average_price, terminal_price, window_end, window_len, truncated, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range report.Records {
		_, err := stmt.ExecContext(ctx, report.ID, i, r.Date.UTC(), r.Price, r.AveragePrice, r.TerminalPrice,
			r.WindowEnd.UTC(), r.WindowLen, boolToInt(r.Truncated), boolToInt(r.Valid))
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReport retrieves one report with its records.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*models.TrendReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, event_type, policy, basis, skipped, created_at
		FROM trend_reports WHERE id = ?
	`, id)

	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewDataError("report", id, "no such report", apperrors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := s.loadRecords(ctx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetReports retrieves reports matching the filter, newest first.
func (s *SQLiteStore) GetReports(ctx context.Context, filter ReportFilter) ([]models.TrendReport, error) {
	query := `SELECT id, title, event_type, policy, basis, skipped, created_at FROM trend_reports WHERE 1=1`
	var args []interface{}

	if filter.Title != "" {
		query += " AND title = ?"
		args = append(args, filter.Title)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.EventType))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY created_at DESC, title ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	var reports []models.TrendReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	for i := range reports {
		if err := s.loadRecords(ctx, &reports[i]); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (models.TrendReport, error) {
	var (
		r         models.TrendReport
		eventType string
	)
	if err := row.Scan(&r.ID, &r.Title, &eventType, &r.Policy, &r.Basis, &r.Skipped, &r.CreatedAt); err != nil {
		return models.TrendReport{}, err
	}
	r.EventType = models.EventType(eventType)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (s *SQLiteStore) loadRecords(ctx context.Context, report *models.TrendReport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, price, average_price, terminal_price, window_end, window_len, truncated, valid
		FROM trend_records WHERE report_id = ? ORDER BY seq ASC
	`, report.ID)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	report.Records = make([]models.TrendRecord, 0)
	for rows.Next() {
		var (
			rec              models.TrendRecord
			truncated, valid int
		)
		if err := rows.Scan(&rec.Date, &rec.Price, &rec.AveragePrice, &rec.TerminalPrice,
			&rec.WindowEnd, &rec.WindowLen, &truncated, &valid); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Date = rec.Date.UTC()
		rec.WindowEnd = rec.WindowEnd.UTC()
		rec.Truncated = truncated != 0
		rec.Valid = valid != 0
		report.Records = append(report.Records, rec)
	}
	return rows.Err()
}

// ============================================================================
// Golden Cross Methods
// ============================================================================

// SaveGoldenCross records a cross; recording the same ticker and day again updates it.
func (s *SQLiteStore) SaveGoldenCross(ctx context.Context, cross GoldenCross) error {
	if cross.RecordedAt.IsZero() {
		cross.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO golden_crosses (ticker, date, price, recorded_at)
		VALUES (?, ?, ?, ?)
	`, strings.ToUpper(cross.Ticker), cross.Date.UTC(), cross.Price, cross.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save golden cross: %w", err)
	}
	return nil
}

// GetGoldenCrosses retrieves recorded crosses, newest first.
func (s *SQLiteStore) GetGoldenCrosses(ctx context.Context, filter CrossFilter) ([]GoldenCross, error) {
	query := `SELECT ticker, date, price, recorded_at FROM golden_crosses WHERE 1=1`
	var args []interface{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, strings.ToUpper(filter.Ticker))
	}
	if !filter.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, filter.To.UTC())
	}

	query += " ORDER BY date DESC, ticker ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query golden crosses: %w", err)
	}
	defer rows.Close()

	var crosses []GoldenCross
	for rows.Next() {
		var c GoldenCross
		if err := rows.Scan(&c.Ticker, &c.Date, &c.Price, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan golden cross: %w", err)
		}
		c.Date = c.Date.UTC()
		c.RecordedAt = c.RecordedAt.UTC()
		crosses = append(crosses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating golden crosses: %w", err)
	}
	return crosses, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a key.
func (s *SQLiteStore) GetLastSync(key string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, key).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[key] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a key.
func (s *SQLiteStore) SetLastSync(key string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, key, t.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[key] = t
	s.mu.Unlock()

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
