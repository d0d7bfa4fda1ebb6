// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"crosscheck/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "crosscheck", "logs", "crosscheck.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a logger with the default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig builds a logger writing to stderr, a rotated file, both or
// neither. Stdout stays reserved for command output.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	return zerolog.New(logWriter(cfg)).With().Timestamp().Caller().Logger()
}

func logWriter(cfg LogConfig) io.Writer {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    color.NoColor,
		})
	}
	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return zerolog.MultiLevelWriter(writers...)
	}
}

// parseLevel maps a config level to zerolog, accepting "off" and falling back to info.
func parseLevel(level string) zerolog.Level {
	if level == "off" {
		return zerolog.Disabled
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithTicker adds a ticker to the logger context.
func WithTicker(logger zerolog.Logger, ticker string) zerolog.Logger {
	return logger.With().Str("ticker", ticker).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogReport logs the outcome of one trend report.
func LogReport(logger zerolog.Logger, report models.TrendReport) {
	event := logger.Info().
		Str("event", "trend_report").
		Str("title", report.Title).
		Str("type", string(report.EventType)).
		Str("policy", report.Policy).
		Int("records", len(report.Records)).
		Int("valid", report.ValidCount()).
		Int("skipped", report.Skipped)

	if pct, err := report.PercentCorrect(); err == nil {
		event = event.Float64("percent_correct", pct)
	}
	event.Msg("Trend report built")
}

// LogSkippedEvent logs an event dropped because its forward window was empty.
func LogSkippedEvent(logger zerolog.Logger, title string, eventType models.EventType, date time.Time) {
	logger.Debug().
		Str("event", "skipped_event").
		Str("title", title).
		Str("type", string(eventType)).
		Str("date", date.Format(models.DateLayout)).
		Msg("Event has no forward window")
}

// LogTickerFailure logs a ticker that failed inside a batch.
func LogTickerFailure(logger zerolog.Logger, ticker, stage string, err error) {
	logger.Warn().
		Str("event", "ticker_failure").
		Str("ticker", ticker).
		Str("stage", stage).
		Err(err).
		Msg("Ticker skipped")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
