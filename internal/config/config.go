// Package config provides configuration management for crosscheck.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/logging"
	"crosscheck/internal/models"
	"crosscheck/internal/runner"
	"crosscheck/internal/strategy"
	"crosscheck/internal/trend"
)

// Data sources.
const (
	SourceCSV    = "csv"
	SourceAlpaca = "alpaca"
)

// Config holds all application configuration.
type Config struct {
	Strategy    strategy.Params  `mapstructure:"strategy"`
	Validation  ValidationConfig `mapstructure:"validation"`
	Data        DataConfig       `mapstructure:"data"`
	Batch       BatchConfig      `mapstructure:"batch"`
	Universe    UniverseConfig   `mapstructure:"universe"`
	Notify      NotifyConfig     `mapstructure:"notify"`
	Log         LogConfig        `mapstructure:"log"`
	Credentials Credentials      `mapstructure:"-"` // Loaded separately
	// Path is the config file that was read, empty when defaults were used.
	Path string `mapstructure:"-"`
}

// ValidationConfig selects the forward windows and comparison basis.
type ValidationConfig struct {
	GoldenPolicy string `mapstructure:"golden_policy"` // until_opposite, fixed_months:N
	DeathPolicy  string `mapstructure:"death_policy"`
	Basis        string `mapstructure:"basis"` // average, terminal
}

// DataConfig holds price data configuration.
type DataConfig struct {
	Source            string        `mapstructure:"source"` // csv, alpaca
	CSVDir            string        `mapstructure:"csv_dir"`
	Database          string        `mapstructure:"database"`
	Cache             bool          `mapstructure:"cache"`
	CacheMaxAge       time.Duration `mapstructure:"cache_max_age"`
	From              string        `mapstructure:"from"`
	To                string        `mapstructure:"to"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// BatchConfig holds batch run configuration.
type BatchConfig struct {
	Workers int  `mapstructure:"workers"`
	Limit   int  `mapstructure:"limit"`
	Persist bool `mapstructure:"persist"`
}

// UniverseConfig holds the ticker universe configuration.
type UniverseConfig struct {
	URL     string   `mapstructure:"url"`
	Tickers []string `mapstructure:"tickers"` // used instead of scraping when set
}

// NotifyConfig holds notification configuration.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Credentials holds API credentials.
type Credentials struct {
	Alpaca AlpacaCredentials `mapstructure:"alpaca"`
}

// AlpacaCredentials holds Alpaca market data credentials.
type AlpacaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/crosscheck"
	}
	return filepath.Join(home, ".config", "crosscheck")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config file is
// replaced by a commented template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	cfg := &Config{}
	path, err := loadConfigFile(configDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	cfg.Path = path

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	// defaults always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	p := strategy.DefaultParams()
	v.SetDefault("strategy.fast", p.Fast)
	v.SetDefault("strategy.slow", p.Slow)
	v.SetDefault("strategy.average", p.Average)
	v.SetDefault("strategy.exit", string(p.Exit))
	v.SetDefault("strategy.hold_months", p.HoldMonths)

	v.SetDefault("validation.golden_policy", string(trend.KindUntilOpposite))
	v.SetDefault("validation.death_policy", "fixed_months:5")
	v.SetDefault("validation.basis", string(trend.BasisAverage))

	v.SetDefault("data.source", SourceCSV)
	v.SetDefault("data.csv_dir", "data")
	v.SetDefault("data.database", filepath.Join(DefaultConfigDir(), "crosscheck.db"))
	v.SetDefault("data.cache", true)
	v.SetDefault("data.cache_max_age", "12h")
	v.SetDefault("data.from", "1999-01-01")
	v.SetDefault("data.to", "")
	v.SetDefault("data.requests_per_second", 3.0)

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.limit", 0)
	v.SetDefault("batch.persist", true)

	v.SetDefault("universe.url", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies")
	v.SetDefault("universe.tickers", []string{})

	v.SetDefault("notify.webhook_url", "")

	lc := logging.DefaultLogConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.file", lc.File)
	v.SetDefault("log.file_path", lc.FilePath)
	v.SetDefault("log.max_size", lc.MaxSize)
	v.SetDefault("log.max_backups", lc.MaxBackups)
	v.SetDefault("log.max_age", lc.MaxAge)
}

func loadConfigFile(configDir string, target *Config) (string, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	v.SetEnvPrefix("CROSSCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return "", err
		}
	} else {
		path = v.ConfigFileUsed()
	}

	return path, v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	return v.Unmarshal(creds)
}

// loadDotEnv loads .env files from the working directory and the config directory.
// Variables already set in the environment win.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Credentials.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Credentials.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" && cfg.Credentials.Alpaca.APIKey == "" {
		cfg.Credentials.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" && cfg.Credentials.Alpaca.APISecret == "" {
		cfg.Credentials.Alpaca.APISecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}

	if _, err := c.GoldenPolicy(); err != nil {
		return apperrors.NewValidationError("validation.golden_policy", c.Validation.GoldenPolicy, err.Error())
	}
	if _, err := c.DeathPolicy(); err != nil {
		return apperrors.NewValidationError("validation.death_policy", c.Validation.DeathPolicy, err.Error())
	}
	if _, err := trend.ParseBasis(c.Validation.Basis); err != nil {
		return apperrors.NewValidationError("validation.basis", c.Validation.Basis, err.Error())
	}

	switch c.Data.Source {
	case SourceCSV, SourceAlpaca:
	default:
		return apperrors.NewValidationError("data.source", c.Data.Source, "must be 'csv' or 'alpaca'")
	}
	if c.Data.RequestsPerSecond < 0 {
		return apperrors.NewValidationError("data.requests_per_second", c.Data.RequestsPerSecond, "must be non-negative")
	}
	from, to, err := c.DateRange()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return apperrors.NewValidationError("data.from", c.Data.From, "must be before data.to")
	}

	if c.Batch.Workers <= 0 {
		return apperrors.NewValidationError("batch.workers", c.Batch.Workers, "must be positive")
	}
	if c.Batch.Limit < 0 {
		return apperrors.NewValidationError("batch.limit", c.Batch.Limit, "must be non-negative")
	}

	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperrors.NewValidationError("notify.webhook_url", c.Notify.WebhookURL, "must be an http or https URL")
		}
	}

	return nil
}

// GoldenPolicy returns the window policy for buy events.
func (c *Config) GoldenPolicy() (trend.WindowPolicy, error) {
	return trend.ParsePolicy(c.Validation.GoldenPolicy, models.EventBuy)
}

// DeathPolicy returns the window policy for sell events.
func (c *Config) DeathPolicy() (trend.WindowPolicy, error) {
	return trend.ParsePolicy(c.Validation.DeathPolicy, models.EventSell)
}

// DateRange parses data.from and data.to; empty values are open.
func (c *Config) DateRange() (time.Time, time.Time, error) {
	from, err := parseOptionalDate(c.Data.From)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("data.from", c.Data.From, "must be YYYY-MM-DD")
	}
	to, err := parseOptionalDate(c.Data.To)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("data.to", c.Data.To, "must be YYYY-MM-DD")
	}
	return from, to, nil
}

func parseOptionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.DateLayout, strings.TrimSpace(s))
}

// RunnerOptions builds batch runner options from the configuration.
func (c *Config) RunnerOptions() (runner.Options, error) {
	golden, err := c.GoldenPolicy()
	if err != nil {
		return runner.Options{}, err
	}
	death, err := c.DeathPolicy()
	if err != nil {
		return runner.Options{}, err
	}
	basis, err := trend.ParseBasis(c.Validation.Basis)
	if err != nil {
		return runner.Options{}, err
	}
	from, to, err := c.DateRange()
	if err != nil {
		return runner.Options{}, err
	}

	return runner.Options{
		Workers:           c.Batch.Workers,
		From:              from,
		To:                to,
		GoldenPolicy:      golden,
		DeathPolicy:       death,
		Basis:             basis,
		RequestsPerSecond: c.Data.RequestsPerSecond,
	}, nil
}

// LoggingConfig converts the log section for the logging package.
func (c *Config) LoggingConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    true,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}

// HasAlpacaCredentials reports whether both Alpaca keys are set.
func (c *Config) HasAlpacaCredentials() bool {
	return c.Credentials.Alpaca.APIKey != "" && c.Credentials.Alpaca.APISecret != ""
}
