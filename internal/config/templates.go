package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# crosscheck configuration

[strategy]
# Fast and slow moving average periods
fast = 50
slow = 200
# Moving average kind: sma, ema
average = "sma"
# Exit rule: death_cross or hold_months
exit = "death_cross"
# Months held before a hold_months exit
hold_months = 9

[validation]
# Window after a golden cross (buy): until_opposite or fixed_months:N
golden_policy = "until_opposite"
# Window after a death cross (sell)
death_policy = "fixed_months:5"
# Compare the window's average or terminal price: average, terminal
basis = "average"

[data]
# Price source: csv or alpaca
source = "csv"
# Directory of <TICKER>.csv files in the Yahoo daily layout
csv_dir = "data"
# SQLite database for cached candles, reports and golden crosses
# database = "~/.config/crosscheck/crosscheck.db"
# Serve candles from the database while younger than cache_max_age
cache = true
cache_max_age = "12h"
# Date range (YYYY-MM-DD); empty means open
from = "1999-01-01"
to = ""
# Request cap across batch workers (0 disables)
requests_per_second = 3.0

[batch]
# Concurrent tickers
workers = 4
# Process only the first N tickers of the universe (0 means all)
limit = 0
# Store reports in the database
persist = true

[universe]
# Constituents page scraped for tickers
url = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
# Explicit tickers used instead of scraping
tickers = []

[notify]
# POST scan results and batch summaries to this URL as JSON (empty disables)
webhook_url = ""

[log]
# debug, info, warn, error, off
level = "info"
# Also write rotated JSON logs to file_path
file = false
# file_path = "~/.config/crosscheck/logs/crosscheck.log"
max_size = 100
max_backups = 7
max_age = 30
`

const credentialsTemplate = `# crosscheck credentials
# WARNING: Keep this file secure! Do not commit to version control.
# ALPACA_API_KEY and ALPACA_SECRET_KEY in the environment or a .env file take precedence.

[alpaca]
api_key = ""
api_secret = ""
`

// TemplatePath returns where the config file lives in configDir.
func TemplatePath(configDir string) string {
	return filepath.Join(configDir, "config.toml")
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(TemplatePath(configDir), []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// WriteCredentialsTemplate writes an empty credentials file unless one exists.
func WriteCredentialsTemplate(configDir string) (string, error) {
	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	// Restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return "", fmt.Errorf("writing credentials template: %w", err)
	}
	return path, nil
}
