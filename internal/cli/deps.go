package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crosscheck/internal/config"
	"crosscheck/internal/feed"
	"crosscheck/internal/notify"
	"crosscheck/internal/resilience"
	"crosscheck/internal/runner"
	"crosscheck/internal/store"
	"crosscheck/internal/strategy"
	"crosscheck/internal/universe"
	"crosscheck/pkg/utils"
)

// App holds the application dependencies. The store and price source are
// created on first use so commands that need neither stay offline.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	ConfigDir string

	store store.DataStore
}

// configDir returns the directory config was loaded from.
func (a *App) configDir() string {
	if a.ConfigDir != "" {
		return a.ConfigDir
	}
	return config.DefaultConfigDir()
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.Config.Data.Database
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.store = st
	return st, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// Source builds the configured price source. Remote sources sit behind a circuit
// breaker and are cached in the store.
func (a *App) Source() (feed.Source, error) {
	cfg := a.Config.Data
	switch cfg.Source {
	case config.SourceCSV:
		return feed.NewCSVSource(cfg.CSVDir), nil
	case config.SourceAlpaca:
		upstream, err := feed.NewAlpacaSource(feed.AlpacaOptions{
			APIKey:    a.Config.Credentials.Alpaca.APIKey,
			APISecret: a.Config.Credentials.Alpaca.APISecret,
			Retry:     utils.DefaultRetryConfig(),
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		guarded := feed.NewGuardedSource(upstream, resilience.DefaultCircuitBreakerConfig(), a.Logger)
		if !cfg.Cache {
			return guarded, nil
		}
		st, err := a.Store()
		if err != nil {
			return nil, err
		}
		return feed.NewCachedSource(guarded, st, cfg.CacheMaxAge, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}

// Scraper returns the constituents scraper for the configured URL.
func (a *App) Scraper() *universe.Scraper {
	return universe.NewScraper(a.Config.Universe.URL)
}

// Notifier returns the configured webhook notifier, or a no-op one.
func (a *App) Notifier() notify.Notifier {
	return notify.New(a.Config.Notify.WebhookURL)
}

// notify sends n and logs delivery failures without failing the command.
func (a *App) notify(cmd *cobra.Command, n notify.Notification) {
	if err := a.Notifier().Send(cmd.Context(), n); err != nil {
		zerolog.Ctx(cmd.Context()).Warn().Err(err).Str("type", string(n.Type)).Msg("Notification not delivered")
	}
}

// Runner builds a batch runner over the configured source and crossover rule.
// Reports are saved to the store when persist is set.
func (a *App) Runner(params strategy.Params, opts runner.Options, persist bool) (*runner.Runner, error) {
	marker, err := strategy.New(params)
	if err != nil {
		return nil, err
	}
	source, err := a.Source()
	if err != nil {
		return nil, err
	}
	if !persist {
		return runner.New(source, marker, opts, nil, a.Logger), nil
	}
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	return runner.New(source, marker, opts, st, a.Logger), nil
}
