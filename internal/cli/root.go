// Package cli provides the command-line interface for the trend validator.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crosscheck/internal/config"
	"crosscheck/internal/logging"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// NewRootCmd creates the root command for the CLI.
// A nil cfg is loaded from --config before any command runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "crosscheck",
		Short: "Golden cross and death cross trend validator",
		Long: `crosscheck measures how often moving-average crossovers anticipate the trend.

Every buy (golden cross) is valid when the forward average price exceeds the buy
price; every sell (death cross) is valid when it stays below the sell price.
Signals come from event-log CSV files or from the built-in crossover rule run over
daily prices from CSV files or the Alpaca market data API.

Use 'crosscheck <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(loaded.LoggingConfig())
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			cmd.SetContext(app.Logger.WithContext(cmd.Context()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/crosscheck)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addValidationCommands(rootCmd, app)
	addSignalCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

// addValidationCommands adds the trend validation commands.
func addValidationCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newValidateCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
}

// addSignalCommands adds the universe and scan commands.
func addSignalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newUniverseCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
}

// addHistoryCommands adds commands that read the local store.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newCrossesCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("crosscheck v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
