package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"crosscheck/internal/config"
	"crosscheck/internal/security"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				masked, err := maskedConfig(app.Config)
				if err != nil {
					return err
				}
				return output.JSON(masked)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"dir":  app.configDir(),
					"file": config.TemplatePath(app.configDir()),
				})
			}
			output.Println(app.configDir())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "credentials",
		Short: "Write a credentials.toml template",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path, err := config.WriteCredentialsTemplate(app.configDir())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("Credentials template: %s", path)
			output.Dim("ALPACA_API_KEY and ALPACA_SECRET_KEY in the environment or .env take precedence.")
			return nil
		},
	})

	return cmd
}

// maskedConfig renders the configuration as a map with secrets masked.
func maskedConfig(cfg *config.Config) (map[string]interface{}, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return security.MaskMap(data), nil
}

func showConfig(output *Output, cfg *config.Config) error {
	row := func(label string, value interface{}) {
		output.Printf("  %s %v\n", PadRight(label+":", 18), value)
	}

	if cfg.Path != "" {
		output.Dim("Loaded from %s", cfg.Path)
	} else {
		output.Dim("Using built-in defaults")
	}
	output.Println()

	output.Bold("Strategy")
	row("Rule", cfg.Strategy.String())
	output.Println()

	output.Bold("Validation")
	golden, _ := cfg.GoldenPolicy()
	death, _ := cfg.DeathPolicy()
	row("Golden policy", golden)
	row("Death policy", death)
	row("Basis", cfg.Validation.Basis)
	output.Println()

	output.Bold("Data")
	row("Source", cfg.Data.Source)
	if cfg.Data.Source == config.SourceCSV {
		row("CSV directory", cfg.Data.CSVDir)
	}
	row("Database", cfg.Data.Database)
	row("Cache", cfg.Data.Cache)
	row("Cache max age", FormatDuration(cfg.Data.CacheMaxAge))
	row("Range", rangeLabel(cfg.Data.From, cfg.Data.To))
	row("Requests/sec", cfg.Data.RequestsPerSecond)
	output.Println()

	output.Bold("Batch")
	row("Workers", cfg.Batch.Workers)
	row("Limit", cfg.Batch.Limit)
	row("Persist", cfg.Batch.Persist)
	if len(cfg.Universe.Tickers) > 0 {
		row("Tickers", TruncateString(strings.Join(cfg.Universe.Tickers, ","), 60))
	} else {
		row("Universe URL", cfg.Universe.URL)
	}
	output.Println()

	output.Bold("Credentials")
	row("Alpaca key", maskOrUnset(cfg.Credentials.Alpaca.APIKey))
	row("Alpaca secret", maskOrUnset(cfg.Credentials.Alpaca.APISecret))

	return nil
}

func maskOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return security.MaskCredential(v)
}

func rangeLabel(from, to string) string {
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "today"
	}
	return from + " .. " + to
}
