package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crosscheck/internal/eventlog"
	"crosscheck/internal/models"
	"crosscheck/internal/runner"
	"crosscheck/internal/trend"
)

func newValidateCmd(app *App) *cobra.Command {
	var (
		wf        windowFlags
		eventType string
		records   bool
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "validate <event-log.csv>...",
		Short: "Validate the buy and sell markers of event-log files",
		Long: `Validate reads event-log CSV files (datetime, adjclose, buy, sell columns, as
written by a backtest trade log) and reports, for every buy and sell marker, whether
the forward window confirmed it.

Examples:
  crosscheck validate spy_log.csv
  crosscheck validate --type buy --golden-policy fixed_months:9 logs/*.csv
  crosscheck validate --basis terminal --records --save aapl.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			types, err := parseEventTypes(eventType)
			if err != nil {
				return err
			}
			opts, err := app.Config.RunnerOptions()
			if err != nil {
				return err
			}
			if opts, err = wf.apply(opts); err != nil {
				return err
			}
			validator := runner.New(nil, nil, opts, nil, app.Logger)

			var reports []models.TrendReport
			for _, path := range args {
				log, err := eventlog.ReadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				golden, death, err := validator.Validate(log)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, t := range types {
					if t == models.EventBuy {
						reports = append(reports, golden)
					} else {
						reports = append(reports, death)
					}
				}
			}

			if save {
				st, err := app.Store()
				if err != nil {
					return err
				}
				if err := saveReports(cmd.Context(), st, reports); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(reports)
			}

			for i, r := range reports {
				if i > 0 {
					output.Println()
				}
				printReport(output, r, records)
			}
			if len(args) > 1 {
				output.Println()
				output.Bold("Overall")
				for _, t := range types {
					printSummary(output, crossLabel(t), trend.Summarize(filterReports(reports, t)))
				}
			}
			if save {
				output.Println()
				output.Success("Saved %d reports", len(reports))
			}
			return nil
		},
	}

	addWindowFlags(cmd, &wf)
	cmd.Flags().StringVar(&eventType, "type", "both", "events to validate: buy, sell or both")
	cmd.Flags().BoolVar(&records, "records", false, "print every validated event")
	cmd.Flags().BoolVar(&save, "save", false, "save reports to the local store")

	return cmd
}

func filterReports(reports []models.TrendReport, t models.EventType) []models.TrendReport {
	var out []models.TrendReport
	for _, r := range reports {
		if r.EventType == t {
			out = append(out, r)
		}
	}
	return out
}
