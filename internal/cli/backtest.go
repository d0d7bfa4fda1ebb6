package cli

import (
	"github.com/spf13/cobra"

	"crosscheck/internal/eventlog"
	"crosscheck/internal/models"
	"crosscheck/internal/security"
	"crosscheck/internal/strategy"
	"crosscheck/internal/trend"
)

func newBacktestCmd(app *App) *cobra.Command {
	var (
		sf       strategyFlags
		wf       windowFlags
		writeLog string
		signals  bool
		records  bool
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "backtest <ticker>",
		Short: "Mark crossovers on a ticker's daily prices and validate them",
		Long: `Backtest runs the moving-average crossover rule over a ticker's daily prices,
marks a buy on every golden cross and a sell on every exit, then validates both.

Examples:
  crosscheck backtest SPY
  crosscheck backtest AAPL --exit hold_months --hold-months 9 --signals
  crosscheck backtest MSFT --from 2005-01-01 --write-log msft_log.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ticker := security.SanitizeTicker(args[0])
			if err := security.ValidateTicker(ticker); err != nil {
				return err
			}

			opts, err := app.Config.RunnerOptions()
			if err != nil {
				return err
			}
			if opts, err = wf.apply(opts); err != nil {
				return err
			}
			params, opts, err := sf.resolve(cmd, app.Config, opts)
			if err != nil {
				return err
			}

			r, err := app.Runner(params, opts, save)
			if err != nil {
				return err
			}
			res := r.Ticker(cmd.Context(), ticker)
			if !res.OK() {
				return res.Err
			}

			if writeLog != "" {
				if err := eventlog.WriteFile(writeLog, res.Log); err != nil {
					return err
				}
			}

			perYear := trend.EventsPerYear(res.Log, models.EventBuy)

			if output.IsJSON() {
				out := map[string]interface{}{
					"ticker":                  res.Ticker,
					"strategy":                params,
					"bars":                    res.Log.Len(),
					"golden_cross":            res.GoldenCross,
					"death_cross":             res.DeathCross,
					"golden_crosses_per_year": perYear,
				}
				if signals {
					out["signals"] = strategy.Signals(res.Log)
				}
				return output.JSON(out)
			}

			output.Bold("%s %s", res.Ticker, params)
			output.Dim("%d daily bars, %s to %s", res.Log.Len(),
				FormatDate(res.Log.Rows[0].Date), FormatDate(res.Log.Rows[res.Log.Len()-1].Date))
			output.Println()

			if signals {
				table := NewTable(output, "DATE", "SIGNAL", "PRICE")
				for _, sig := range strategy.Signals(res.Log) {
					table.AddRow(FormatDate(sig.Date), crossLabel(sig.Type), FormatPrice(sig.Price))
				}
				table.Render()
				output.Println()
			}

			printReport(output, *res.GoldenCross, records)
			output.Println()
			printReport(output, *res.DeathCross, records)

			if len(perYear) > 0 {
				output.Println()
				output.Dim("Golden crosses per year: %s", formatYearCounts(perYear))
			}
			if writeLog != "" {
				output.Println()
				output.Success("Event log written to %s", writeLog)
			}
			return nil
		},
	}

	addStrategyFlags(cmd, &sf)
	addWindowFlags(cmd, &wf)
	cmd.Flags().StringVar(&writeLog, "write-log", "", "write the marked event log to this CSV file")
	cmd.Flags().BoolVar(&signals, "signals", false, "list every buy and sell signal")
	cmd.Flags().BoolVar(&records, "records", false, "print every validated event")
	cmd.Flags().BoolVar(&save, "save", false, "save reports to the local store")

	return cmd
}
