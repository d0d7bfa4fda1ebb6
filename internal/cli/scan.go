package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crosscheck/internal/eventlog"
	"crosscheck/internal/models"
	"crosscheck/internal/notify"
	"crosscheck/internal/store"
	"crosscheck/internal/strategy"
)

func newScanCmd(app *App) *cobra.Command {
	var (
		sf   strategyFlags
		date string
		save bool
	)

	cmd := &cobra.Command{
		Use:   "scan [tickers...]",
		Short: "Find golden crosses on a date",
		Long: `Scan marks crossovers for every ticker and lists the golden crosses that fall
on the given date (today by default). Found crosses are recorded in the local store.

Tickers are resolved like batch: arguments, then universe.tickers, then the S&P 500.

Examples:
  crosscheck scan
  crosscheck scan --date 2020-07-14 AAPL MSFT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			asOf := time.Now().UTC()
			if date != "" {
				parsed, err := eventlog.ParseDate(date)
				if err != nil {
					return err
				}
				asOf = parsed
			}

			opts, err := app.Config.RunnerOptions()
			if err != nil {
				return err
			}
			params, opts, err := sf.resolve(cmd, app.Config, opts)
			if err != nil {
				return err
			}
			if opts.To.IsZero() || opts.To.Before(asOf) {
				opts.To = asOf
			}

			tickers, _, err := app.resolveTickers(ctx, args, app.Config.Batch.Limit)
			if err != nil {
				return err
			}
			r, err := app.Runner(params, opts, false)
			if err != nil {
				return err
			}
			res := r.Run(ctx, tickers)

			found := make([]strategy.Signal, 0)
			for _, t := range res.Succeeded() {
				found = append(found, strategy.CrossesOn(t.Log, asOf, models.EventBuy)...)
			}

			if save && len(found) > 0 {
				st, err := app.Store()
				if err != nil {
					return err
				}
				now := time.Now().UTC()
				for _, sig := range found {
					if err := st.SaveGoldenCross(ctx, store.GoldenCross{
						Ticker:     sig.Ticker,
						Date:       sig.Date,
						Price:      sig.Price,
						RecordedAt: now,
					}); err != nil {
						return err
					}
				}
			}

			if len(found) > 0 {
				app.notify(cmd, crossesNotification(asOf, found))
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"date":    FormatDate(asOf),
					"scanned": len(tickers),
					"failed":  failures(res),
					"crosses": found,
				})
			}

			if len(found) == 0 {
				output.Info("No golden crosses on %s across %d tickers", FormatDate(asOf), len(tickers))
			} else {
				table := NewTable(output, "TICKER", "DATE", "PRICE")
				for _, sig := range found {
					table.AddRow(sig.Ticker, FormatDate(sig.Date), FormatPrice(sig.Price))
				}
				table.Render()
				output.Success("%d golden crosses on %s", len(found), FormatDate(asOf))
			}
			if n := len(res.Failed()); n > 0 {
				output.Warning("%d of %d tickers failed; run with --debug for details", n, len(tickers))
			}
			return nil
		},
	}

	addStrategyFlags(cmd, &sf)
	cmd.Flags().StringVar(&date, "date", "", "date to scan YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&save, "save", true, "record found crosses in the local store")

	return cmd
}

func crossesNotification(asOf time.Time, found []strategy.Signal) notify.Notification {
	tickers := make([]string, len(found))
	for i, sig := range found {
		tickers[i] = sig.Ticker
	}
	return notify.Notification{
		Type:    notify.NotificationCrosses,
		Title:   fmt.Sprintf("%d golden crosses on %s", len(found), FormatDate(asOf)),
		Message: strings.Join(tickers, ", "),
		Data:    found,
	}
}
