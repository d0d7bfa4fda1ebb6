package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/notify"
	"crosscheck/internal/runner"
	"crosscheck/internal/security"
	"crosscheck/internal/universe"
)

// resolveTickers picks tickers from args, then the configured list, then the scraper.
// It returns the tickers and where they came from.
func (a *App) resolveTickers(ctx context.Context, args []string, limit int) ([]string, string, error) {
	var (
		tickers []string
		origin  string
	)
	switch {
	case len(args) > 0:
		for _, arg := range args {
			tickers = append(tickers, universe.ParseList(arg)...)
		}
		origin = "arguments"
	case len(a.Config.Universe.Tickers) > 0:
		tickers = a.Config.Universe.Tickers
		origin = "config"
	default:
		scraper := a.Scraper()
		constituents, err := scraper.Fetch(ctx)
		if err != nil {
			return nil, "", err
		}
		tickers = universe.Tickers(constituents, 0)
		origin = scraper.URL
	}

	tickers, err := security.ValidateTickers(tickers)
	if err != nil {
		return nil, "", err
	}
	if limit > 0 && limit < len(tickers) {
		tickers = tickers[:limit]
	}
	return tickers, origin, nil
}

// failureView is the JSON form of a failed ticker.
type failureView struct {
	Ticker string `json:"ticker"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

func failures(res runner.BatchResult) []failureView {
	out := make([]failureView, 0)
	for _, r := range res.Failed() {
		view := failureView{Ticker: r.Ticker, Error: r.Err.Error()}
		var te *apperrors.TickerError
		if errors.As(r.Err, &te) {
			view.Stage = te.Stage
			view.Error = te.Err.Error()
		}
		out = append(out, view)
	}
	return out
}

func newBatchCmd(app *App) *cobra.Command {
	var (
		sf      strategyFlags
		wf      windowFlags
		limit   int
		workers int
		persist bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "batch [tickers...]",
		Short: "Validate crossovers across many tickers",
		Long: `Batch runs fetch, mark and validate for every ticker on a worker pool and
reports the overall percent correct of golden and death crosses.

Tickers come from the arguments, then universe.tickers in the config, then the
S&P 500 constituents table. A failing ticker is reported and never stops the batch.

Examples:
  crosscheck batch AAPL MSFT SPY
  crosscheck batch --limit 50 --workers 8
  crosscheck batch --exit hold_months --hold-months 9 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			changed := cmd.Flags().Changed

			if !changed("limit") {
				limit = app.Config.Batch.Limit
			}
			if !changed("persist") {
				persist = app.Config.Batch.Persist
			}

			opts, err := app.Config.RunnerOptions()
			if err != nil {
				return err
			}
			if changed("workers") {
				if workers <= 0 {
					return apperrors.NewValidationError("workers", workers, "must be positive")
				}
				opts.Workers = workers
			}
			if opts, err = wf.apply(opts); err != nil {
				return err
			}
			params, opts, err := sf.resolve(cmd, app.Config, opts)
			if err != nil {
				return err
			}

			tickers, origin, err := app.resolveTickers(ctx, args, limit)
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				return apperrors.NewValidationError("tickers", "", "no tickers to validate")
			}

			r, err := app.Runner(params, opts, persist)
			if err != nil {
				return err
			}
			if !output.IsJSON() {
				output.Dim("Validating %d tickers from %s with %s", len(tickers), origin, params)
			}

			res := r.Run(ctx, tickers)
			summary := res.Summarize()
			if summary.Succeeded > 0 {
				app.notify(cmd, notify.Notification{
					Type:  notify.NotificationBatch,
					Title: fmt.Sprintf("%d tickers validated with %s", summary.Succeeded, params),
					Message: fmt.Sprintf("golden cross %s correct, death cross %s correct",
						FormatRate(summary.GoldenCross.Mean), FormatRate(summary.DeathCross.Mean)),
					Data: summary,
				})
			}

			if output.IsJSON() {
				if err := output.JSON(map[string]interface{}{
					"strategy": params,
					"summary":  summary,
					"results":  res.Succeeded(),
					"failures": failures(res),
				}); err != nil {
					return err
				}
			} else {
				printBatch(output, res, summary, verbose)
			}

			if summary.Succeeded == 0 {
				return fmt.Errorf("all %d tickers failed", summary.Tickers)
			}
			return nil
		},
	}

	addStrategyFlags(cmd, &sf)
	addWindowFlags(cmd, &wf)
	cmd.Flags().IntVar(&limit, "limit", 0, "validate at most this many tickers (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent tickers (default from config)")
	cmd.Flags().BoolVar(&persist, "persist", true, "save reports to the local store (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print one row per ticker")

	return cmd
}

func printBatch(output *Output, res runner.BatchResult, s runner.Summary, verbose bool) {
	if verbose {
		output.Println()
		table := NewTable(output, "TICKER", "GOLDEN", "CORRECT", "DEATH", "CORRECT")
		for _, r := range res.Succeeded() {
			table.AddRow(
				r.Ticker,
				strconv.Itoa(len(r.GoldenCross.Records)),
				output.Rate(ReportRate(*r.GoldenCross)),
				strconv.Itoa(len(r.DeathCross.Records)),
				output.Rate(ReportRate(*r.DeathCross)),
			)
		}
		table.Render()
	}

	output.Println()
	output.Bold("Summary")
	output.Printf("  Tickers:       %d (%d succeeded, %d failed)\n", s.Tickers, s.Succeeded, s.Failed)
	printSummary(output, "Golden cross", s.GoldenCross)
	printSummary(output, "Death cross", s.DeathCross)
	output.Printf("  Golden gap:    %s between crosses\n", FormatDays(s.GoldenGapDays))
	output.Printf("  Death gap:     %s between crosses\n", FormatDays(s.DeathGapDays))
	if len(s.GoldenPerYear) > 0 {
		output.Println()
		output.Bold("Golden crosses per year")
		output.Println("  " + formatYearCounts(s.GoldenPerYear))
	}

	if f := failures(res); len(f) > 0 {
		output.Println()
		output.Warning("%d tickers failed", len(f))
		table := NewTable(output, "TICKER", "STAGE", "ERROR")
		for _, v := range f {
			table.AddRow(v.Ticker, v.Stage, TruncateString(v.Error, 80))
		}
		table.Render()
	}
}

func newUniverseCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "universe",
		Short: "List the S&P 500 constituents",
		Long:  "Scrape the S&P 500 constituents table and list ticker, company and CIK.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			scraper := app.Scraper()
			constituents, err := scraper.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(constituents) {
				constituents = constituents[:limit]
			}

			if output.IsJSON() {
				return output.JSON(constituents)
			}
			table := NewTable(output, "TICKER", "COMPANY", "CIK")
			for _, c := range constituents {
				table.AddRow(c.Ticker, TruncateString(c.Name, 40), c.CIK)
			}
			table.Render()
			output.Dim("%d constituents from %s", len(constituents), scraper.URL)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "list at most this many constituents")
	return cmd
}
