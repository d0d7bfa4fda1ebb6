package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"crosscheck/internal/eventlog"
	"crosscheck/internal/models"
	"crosscheck/internal/security"
	"crosscheck/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		eventType string
		since     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history [title]",
		Short: "List saved trend reports",
		Long: `List trend reports saved by validate --save, backtest --save and batch.

Examples:
  crosscheck history
  crosscheck history SPY --type buy
  crosscheck history show <id>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.ReportFilter{Limit: limit}
			if len(args) == 1 {
				filter.Title = args[0]
			}
			if eventType != "" {
				t, err := models.ParseEventType(eventType)
				if err != nil {
					return err
				}
				filter.EventType = t
			}
			if since != "" {
				t, err := eventlog.ParseDate(since)
				if err != nil {
					return err
				}
				filter.Since = t
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			reports, err := st.GetReports(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(reports)
			}
			if len(reports) == 0 {
				output.Info("No saved reports")
				return nil
			}
			table := NewTable(output, "ID", "TITLE", "TYPE", "POLICY", "EVENTS", "CORRECT", "SAVED")
			for _, r := range reports {
				table.AddRow(
					shortID(r.ID),
					r.Title,
					string(r.EventType),
					r.Policy,
					strconv.Itoa(len(r.Records)),
					output.Rate(ReportRate(r)),
					r.CreatedAt.Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "only buy or sell reports")
	cmd.Flags().StringVar(&since, "since", "", "only reports saved on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved report with its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st, err := app.Store()
			if err != nil {
				return err
			}
			report, err := st.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printReport(output, *report, true)
			return nil
		},
	})

	return cmd
}

func newCrossesCmd(app *App) *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "crosses [ticker]",
		Short: "List golden crosses recorded by scan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.CrossFilter{Limit: limit}
			if len(args) == 1 {
				ticker := security.SanitizeTicker(args[0])
				if err := security.ValidateTicker(ticker); err != nil {
					return err
				}
				filter.Ticker = ticker
			}
			var err error
			if from != "" {
				if filter.From, err = eventlog.ParseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = eventlog.ParseDate(to); err != nil {
					return err
				}
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			crosses, err := st.GetGoldenCrosses(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(crosses)
			}
			if len(crosses) == 0 {
				output.Info("No recorded golden crosses")
				return nil
			}
			table := NewTable(output, "TICKER", "DATE", "PRICE", "RECORDED")
			for _, c := range crosses {
				table.AddRow(c.Ticker, FormatDate(c.Date), FormatPrice(c.Price), c.RecordedAt.Format("2006-01-02 15:04"))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first cross date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last cross date YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of crosses")

	return cmd
}

// shortID abbreviates a report ID for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
