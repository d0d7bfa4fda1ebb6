package cli

import (
	"context"
	"strconv"
	"strings"

	"crosscheck/internal/models"
	"crosscheck/internal/store"
	"crosscheck/internal/trend"
)

// parseEventTypes parses --type; "both" and empty select buys and sells.
func parseEventTypes(s string) ([]models.EventType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "both" || s == "all" {
		return []models.EventType{models.EventBuy, models.EventSell}, nil
	}
	t, err := models.ParseEventType(s)
	if err != nil {
		return nil, err
	}
	return []models.EventType{t}, nil
}

// crossLabel names the cross behind an event type.
func crossLabel(t models.EventType) string {
	if t == models.EventSell {
		return "death cross"
	}
	return "golden cross"
}

// printReport prints a report summary and, optionally, one row per record.
func printReport(output *Output, r models.TrendReport, records bool) {
	output.Bold("%s %s", r.Title, crossLabel(r.EventType))
	if r.ID != "" {
		output.Dim("  id %s", r.ID)
	}
	output.Printf("  Policy:          %s (%s)\n", r.Policy, r.Basis)
	output.Printf("  Events:          %d validated, %d skipped\n", len(r.Records), r.Skipped)
	output.Printf("  Valid:           %d\n", r.ValidCount())
	output.Printf("  Percent correct: %s\n", output.Rate(ReportRate(r)))

	if !records || len(r.Records) == 0 {
		return
	}
	output.Println()
	table := NewTable(output, "DATE", "PRICE", "WINDOW", "CHANGE", "WINDOW END", "ROWS", "RESULT")
	for _, rec := range r.Records {
		target := rec.AveragePrice
		if r.Basis == string(trend.BasisTerminal) {
			target = rec.TerminalPrice
		}
		end := FormatDate(rec.WindowEnd)
		if rec.Truncated {
			end += "*"
		}
		table.AddRow(
			FormatDate(rec.Date),
			FormatPrice(rec.Price),
			FormatPrice(target),
			FormatChange(rec.Price, target),
			end,
			strconv.Itoa(rec.WindowLen),
			output.Verdict(rec.Valid),
		)
	}
	table.Render()
}

// printSummary prints the aggregate rate of several reports.
func printSummary(output *Output, label string, s trend.Summary) {
	output.Printf("  %s %s over %d reports (%d undefined), pooled %s over %d events\n",
		PadRight(label+":", 14), output.Rate(s.Mean), s.Defined, s.Undefined,
		FormatRate(s.Pooled), s.Records)
}

// saveReports persists reports, filling in their IDs.
func saveReports(ctx context.Context, st store.DataStore, reports []models.TrendReport) error {
	for i := range reports {
		if err := st.SaveReport(ctx, &reports[i]); err != nil {
			return err
		}
	}
	return nil
}
