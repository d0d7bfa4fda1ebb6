package runner

import (
	"crosscheck/internal/models"
	"crosscheck/internal/trend"
)

// BatchResult holds per-ticker results in input order.
type BatchResult struct {
	Results []TickerResult
}

// Succeeded returns the tickers that completed.
func (b BatchResult) Succeeded() []TickerResult {
	var out []TickerResult
	for _, r := range b.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the tickers that failed, with their errors.
func (b BatchResult) Failed() []TickerResult {
	var out []TickerResult
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// GoldenReports returns the golden cross reports of successful tickers.
func (b BatchResult) GoldenReports() []models.TrendReport {
	var out []models.TrendReport
	for _, r := range b.Succeeded() {
		out = append(out, *r.GoldenCross)
	}
	return out
}

// DeathReports returns the death cross reports of successful tickers.
func (b BatchResult) DeathReports() []models.TrendReport {
	var out []models.TrendReport
	for _, r := range b.Succeeded() {
		out = append(out, *r.DeathCross)
	}
	return out
}

// Summary aggregates both cross types over the successful tickers.
type Summary struct {
	Tickers       int               `json:"tickers"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	GoldenCross   trend.Summary     `json:"golden_cross"`
	DeathCross    trend.Summary     `json:"death_cross"`
	GoldenPerYear []trend.YearCount `json:"golden_crosses_per_year"`
	DeathPerYear  []trend.YearCount `json:"death_crosses_per_year"`
	GoldenGapDays *float64          `json:"golden_average_gap_days"`
	DeathGapDays  *float64          `json:"death_average_gap_days"`
}

// Summarize computes the overall percent correct and crosses per year.
func (b BatchResult) Summarize() Summary {
	golden := b.GoldenReports()
	death := b.DeathReports()

	s := Summary{
		Tickers:     len(b.Results),
		Succeeded:   len(golden),
		Failed:      len(b.Results) - len(golden),
		GoldenCross: trend.Summarize(golden),
		DeathCross:  trend.Summarize(death),
	}
	s.GoldenPerYear, s.GoldenGapDays = perYearAndGap(golden)
	s.DeathPerYear, s.DeathGapDays = perYearAndGap(death)
	return s
}

// perYearAndGap merges per-year counts and averages the per-ticker mean gap between
// consecutive events, over tickers where the gap is defined.
func perYearAndGap(reports []models.TrendReport) ([]trend.YearCount, *float64) {
	sets := make([][]trend.YearCount, 0, len(reports))
	var (
		total float64
		n     int
	)
	for _, r := range reports {
		sets = append(sets, trend.CrossesPerYear(r.Records))
		if gap, err := trend.AverageGapDays(r.Records); err == nil {
			total += gap
			n++
		}
	}
	if n == 0 {
		return trend.MergeYearCounts(sets...), nil
	}
	mean := total / float64(n)
	return trend.MergeYearCounts(sets...), &mean
}
