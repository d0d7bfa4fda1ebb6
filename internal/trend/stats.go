package trend

import (
	"sort"

	apperrors "crosscheck/internal/errors"
	"crosscheck/internal/models"
)

// Summary aggregates the percent-correct of several reports.
type Summary struct {
	Reports int `json:"reports"`
	// Defined is the number of reports with at least one record.
	Defined int `json:"defined"`
	// Undefined counts reports with no records; they do not enter the mean.
	Undefined int `json:"undefined"`
	Records   int `json:"records"`
	Valid     int `json:"valid"`
	// Mean is the mean of per-report rates, nil when no report is defined.
	Mean *float64 `json:"mean_percent_correct"`
	// Pooled is Valid/Records, nil when there are no records.
	Pooled *float64 `json:"pooled_percent_correct"`
}

// MeanPercentCorrect is the mean of per-report rates over defined reports.
func (s Summary) MeanPercentCorrect() (float64, error) {
	if s.Mean == nil {
		return 0, apperrors.ErrUndefinedAggregate
	}
	return *s.Mean, nil
}

// PooledPercentCorrect is valid records over all records.
func (s Summary) PooledPercentCorrect() (float64, error) {
	if s.Pooled == nil {
		return 0, apperrors.ErrUndefinedAggregate
	}
	return *s.Pooled, nil
}

// Summarize averages per-report rates, keeping undefined reports out of the mean.
func Summarize(reports []models.TrendReport) Summary {
	s := Summary{Reports: len(reports)}
	var total float64
	for _, r := range reports {
		s.Records += len(r.Records)
		s.Valid += r.ValidCount()
		pct, err := r.PercentCorrect()
		if err != nil {
			s.Undefined++
			continue
		}
		s.Defined++
		total += pct
	}
	if s.Defined > 0 {
		mean := total / float64(s.Defined)
		s.Mean = &mean
	}
	if s.Records > 0 {
		pooled := float64(s.Valid) / float64(s.Records)
		s.Pooled = &pooled
	}
	return s
}

// YearCount is the number of events in one calendar year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// CrossesPerYear counts records by the calendar year of their event date.
func CrossesPerYear(records []models.TrendRecord) []YearCount {
	dates := make([]models.PriceRow, len(records))
	for i, r := range records {
		dates[i] = models.PriceRow{Date: r.Date}
	}
	return countByYear(dates)
}

// EventsPerYear counts marked rows of an event log by year.
func EventsPerYear(log models.EventLog, eventType models.EventType) []YearCount {
	var rows []models.PriceRow
	for _, r := range log.Rows {
		if r.Has(eventType) {
			rows = append(rows, r)
		}
	}
	return countByYear(rows)
}

// MergeYearCounts adds several per-year tallies together.
func MergeYearCounts(sets ...[]YearCount) []YearCount {
	totals := make(map[int]int)
	for _, set := range sets {
		for _, yc := range set {
			totals[yc.Year] += yc.Count
		}
	}
	return sortedYears(totals)
}

func countByYear(rows []models.PriceRow) []YearCount {
	totals := make(map[int]int)
	for _, r := range rows {
		totals[r.Date.Year()]++
	}
	return sortedYears(totals)
}

func sortedYears(totals map[int]int) []YearCount {
	out := make([]YearCount, 0, len(totals))
	for y, n := range totals {
		out = append(out, YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// AverageGapDays is the mean number of calendar days between consecutive records.
// Fewer than two records give ErrUndefinedAggregate.
func AverageGapDays(records []models.TrendRecord) (float64, error) {
	if len(records) < 2 {
		return 0, apperrors.ErrUndefinedAggregate
	}
	var days float64
	for i := 1; i < len(records); i++ {
		days += records[i].Date.Sub(records[i-1].Date).Hours() / 24
	}
	return days / float64(len(records)-1), nil
}
