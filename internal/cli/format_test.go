package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"crosscheck/internal/models"
	"crosscheck/internal/trend"
)

func TestProperty_FormatRateRoundTrips(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatRate renders the fraction as a two-decimal percentage", prop.ForAll(
		func(rate float64) bool {
			s := FormatRate(&rate)
			if !strings.HasSuffix(s, "%") {
				return false
			}
			num := strings.TrimSuffix(s, "%")
			if i := strings.IndexByte(num, '.'); i < 0 || len(num)-i-1 != 2 {
				t.Logf("expected two decimals in %s", s)
				return false
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return false
			}
			return math.Abs(v-rate*100) <= 0.005+1e-9
		},
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestProperty_TruncateString(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("TruncateString never exceeds the limit and keeps short strings", prop.ForAll(
		func(s string, maxLen int) bool {
			got := TruncateString(s, maxLen)
			if len(s) <= maxLen {
				return got == s
			}
			return len(got) == maxLen && strings.HasPrefix(s, strings.TrimSuffix(got, "..."))
		},
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestFormatters(t *testing.T) {
	half := 0.5
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"undefined rate", FormatRate(nil), "n/a"},
		{"half rate", FormatRate(&half), "50.00%"},
		{"positive percent", FormatPercent(2.5), "+2.50%"},
		{"negative percent", FormatPercent(-1), "-1.00%"},
		{"change", FormatChange(8, 10), "+25.00%"},
		{"change from zero", FormatChange(0, 10), "n/a"},
		{"price", FormatPrice(123.456), "123.46"},
		{"penny price", FormatPrice(0.56789), "0.5679"},
		{"date", FormatDate(time.Date(2020, 7, 14, 15, 0, 0, 0, time.UTC)), "2020-07-14"},
		{"zero date", FormatDate(time.Time{}), "-"},
		{"no gap", FormatDays(nil), "n/a"},
		{"duration", FormatDuration(90 * time.Minute), "1h 30m"},
		{"pad", PadRight("ab", 4), "ab  "},
		{"years", formatYearCounts([]trend.YearCount{{Year: 2019, Count: 2}, {Year: 2020, Count: 1}}), "2019:2 2020:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestReportRate(t *testing.T) {
	if ReportRate(models.TrendReport{}) != nil {
		t.Error("empty report should have no rate")
	}
	r := models.TrendReport{Records: []models.TrendRecord{{Valid: true}, {Valid: false}}}
	if got := ReportRate(r); got == nil || *got != 0.5 {
		t.Errorf("rate = %v, want 0.5", got)
	}
}

func TestParseEventTypes(t *testing.T) {
	both, err := parseEventTypes("")
	if err != nil || len(both) != 2 {
		t.Fatalf("parseEventTypes(\"\") = %v, %v", both, err)
	}
	sell, err := parseEventTypes("death")
	if err != nil || len(sell) != 1 || sell[0] != models.EventSell {
		t.Errorf("parseEventTypes(death) = %v, %v", sell, err)
	}
	if _, err := parseEventTypes("hold"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestVisibleLen(t *testing.T) {
	if n := visibleLen("\x1b[32mvalid\x1b[0m"); n != 5 {
		t.Errorf("visibleLen = %d, want 5", n)
	}
	if n := visibleLen("héllo"); n != 5 {
		t.Errorf("visibleLen = %d, want 5", n)
	}
}
