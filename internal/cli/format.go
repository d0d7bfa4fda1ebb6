package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"crosscheck/internal/models"
	"crosscheck/internal/trend"
)

// FormatRate formats a fraction in [0, 1] as a percentage, "n/a" when undefined.
func FormatRate(rate *float64) string {
	if rate == nil || math.IsNaN(*rate) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *rate*100)
}

// ReportRate returns the percent correct of a report, nil when undefined.
func ReportRate(r models.TrendReport) *float64 {
	pct, err := r.PercentCorrect()
	if err != nil {
		return nil
	}
	return &pct
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatChange formats the relative move from price to target as a signed percentage.
func FormatChange(price, target float64) string {
	if price == 0 {
		return "n/a"
	}
	return FormatPercent((target - price) / price * 100)
}

// FormatPrice formats a price with two decimals, four below one dollar.
func FormatPrice(price float64) string {
	if math.Abs(price) < 1 && price != 0 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatDate formats a date as YYYY-MM-DD, "-" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(models.DateLayout)
}

// FormatDays formats an optional day count.
func FormatDays(days *float64) string {
	if days == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f days", *days)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// formatYearCounts renders per-year counts as "2019:2 2020:1".
func formatYearCounts(counts []trend.YearCount) string {
	parts := make([]string, len(counts))
	for i, yc := range counts {
		parts[i] = fmt.Sprintf("%d:%d", yc.Year, yc.Count)
	}
	return strings.Join(parts, " ")
}
