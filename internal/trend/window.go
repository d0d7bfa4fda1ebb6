// Package trend validates crossover events against the prices that followed them.
//
// For every buy or sell marker in an event log a forward window of later rows is
// collected under a window policy, averaged, and compared to the event's price.
// Everything here is pure: no I/O, no shared state, safe for concurrent use.
package trend

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"crosscheck/internal/models"
)

// PolicyKind selects how far a forward window reaches.
type PolicyKind string

const (
	// KindFixedMonths bounds the window by elapsed calendar months.
	KindFixedMonths PolicyKind = "fixed_months"
	// KindUntilOpposite bounds the window by the next opposite marker.
	KindUntilOpposite PolicyKind = "until_opposite"
)

// WindowPolicy describes the forward window boundary.
type WindowPolicy struct {
	Kind PolicyKind
	// Months is the limit for KindFixedMonths.
	Months int
	// Event is the event type being validated for KindUntilOpposite;
	// the window stops before the first row carrying Event.Opposite().
	Event models.EventType
}

// FixedMonths returns a policy that includes rows less than limit months after the trigger.
func FixedMonths(limit int) WindowPolicy {
	return WindowPolicy{Kind: KindFixedMonths, Months: limit}
}

// UntilOpposite returns a policy that runs until the first opposite marker of event.
func UntilOpposite(event models.EventType) WindowPolicy {
	return WindowPolicy{Kind: KindUntilOpposite, Event: event}
}

// Validate checks the policy parameters.
func (p WindowPolicy) Validate() error {
	switch p.Kind {
	case KindFixedMonths:
		if p.Months <= 0 {
			return fmt.Errorf("fixed_months policy needs a positive month limit, got %d", p.Months)
		}
	case KindUntilOpposite:
		if !p.Event.Valid() {
			return fmt.Errorf("until_opposite policy needs an event type, got %q", p.Event)
		}
	default:
		return fmt.Errorf("unknown window policy %q", p.Kind)
	}
	return nil
}

func (p WindowPolicy) String() string {
	switch p.Kind {
	case KindFixedMonths:
		return fmt.Sprintf("%s(%d)", p.Kind, p.Months)
	case KindUntilOpposite:
		return fmt.Sprintf("%s(%s)", p.Kind, p.Event.Opposite())
	}
	return string(p.Kind)
}

// ParsePolicy parses "fixed_months:5", "fixed-months=5" or "until_opposite".
// For until_opposite the event type is taken from event.
func ParsePolicy(s string, event models.EventType) (WindowPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	name, arg := s, ""
	if i := strings.IndexAny(s, ":="); i >= 0 {
		name, arg = s[:i], s[i+1:]
	}
	name = strings.ReplaceAll(name, "-", "_")

	var p WindowPolicy
	switch PolicyKind(name) {
	case KindFixedMonths:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return p, fmt.Errorf("fixed_months needs a month count, got %q", arg)
		}
		p = FixedMonths(n)
	case KindUntilOpposite:
		p = UntilOpposite(event)
	default:
		return p, fmt.Errorf("unknown window policy %q", s)
	}
	return p, p.Validate()
}

// Window is the result of a forward scan.
type Window struct {
	Rows []models.PriceRow
	// Truncated is set when the scan reached the end of the log before the
	// policy boundary was met.
	Truncated bool
}

// Len returns the number of rows in the window.
func (w Window) Len() int {
	return len(w.Rows)
}

// ForwardWindow collects the rows following a trigger.
// start is the index immediately after the triggering row; the trigger itself is
// never part of the window. A start outside (0, len) yields an empty window.
func ForwardWindow(log models.EventLog, start int, policy WindowPolicy) Window {
	if start <= 0 || start >= len(log.Rows) {
		return Window{}
	}
	trigger := log.Rows[start-1]

	var rows []models.PriceRow
	for _, row := range log.Rows[start:] {
		switch policy.Kind {
		case KindFixedMonths:
			if ElapsedMonths(trigger.Date, row.Date) >= policy.Months {
				return Window{Rows: rows}
			}
		case KindUntilOpposite:
			if row.Has(policy.Event.Opposite()) {
				return Window{Rows: rows}
			}
		default:
			return Window{}
		}
		rows = append(rows, row)
	}
	return Window{Rows: rows, Truncated: true}
}

// ElapsedMonths returns the number of whole calendar months from 'from' to 'to'.
// A month is complete once the same day-of-month is reached, clamped to the
// last day of shorter months (Jan 31 + 1 month = Feb 28/29).
func ElapsedMonths(from, to time.Time) int {
	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return -ElapsedMonths(to, from)
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if addMonths(from, months).After(to) {
		months--
	}
	return months
}

// addMonths adds n months, clamping the day to the target month's length.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
