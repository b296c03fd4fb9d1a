package query

import (
	"fmt"
	"strings"
	"time"
)

// Step is the length of a report period.
type Step int

const (
	Daily Step = iota
	Weekly
	Monthly
	Quarterly
	Yearly
)

var stepNames = []string{"daily", "weekly", "monthly", "quarterly", "yearly"}

func (s Step) String() string {
	if int(s) >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// ParseStep parses a step name such as "monthly".
func ParseStep(s string) (Step, error) {
	for i, name := range stepNames {
		if strings.EqualFold(name, s) {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown period %q (expected one of %s)", s, strings.Join(stepNames, ", "))
}

// Start returns the beginning of the period of step containing t. Weeks
// start on Monday.
func (s Step) Start(t time.Time) time.Time {
	y, m, d := t.Date()
	switch s {
	case Weekly:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case Quarterly:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, t.Location())
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// Next returns the start of the period after the one starting at t.
func (s Step) Next(t time.Time) time.Time {
	switch s {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	case Yearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Period is a half-open time range [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) String() string {
	return p.From.Format(time.DateOnly) + ".." + p.To.Format(time.DateOnly)
}

// Periods splits [from, to) into consecutive periods aligned to step. The
// first period starts at the period boundary at or before from; the last one
// ends at or after to.
func Periods(from, to time.Time, step Step) []Period {
	var out []Period
	for start := step.Start(from); start.Before(to); {
		next := step.Next(start)
		out = append(out, Period{From: start, To: next})
		start = next
	}
	return out
}

// PeriodBatch lays out one copy of every shape per period, period by period,
// with each copy restricted to its period. With cumulative set the results
// are running totals per shape.
func PeriodBatch(shapes []Spec, periods []Period, cumulative bool) Batch {
	b := Batch{
		Specs:       make([]Spec, 0, len(shapes)*len(periods)),
		Cumulative:  cumulative,
		PeriodCount: len(shapes),
	}
	for _, p := range periods {
		for _, shape := range shapes {
			spec := shape
			spec.From, spec.To = p.From, p.To
			b.Specs = append(b.Specs, spec)
		}
	}
	return b
}
