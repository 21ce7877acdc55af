package billing

import "time"

// =============================================================================
// PERIOD CALCULATOR - The fixed 21 -> 20 billing bucket
// =============================================================================

// PeriodStartDay is the first day of every billing period. The period ends on
// the day before it in the following month.
const PeriodStartDay = 21

// PeriodBounds is the canonical bucket a date falls into.
//
// Examples:
//   - 2026-01-21 -> 2026-01-21 .. 2026-02-20
//   - 2026-01-20 -> 2025-12-21 .. 2026-01-20
//   - 2026-12-25 -> 2026-12-21 .. 2027-01-20
type PeriodBounds struct {
	Start Date
	End   Date
	Label string
}

// PeriodFor returns the billing period containing date.
// Days 21..31 open a period that runs into next month; days 1..20 close the
// period that started on the 21st of the previous month.
func PeriodFor(date Date) PeriodBounds {
	year, month := date.Year(), date.Month()

	var start, end Date
	if date.Day() >= PeriodStartDay {
		start = NewDate(year, month, PeriodStartDay)
		end = NewDate(year, month+1, PeriodStartDay-1)
	} else {
		start = NewDate(year, month-1, PeriodStartDay)
		end = NewDate(year, month, PeriodStartDay-1)
	}

	return PeriodBounds{
		Start: start,
		End:   end,
		Label: start.Label() + " a " + end.Label(),
	}
}

// PeriodForTime buckets a timestamp by its calendar day in loc.
func PeriodForTime(t time.Time, loc *time.Location) PeriodBounds {
	if loc != nil {
		t = t.In(loc)
	}
	return PeriodFor(DateOf(t))
}

// Contains reports whether d lies within [Start, End].
func (b PeriodBounds) Contains(d Date) bool {
	return !d.Before(b.Start) && !d.After(b.End)
}

// Next returns the period that follows b.
func (b PeriodBounds) Next() PeriodBounds {
	return PeriodFor(b.End.AddDays(1))
}

// Previous returns the period before b.
func (b PeriodBounds) Previous() PeriodBounds {
	return PeriodFor(b.Start.AddDays(-1))
}

// String returns a string representation of the bounds.
func (b PeriodBounds) String() string {
	return "[" + b.Start.String() + ", " + b.End.String() + "]"
}
