package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
)

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		start, end string
		label      string
	}{
		{"first day of period", "2026-01-21", "2026-01-21", "2026-02-20", "21/01/2026 a 20/02/2026"},
		{"last day of period", "2026-01-20", "2025-12-21", "2026-01-20", "21/12/2025 a 20/01/2026"},
		{"crosses year end", "2026-12-25", "2026-12-21", "2027-01-20", "21/12/2026 a 20/01/2027"},
		{"early january", "2026-01-01", "2025-12-21", "2026-01-20", "21/12/2025 a 20/01/2026"},
		{"end of february", "2026-02-28", "2026-02-21", "2026-03-20", "21/02/2026 a 20/03/2026"},
		{"leap day", "2028-02-29", "2028-02-21", "2028-03-20", "21/02/2028 a 20/03/2028"},
		{"thirty-first", "2026-03-31", "2026-03-21", "2026-04-20", "21/03/2026 a 20/04/2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := billing.PeriodFor(billing.MustParseDate(tt.date))
			assert.Equal(t, tt.start, b.Start.String())
			assert.Equal(t, tt.end, b.End.String())
			assert.Equal(t, tt.label, b.Label)
		})
	}
}

func TestPeriodFor_ContainsDateAndIsStable(t *testing.T) {
	// GIVEN: every day of two years
	d := billing.NewDate(2025, time.January, 1)
	for i := 0; i < 730; i++ {
		b := billing.PeriodFor(d)

		// THEN: the date lies inside its bucket and boundaries follow the 21 -> 20 rule
		require.True(t, b.Contains(d), "date %s outside %s", d, b)
		require.Equal(t, 21, b.Start.Day())
		require.Equal(t, 20, b.End.Day())

		// AND: every date of the bucket maps to the same bucket
		require.True(t, billing.PeriodFor(b.Start).Start.Equal(b.Start))
		require.True(t, billing.PeriodFor(b.End).Start.Equal(b.Start))

		d = d.AddDays(1)
	}
}

func TestPeriodBounds_NextPrevious(t *testing.T) {
	b := billing.PeriodFor(billing.MustParseDate("2026-12-25"))

	next := b.Next()
	assert.Equal(t, "2027-01-21", next.Start.String())
	assert.Equal(t, "2027-02-20", next.End.String())

	prev := b.Previous()
	assert.Equal(t, "2026-11-21", prev.Start.String())
	assert.Equal(t, "2026-12-20", prev.End.String())
}

func TestPeriodForTime_UsesLocation(t *testing.T) {
	// 2026-01-21 01:30 UTC is still 2026-01-20 in São Paulo (UTC-3)
	instant := time.Date(2026, time.January, 21, 1, 30, 0, 0, time.UTC)
	sp := time.FixedZone("BRT", -3*60*60)

	assert.Equal(t, "2026-01-21", billing.PeriodForTime(instant, time.UTC).Start.String())
	assert.Equal(t, "2025-12-21", billing.PeriodForTime(instant, sp).Start.String())
}

func TestDate_ParseAndJSON(t *testing.T) {
	_, err := billing.ParseDate("21/01/2026")
	assert.Error(t, err)

	d, err := billing.ParseDate("2026-01-21")
	require.NoError(t, err)
	assert.Equal(t, "21/01/2026", d.Label())

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-01-21"`, string(raw))

	var back billing.Date
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.True(t, back.Equal(d))
}
