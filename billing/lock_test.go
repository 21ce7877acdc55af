package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/palmapsd/production-ledger/billing"
)

func production(status billing.Status, createdAt time.Time) billing.Production {
	return billing.Production{ID: "p-1", Status: status, CreatedAt: createdAt}
}

func TestCanEdit(t *testing.T) {
	today := billing.MustParseDate("2026-01-25")
	morning := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, time.January, 24, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name   string
		p      billing.Production
		want   bool
		reason billing.LockReason
	}{
		{"open, created today", production(billing.StatusOpen, morning), true, ""},
		{"open, created yesterday", production(billing.StatusOpen, yesterday), false, billing.LockNotSameDay},
		{"closed, created today", production(billing.StatusClosed, morning), false, billing.LockPeriodClosed},
		{"closed, created yesterday", production(billing.StatusClosed, yesterday), false, billing.LockPeriodClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.CanEdit(tt.p, today))
			assert.Equal(t, tt.reason, billing.LockReasonFor(tt.p, today))
		})
	}
}

func TestCheckEditable_ErrorCarriesCause(t *testing.T) {
	today := billing.MustParseDate("2026-01-25")

	// GIVEN: a closed production
	err := billing.CheckEditable(production(billing.StatusClosed, time.Date(2026, 1, 25, 8, 0, 0, 0, time.UTC)), today)

	// THEN: it is both edit-locked and period-closed
	assert.True(t, errors.Is(err, billing.ErrEditLocked))
	assert.True(t, errors.Is(err, billing.ErrPeriodClosed))
	var locked *billing.EditLockedError
	assert.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockPeriodClosed, locked.Reason)

	// GIVEN: an open production from another day
	err = billing.CheckEditable(production(billing.StatusOpen, time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)), today)

	// THEN: it is edit-locked but not period-closed
	assert.True(t, errors.Is(err, billing.ErrEditLocked))
	assert.False(t, errors.Is(err, billing.ErrPeriodClosed))
	assert.NotEqual(t, billing.Messages(err), billing.Messages(billing.CheckEditable(production(billing.StatusClosed, time.Now()), today)))
}
