package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.svc.CreateClient(ctx, admin, "Studio Norte")
	require.NoError(t, err)
	inactive, err := f.svc.CreateClient(ctx, admin, "Atelier Sul")
	require.NoError(t, err)
	_, err = f.svc.UpdateClient(ctx, admin, inactive.ID, "Atelier Sul", false)
	require.NoError(t, err)

	// GIVEN: two productions today, one earlier, and one closed period
	f.create(t, "2026-01-25", 3, "150.00")
	form := f.form("2026-01-25", 1, "80.00")
	form.ClientID = other.ID
	_, err = f.svc.CreateProduction(ctx, admin, form)
	require.NoError(t, err)
	old := f.create(t, "2026-01-10", 2, "100.00")
	_, err = f.svc.ClosePeriod(ctx, admin, old.PeriodID)
	require.NoError(t, err)

	sum, err := f.svc.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2026-01-25", sum.Today.String())
	assert.Equal(t, "21/01/2026 a 20/02/2026", sum.CurrentPeriod.Label)
	assert.Equal(t, 2, sum.ActiveClients)
	assert.Equal(t, 3, sum.Productions)
	assert.Equal(t, 2, sum.TodayProductions)
	assertMoney(t, "530.00", sum.TodayTotal)
	assert.Equal(t, 2, sum.OpenPeriods)
	assertMoney(t, "530.00", sum.OpenTotal)
}

func TestSummary_Empty(t *testing.T) {
	f := newFixture(t)

	sum, err := f.svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.ActiveClients)
	assert.Zero(t, sum.OpenPeriods)
	assertMoney(t, "0", sum.OpenTotal)
}
