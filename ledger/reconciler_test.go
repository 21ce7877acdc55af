package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/ledger"
)

func TestReconciler_SweepRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "2026-01-25", 3, "150.00")
	b := f.create(t, "2026-01-10", 1, "20.00")

	// GIVEN: one total drifted behind the service's back
	drifted := f.period(t, a.PeriodID)
	drifted.Total = decimal.NewFromInt(7)
	require.NoError(t, f.store.UpdatePeriod(ctx, drifted))

	res := ledger.NewReconciler(f.svc, time.Hour).Sweep(ctx)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, []billing.PeriodID{a.PeriodID}, res.Repaired)
	assert.Zero(t, res.Failed)
	assertMoney(t, "450.00", f.period(t, a.PeriodID).Total)
	assertMoney(t, "20.00", f.period(t, b.PeriodID).Total)
}

func TestReconciler_StartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 1, "10.00")
	drifted := f.period(t, p.PeriodID)
	drifted.Total = decimal.Zero
	require.NoError(t, f.store.UpdatePeriod(ctx, drifted))

	rec := ledger.NewReconciler(f.svc, time.Hour)
	rec.Start(ctx)
	rec.Start(ctx)

	// the first sweep runs right away
	assert.Eventually(t, func() bool {
		got, err := f.svc.GetPeriod(ctx, p.PeriodID)
		return err == nil && got.Total.Equal(decimal.NewFromInt(10))
	}, time.Second, 10*time.Millisecond)

	rec.Stop()
	rec.Stop()
}

func TestReconciler_DisabledWithoutInterval(t *testing.T) {
	f := newFixture(t)
	rec := ledger.NewReconciler(f.svc, 0)
	rec.Start(context.Background())
	rec.Stop()
}
