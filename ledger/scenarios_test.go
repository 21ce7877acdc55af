package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/billing/store"
	"github.com/palmapsd/production-ledger/ledger"
)

func TestLoadDemoScenario(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(store.NewMemory())

	summary, err := ledger.LoadDemoScenario(ctx, svc, ledger.SystemActor)
	require.NoError(t, err)

	assert.Len(t, summary.Clients, 2)
	assert.Equal(t, 8, summary.Productions)

	closed, err := svc.GetPeriod(ctx, summary.ClosedPeriod)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusClosed, closed.Status)
	assertMoney(t, "2010.00", closed.Total)

	open, err := svc.OpenPeriodsByClient(ctx, summary.Clients[0].ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assertMoney(t, "995.00", open[0].Total)
}

func TestLoadDemoScenario_ViewerIsRejected(t *testing.T) {
	svc := ledger.NewService(store.NewMemory())
	_, err := ledger.LoadDemoScenario(context.Background(), svc, viewer)
	assert.ErrorIs(t, err, billing.ErrForbidden)
}
