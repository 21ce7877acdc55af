// Package storetest checks a billing.Store implementation against the
// store contract. Each store package runs it from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
)

// Factory returns an empty store seeded with the default production types.
type Factory func(t *testing.T) billing.Store

var (
	t0   = time.Date(2026, time.January, 25, 10, 0, 0, 0, time.UTC)
	jan  = billing.PeriodFor(billing.MustParseDate("2026-01-25"))
	feb  = jan.Next()
	unit = decimal.RequireFromString("150.00")
)

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("ProductionTypesSeeded", func(t *testing.T) { testTypesSeeded(t, newStore(t)) })
	t.Run("ClientsAndProjects", func(t *testing.T) { testReference(t, newStore(t)) })
	t.Run("PeriodNaturalKey", func(t *testing.T) { testPeriodKey(t, newStore(t)) })
	t.Run("ProductionsRoundTrip", func(t *testing.T) { testProductions(t, newStore(t)) })
	t.Run("Cascade", func(t *testing.T) { testCascade(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func seedClient(t *testing.T, s billing.Store, id billing.ClientID) {
	t.Helper()
	require.NoError(t, s.SaveClient(context.Background(), billing.Client{
		ID: id, Name: "Client " + string(id), Active: true, CreatedAt: t0, UpdatedAt: t0,
	}))
}

func seedPeriod(t *testing.T, s billing.Store, id billing.PeriodID, client billing.ClientID, b billing.PeriodBounds) billing.Period {
	t.Helper()
	p := billing.Period{
		ID: id, ClientID: client, Start: b.Start, End: b.End, Label: b.Label,
		Status: billing.StatusOpen, Total: decimal.Zero, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, s.InsertPeriod(context.Background(), p))
	return p
}

func newProduction(id billing.ProductionID, client billing.ClientID, period billing.PeriodID, date string, created time.Time) billing.Production {
	return billing.Production{
		ID:        id,
		Date:      billing.MustParseDate(date),
		ClientID:  client,
		Type:      billing.TypeFeed,
		Name:      "Post " + string(id),
		Quantity:  3,
		UnitPrice: unit,
		Total:     billing.ComputeTotal(3, unit),
		PeriodID:  period,
		Status:    billing.StatusOpen,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testTypesSeeded(t *testing.T, s billing.Store) {
	types, err := s.ListProductionTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, len(billing.DefaultProductionTypes))
	for i, def := range types {
		assert.Equal(t, billing.DefaultProductionTypes[i], def.Name)
		assert.True(t, def.Active)
	}

	require.NoError(t, s.SaveProductionType(context.Background(), billing.TypeDefinition{
		Name: billing.TypeStory, Active: false, Position: 2, CreatedAt: t0,
	}))
	types, err = s.ListProductionTypes(context.Background())
	require.NoError(t, err)
	assert.False(t, types[1].Active)
}

func testReference(t *testing.T, s billing.Store) {
	ctx := context.Background()
	seedClient(t, s, "c-b")
	seedClient(t, s, "c-a")

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, billing.ClientID("c-a"), clients[0].ID, "ordered by name")

	c, err := s.GetClient(ctx, "c-a")
	require.NoError(t, err)
	c.Name = "Renamed"
	c.Active = false
	require.NoError(t, s.SaveClient(ctx, c))
	c, err = s.GetClient(ctx, "c-a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	assert.False(t, c.Active)

	require.NoError(t, s.SaveProject(ctx, billing.Project{ID: "pr-1", ClientID: "c-a", Name: "Verão", Active: true, CreatedAt: t0, UpdatedAt: t0}))
	projects, err := s.ListProjects(ctx, "c-a")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, billing.ClientID("c-a"), projects[0].ClientID)

	none, err := s.ListProjects(ctx, "c-b")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteProject(ctx, "pr-1"))
	require.NoError(t, s.DeleteClient(ctx, "c-b"))
	_, err = s.GetClient(ctx, "c-b")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func testPeriodKey(t *testing.T, s billing.Store) {
	ctx := context.Background()
	seedClient(t, s, "c-1")
	seedClient(t, s, "c-2")
	seedPeriod(t, s, "per-jan", "c-1", jan)

	// same client and boundaries: rejected
	err := s.InsertPeriod(ctx, billing.Period{
		ID: "per-dup", ClientID: "c-1", Start: jan.Start, End: jan.End, Label: jan.Label,
		Status: billing.StatusOpen, Total: decimal.Zero, CreatedAt: t0, UpdatedAt: t0,
	})
	assert.True(t, errors.Is(err, billing.ErrDuplicatePeriod), "got %v", err)

	// other client, same boundaries: fine
	seedPeriod(t, s, "per-jan-2", "c-2", jan)
	seedPeriod(t, s, "per-feb", "c-1", feb)

	found, ok, err := s.FindPeriod(ctx, "c-1", jan.Start, jan.End)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, billing.PeriodID("per-jan"), found.ID)
	assert.True(t, found.Start.Equal(jan.Start))
	assert.Equal(t, jan.Label, found.Label)

	_, ok, err = s.FindPeriod(ctx, "c-1", feb.Next().Start, feb.Next().End)
	require.NoError(t, err)
	assert.False(t, ok)

	periods, err := s.ListPeriods(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, billing.PeriodID("per-feb"), periods[0].ID, "newest first")

	found.Total = decimal.RequireFromString("450.00")
	found.Status = billing.StatusClosed
	require.NoError(t, s.UpdatePeriod(ctx, found))
	got, err := s.GetPeriod(ctx, "per-jan")
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("450")))
	assert.Equal(t, billing.StatusClosed, got.Status)
}

func testProductions(t *testing.T, s billing.Store) {
	ctx := context.Background()
	seedClient(t, s, "c-1")
	seedPeriod(t, s, "per-jan", "c-1", jan)

	p1 := newProduction("p-1", "c-1", "per-jan", "2026-01-22", t0)
	p1.Notes = "primeira"
	p2 := newProduction("p-2", "c-1", "per-jan", "2026-01-25", t0.Add(time.Minute))
	p2.ProjectID = "pr-1"
	require.NoError(t, s.InsertProduction(ctx, p1))
	require.NoError(t, s.InsertProduction(ctx, p2))

	got, err := s.GetProduction(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "primeira", got.Notes)
	assert.Equal(t, billing.ProjectID(""), got.ProjectID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("450")))
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Equal(t, "2026-01-22", got.Date.String())

	list, err := s.ListProductionsByPeriod(ctx, "per-jan")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, billing.ProductionID("p-2"), list[0].ID, "newest date first")

	byClient, err := s.ListProductionsByClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	n, err := s.CountProductionsByClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.CountProductionsByProject(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got.Quantity = 5
	got.Total = billing.ComputeTotal(5, unit)
	require.NoError(t, s.UpdateProduction(ctx, got))
	got, err = s.GetProduction(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.True(t, got.CreatedAt.Equal(t0), "creation time survives updates")

	require.NoError(t, s.DeleteProduction(ctx, "p-1"))
	_, err = s.GetProduction(ctx, "p-1")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func testCascade(t *testing.T, s billing.Store) {
	ctx := context.Background()
	seedClient(t, s, "c-1")
	seedPeriod(t, s, "per-jan", "c-1", jan)
	seedPeriod(t, s, "per-feb", "c-1", feb)
	for _, id := range []billing.ProductionID{"p-1", "p-2", "p-3"} {
		require.NoError(t, s.InsertProduction(ctx, newProduction(id, "c-1", "per-jan", "2026-01-25", t0)))
	}
	require.NoError(t, s.InsertProduction(ctx, newProduction("p-4", "c-1", "per-feb", "2026-02-25", t0)))

	n, err := s.SetPeriodProductionsStatus(ctx, "per-jan", billing.StatusClosed, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.ListProductionsByPeriod(ctx, "per-jan")
	require.NoError(t, err)
	for _, p := range list {
		assert.Equal(t, billing.StatusClosed, p.Status)
	}
	other, err := s.GetProduction(ctx, "p-4")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusOpen, other.Status, "other periods untouched")
}

func testRollback(t *testing.T, s billing.Store) {
	ctx := context.Background()
	seedClient(t, s, "c-1")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx billing.Store) error {
		seedPeriod(t, tx, "per-jan", "c-1", jan)
		require.NoError(t, tx.InsertProduction(ctx, newProduction("p-1", "c-1", "per-jan", "2026-01-25", t0)))

		// writes are visible inside the transaction
		_, err := tx.GetProduction(ctx, "p-1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetProduction(ctx, "p-1")
	assert.ErrorIs(t, err, billing.ErrNotFound)
	_, ok, err := s.FindPeriod(ctx, "c-1", jan.Start, jan.End)
	require.NoError(t, err)
	assert.False(t, ok)

	// a successful transaction commits
	require.NoError(t, s.WithTx(ctx, func(tx billing.Store) error {
		seedPeriod(t, tx, "per-jan", "c-1", jan)
		return nil
	}))
	_, ok, err = s.FindPeriod(ctx, "c-1", jan.Start, jan.End)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testNotFound(t *testing.T, s billing.Store) {
	ctx := context.Background()

	_, err := s.GetPeriod(ctx, "missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)
	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduction(ctx, "missing"), billing.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePeriod(ctx, billing.Period{ID: "missing"}), billing.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProduction(ctx, billing.Production{ID: "missing"}), billing.ErrNotFound)
}
