package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmapsd/production-ledger/billing"
	"github.com/palmapsd/production-ledger/billing/store"
	"github.com/palmapsd/production-ledger/ledger"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var (
	admin  = ledger.Actor{ID: "u-admin", Name: "Ana", Role: ledger.RoleAdmin}
	viewer = ledger.Actor{ID: "u-view", Name: "Vitor", Role: ledger.RoleViewer}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    *ledger.Service
	store  billing.Store
	clock  *clock
	client billing.Client
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	st := store.NewMemory()
	return newFixtureWith(t, st, opts...)
}

func newFixtureWith(t *testing.T, st billing.Store, opts ...ledger.Option) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2026, time.January, 25, 10, 0, 0, 0, time.UTC)}
	svc := ledger.NewService(st, opts...)
	svc.WithNow(clk.Now)

	client, err := svc.CreateClient(context.Background(), admin, "Palma Café")
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, clock: clk, client: client}
}

func (f *fixture) form(date string, qty int, price string) billing.ProductionForm {
	return billing.ProductionForm{
		Date:      date,
		ClientID:  f.client.ID,
		Type:      billing.TypeFeed,
		Name:      "Post",
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func (f *fixture) create(t *testing.T, date string, qty int, price string) billing.Production {
	t.Helper()
	p, err := f.svc.CreateProduction(context.Background(), admin, f.form(date, qty, price))
	require.NoError(t, err)
	return p
}

func (f *fixture) period(t *testing.T, id billing.PeriodID) billing.Period {
	t.Helper()
	p, err := f.svc.GetPeriod(context.Background(), id)
	require.NoError(t, err)
	return p
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

// assertTotalInvariant checks the period total equals the sum of its members.
func assertTotalInvariant(t *testing.T, f *fixture, id billing.PeriodID) {
	t.Helper()
	members, err := f.svc.ProductionsByPeriod(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, billing.SumTotals(members).Equal(f.period(t, id).Total))
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateProduction_ComputesTotalAndCreatesPeriod(t *testing.T) {
	f := newFixture(t)

	// WHEN: 3 x 150.00 is recorded on 2026-01-25
	p := f.create(t, "2026-01-25", 3, "150.00")

	// THEN: the record total is 450.00 and it is open
	assertMoney(t, "450.00", p.Total)
	assert.Equal(t, billing.StatusOpen, p.Status)
	assert.True(t, p.CreatedAt.Equal(f.clock.Now()))

	// AND: its period is 21/01/2026 a 20/02/2026 with total 450.00
	period := f.period(t, p.PeriodID)
	assert.Equal(t, "2026-01-21", period.Start.String())
	assert.Equal(t, "2026-02-20", period.End.String())
	assert.Equal(t, "21/01/2026 a 20/02/2026", period.Label)
	assert.Equal(t, billing.StatusOpen, period.Status)
	assertMoney(t, "450.00", period.Total)
}

func TestCreateProduction_SameBucketSharesPeriod(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, "2026-01-21", 1, "100.00")
	b := f.create(t, "2026-02-20", 2, "50.00")
	c := f.create(t, "2026-01-20", 1, "10.00")

	assert.Equal(t, a.PeriodID, b.PeriodID, "21/01 and 20/02 share a bucket")
	assert.NotEqual(t, a.PeriodID, c.PeriodID, "20/01 belongs to the previous bucket")

	periods, err := f.svc.PeriodsByClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, a.PeriodID, periods[0].ID, "newest first")
	assertMoney(t, "200.00", periods[0].Total)
	assertMoney(t, "10.00", periods[1].Total)
}

func TestCreateProduction_ValidationCreatesNothing(t *testing.T) {
	f := newFixture(t)

	// WHEN: quantity is zero
	_, err := f.svc.CreateProduction(context.Background(), admin, f.form("2026-01-25", 0, "150.00"))

	// THEN: a validation error mentions the quantity
	var verr *billing.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Messages, "quantity must be at least 1")

	// AND: no record or period was created
	ps, err := f.svc.ProductionsByClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, ps)
	periods, err := f.svc.PeriodsByClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestCreateProduction_ReferenceChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.svc.CreateClient(ctx, admin, "Studio Norte")
	require.NoError(t, err)
	foreign, err := f.svc.CreateProject(ctx, admin, other.ID, "Portfólio")
	require.NoError(t, err)

	form := f.form("2026-01-25", 1, "10.00")
	form.ProjectID = foreign.ID
	form.Type = "Podcast"
	_, err = f.svc.CreateProduction(ctx, admin, form)
	assert.Equal(t, []string{"project does not belong to client", "unknown production type"}, billing.Messages(err))

	form = f.form("2026-01-25", 1, "10.00")
	form.ClientID = "missing"
	_, err = f.svc.CreateProduction(ctx, admin, form)
	assert.Equal(t, billing.ReasonValidation, billing.Classify(err))
	assert.Equal(t, []string{"client not found"}, billing.Messages(err))
}

func TestCreateProduction_IntoClosedPeriodFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 3, "150.00")
	_, err := f.svc.ClosePeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)

	_, err = f.svc.CreateProduction(ctx, admin, f.form("2026-02-01", 1, "99.00"))

	assert.ErrorIs(t, err, billing.ErrPeriodClosed)
	assert.Equal(t, billing.ReasonPeriodClosed, billing.Classify(err))
	assertMoney(t, "450.00", f.period(t, p.PeriodID).Total)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateProduction_RecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 3, "150.00")
	f.create(t, "2026-01-26", 1, "50.00")

	updated, err := f.svc.UpdateProduction(ctx, admin, p.ID, f.form("2026-01-25", 4, "150.00"))
	require.NoError(t, err)

	assertMoney(t, "600.00", updated.Total)
	assertMoney(t, "650.00", f.period(t, p.PeriodID).Total)
	assert.True(t, updated.CreatedAt.Equal(p.CreatedAt), "creation time never changes")
	assertTotalInvariant(t, f, p.PeriodID)
}

func TestUpdateProduction_KeepsOriginalPeriodByDefault(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "2026-01-25", 1, "100.00")

	// WHEN: the date moves into the next bucket
	updated, err := f.svc.UpdateProduction(context.Background(), admin, p.ID, f.form("2026-03-01", 1, "100.00"))
	require.NoError(t, err)

	// THEN: the record stays in its original period
	assert.Equal(t, p.PeriodID, updated.PeriodID)
	assert.Equal(t, "2026-03-01", updated.Date.String())
	periods, err := f.svc.PeriodsByClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestUpdateProduction_RebucketOption(t *testing.T) {
	f := newFixture(t, ledger.WithOptions(ledger.Options{RebucketOnDateEdit: true}))
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 1, "100.00")
	f.create(t, "2026-01-26", 1, "20.00")

	updated, err := f.svc.UpdateProduction(ctx, admin, p.ID, f.form("2026-03-01", 1, "100.00"))
	require.NoError(t, err)

	require.NotEqual(t, p.PeriodID, updated.PeriodID)
	moved := f.period(t, updated.PeriodID)
	assert.Equal(t, "2026-02-21", moved.Start.String())
	assertMoney(t, "100.00", moved.Total)
	assertMoney(t, "20.00", f.period(t, p.PeriodID).Total)
	assertTotalInvariant(t, f, p.PeriodID)
	assertTotalInvariant(t, f, updated.PeriodID)
}

func TestUpdateProduction_RebucketIntoClosedPeriodFails(t *testing.T) {
	f := newFixture(t, ledger.WithOptions(ledger.Options{RebucketOnDateEdit: true}))
	ctx := context.Background()
	old := f.create(t, "2026-01-10", 1, "10.00")
	_, err := f.svc.ClosePeriod(ctx, admin, old.PeriodID)
	require.NoError(t, err)
	p := f.create(t, "2026-01-25", 1, "100.00")

	_, err = f.svc.UpdateProduction(ctx, admin, p.ID, f.form("2026-01-10", 1, "100.00"))

	assert.ErrorIs(t, err, billing.ErrPeriodClosed)
	got, err := f.svc.GetProduction(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.PeriodID, got.PeriodID)
}

func TestUpdateProduction_NextDayIsLocked(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "2026-01-25", 3, "150.00")

	f.clock.Advance(24 * time.Hour)
	_, err := f.svc.UpdateProduction(context.Background(), admin, p.ID, f.form("2026-01-25", 1, "150.00"))

	var locked *billing.EditLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockNotSameDay, locked.Reason)
	assert.False(t, errors.Is(err, billing.ErrPeriodClosed))
	assertMoney(t, "450.00", f.period(t, p.PeriodID).Total)
}

func TestUpdateProduction_InvalidFormLeavesRecord(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "2026-01-25", 3, "150.00")

	_, err := f.svc.UpdateProduction(context.Background(), admin, p.ID, f.form("2026-01-25", 3, "0"))
	assert.Equal(t, billing.ReasonValidation, billing.Classify(err))

	got, err := f.svc.GetProduction(context.Background(), p.ID)
	require.NoError(t, err)
	assertMoney(t, "450.00", got.Total)
}

func TestUpdateProduction_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateProduction(context.Background(), admin, "missing", f.form("2026-01-25", 1, "1"))
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteProduction_RecomputesPeriod(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "2026-01-25", 3, "150.00")
	f.create(t, "2026-01-25", 1, "50.00")

	require.NoError(t, f.svc.DeleteProduction(context.Background(), admin, a.ID))

	assertMoney(t, "50.00", f.period(t, a.PeriodID).Total)
	_, err := f.svc.GetProduction(context.Background(), a.ID)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestDeleteProduction_NextDayIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 3, "150.00")

	// WHEN: deleting the day after creation, period still open
	f.clock.Advance(24 * time.Hour)
	err := f.svc.DeleteProduction(ctx, admin, p.ID)

	// THEN: the same-day rule refuses it
	var locked *billing.EditLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockNotSameDay, locked.Reason)
	assert.False(t, errors.Is(err, billing.ErrPeriodClosed))

	_, err = f.svc.GetProduction(ctx, p.ID)
	assert.NoError(t, err)
	assertMoney(t, "450.00", f.period(t, p.PeriodID).Total)
}

func TestDeleteProduction_ClosedPeriodIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 3, "150.00")
	_, err := f.svc.ClosePeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)

	err = f.svc.DeleteProduction(ctx, admin, p.ID)

	var locked *billing.EditLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockPeriodClosed, locked.Reason)
	_, err = f.svc.GetProduction(ctx, p.ID)
	assert.NoError(t, err)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestClosePeriod_CascadesAndRejectsSecondClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var last billing.Production
	for i := 0; i < 3; i++ {
		last = f.create(t, "2026-01-25", 1, "100.00")
	}

	// WHEN: the period is closed
	closed, err := f.svc.ClosePeriod(ctx, admin, last.PeriodID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusClosed, closed.Status)

	// THEN: all three productions are closed
	members, err := f.svc.ProductionsByPeriod(ctx, last.PeriodID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	for _, p := range members {
		assert.Equal(t, billing.StatusClosed, p.Status)
		assert.False(t, f.svc.CanEditProduction(p))
	}

	// AND: closing again fails
	_, err = f.svc.ClosePeriod(ctx, admin, last.PeriodID)
	assert.ErrorIs(t, err, billing.ErrAlreadyClosed)

	open, err := f.svc.OpenPeriodsByClient(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReopenPeriod_ReversesCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 1, "100.00")
	_, err := f.svc.ClosePeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)

	reopened, err := f.svc.ReopenPeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusOpen, reopened.Status)

	got, err := f.svc.GetProduction(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusOpen, got.Status)
	assert.True(t, f.svc.CanEditProduction(got), "same day and open again")

	_, err = f.svc.ReopenPeriod(ctx, admin, p.PeriodID)
	assert.ErrorIs(t, err, billing.ErrAlreadyOpen)
}

func TestReopenPeriod_OlderProductionsStayLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 1, "100.00")
	_, err := f.svc.ClosePeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.ReopenPeriod(ctx, admin, p.PeriodID)
	require.NoError(t, err)

	got, err := f.svc.GetProduction(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.LockNotSameDay, f.svc.EditLockReason(got))
}

func TestClosePeriod_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ClosePeriod(context.Background(), admin, "missing")
	assert.Equal(t, billing.ReasonNotFound, billing.Classify(err))
}

func TestRecalculateTotal_RepairsStoredTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 3, "150.00")

	// GIVEN: a total corrupted behind the service's back
	period := f.period(t, p.PeriodID)
	period.Total = decimal.NewFromInt(1)
	require.NoError(t, f.store.UpdatePeriod(ctx, period))

	total, err := f.svc.RecalculateTotal(ctx, p.PeriodID)
	require.NoError(t, err)
	assertMoney(t, "450.00", total)
	assertMoney(t, "450.00", f.period(t, p.PeriodID).Total)
}

// =============================================================================
// DUPLICATE
// =============================================================================

func TestDuplicateProduction_CopiesDatedToday(t *testing.T) {
	f := newFixture(t)
	src := f.create(t, "2026-01-22", 3, "150.00")

	dup, err := f.svc.DuplicateProduction(context.Background(), admin, src.ID)
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "2026-01-25", dup.Date.String())
	assert.Equal(t, src.Name, dup.Name)
	assertMoney(t, "450.00", dup.Total)
	assertMoney(t, "900.00", f.period(t, dup.PeriodID).Total)
}

func TestDuplicateProduction_ClosedSourceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.create(t, "2026-01-25", 3, "150.00")
	_, err := f.svc.ClosePeriod(ctx, admin, src.PeriodID)
	require.NoError(t, err)

	// the closed cause wins even once the same-day window has also passed
	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.DuplicateProduction(ctx, admin, src.ID)

	var locked *billing.EditLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockPeriodClosed, locked.Reason)
	members, err := f.svc.ProductionsByPeriod(ctx, src.PeriodID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestDuplicateProduction_OldSourceFails(t *testing.T) {
	f := newFixture(t)
	src := f.create(t, "2026-01-25", 1, "10.00")
	f.clock.Advance(24 * time.Hour)

	_, err := f.svc.DuplicateProduction(context.Background(), admin, src.ID)

	var locked *billing.EditLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, billing.LockNotSameDay, locked.Reason)
}

// =============================================================================
// EDIT LOCK AND TIME ZONE
// =============================================================================

func TestCanEditProduction_UsesServiceTimezone(t *testing.T) {
	sp := time.FixedZone("BRT", -3*60*60)
	f := newFixture(t, ledger.WithLocation(sp))

	// GIVEN: created at 22:00 local on the 25th (01:00 UTC on the 26th)
	f.clock.now = time.Date(2026, time.January, 26, 1, 0, 0, 0, time.UTC)
	p := f.create(t, "2026-01-25", 1, "10.00")
	assert.Equal(t, "2026-01-25", f.svc.Today().String())

	// WHEN: it is 23:30 local, still the 25th
	f.clock.Advance(90 * time.Minute)
	assert.True(t, f.svc.CanEditProduction(p))

	// WHEN: local midnight passes
	f.clock.Advance(time.Hour)
	assert.False(t, f.svc.CanEditProduction(p))
}

// =============================================================================
// ROLES
// =============================================================================

func TestViewerCannotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, "2026-01-25", 1, "10.00")

	_, err := f.svc.CreateProduction(ctx, viewer, f.form("2026-01-25", 1, "10.00"))
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.UpdateProduction(ctx, viewer, p.ID, f.form("2026-01-25", 2, "10.00"))
	assert.ErrorIs(t, err, billing.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteProduction(ctx, viewer, p.ID), billing.ErrForbidden)
	_, err = f.svc.DuplicateProduction(ctx, viewer, p.ID)
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.ClosePeriod(ctx, viewer, p.PeriodID)
	assert.ErrorIs(t, err, billing.ErrForbidden)
	_, err = f.svc.CreateClient(ctx, viewer, "X")
	assert.Equal(t, billing.ReasonForbidden, billing.Classify(err))

	// reads stay open
	members, err := f.svc.ProductionsByPeriod(ctx, p.PeriodID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assertMoney(t, "10.00", f.period(t, p.PeriodID).Total)
}

// =============================================================================
// PERSISTENCE FAILURE
// =============================================================================

// failingStore fails every production insert, inside transactions too.
type failingStore struct {
	billing.Store
}

func (s failingStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return s.Store.WithTx(ctx, func(tx billing.Store) error {
		return fn(failingStore{Store: tx})
	})
}

func (failingStore) InsertProduction(context.Context, billing.Production) error {
	return errors.New("disk I/O error")
}

func TestCreateProduction_PersistenceFailureRollsBack(t *testing.T) {
	f := newFixtureWith(t, failingStore{Store: store.NewMemory()})

	_, err := f.svc.CreateProduction(context.Background(), admin, f.form("2026-01-25", 3, "150.00"))

	var perr *billing.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, billing.ReasonPersistence, billing.Classify(err))

	// the period created inside the failed transaction is gone too
	periods, err := f.svc.PeriodsByClient(context.Background(), f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentCreatesShareOnePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateProduction(ctx, admin, f.form("2026-01-25", 1, "10.00"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	periods, err := f.svc.PeriodsByClient(ctx, f.client.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assertMoney(t, "200.00", periods[0].Total)
	assertTotalInvariant(t, f, periods[0].ID)
}
