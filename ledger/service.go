/*
Package ledger is the facade the UI and reporting layers talk to.

PURPOSE:

	Orchestrates the billing engine over a billing.Store: every mutation of a
	production or period goes through a Service method, which checks the
	actor's role, validates, applies the edit-lock policy, writes inside one
	store transaction and recomputes the affected period totals before the
	transaction commits.

MUTATION FLOW:
 1. Actor capability check (admin only)
 2. Normalise + validate input (collected messages)
 3. Store.WithTx:
    a. load current state, apply lock policy
    b. find-or-create the owning period
    c. write the record
    d. recompute every touched period total
 4. After commit: invalidate cached reports, log

CONCURRENCY:

	Mutations are serialised by a service mutex (one logical writer). Reads
	go straight to the store. Concurrent report cache misses for the same
	period are coalesced.

SEE ALSO:
  - productions.go: Create / Update / Delete / Duplicate
  - lifecycle.go: Close / Reopen / RecalculateTotal, findOrCreatePeriod
  - reports.go: PeriodReport (cached)
  - reference.go: clients, projects, production types
*/
package ledger

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/palmapsd/production-ledger/billing"
)

// Options toggles behaviour that differs between deployments.
type Options struct {
	// RebucketOnDateEdit moves a production to the period of its new
	// (client, date) on update. When false the owning period never changes.
	RebucketOnDateEdit bool
}

// Service implements the ledger operations.
type Service struct {
	store billing.Store
	cache ReportCache
	log   zerolog.Logger
	loc   *time.Location
	opts  Options
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	reports singleflight.Group

	// cacheMu orders report cache writes against invalidations; gens counts
	// invalidations per period so a build that raced a write is not stored.
	cacheMu sync.Mutex
	gens    map[billing.PeriodID]uint64
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves PeriodReport through c.
func WithCache(c ReportCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithLocation sets the zone "today" is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithOptions sets behaviour toggles.
func WithOptions(o Options) Option {
	return func(s *Service) { s.opts = o }
}

// NewService constructs a Service over store.
func NewService(store billing.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: noCache{},
		log:   zerolog.New(io.Discard),
		loc:   time.UTC,
		now:   time.Now,
		newID: uuid.NewString,
		gens:  make(map[billing.PeriodID]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Today is the current calendar date in the service's zone.
func (s *Service) Today() billing.Date {
	return billing.DateOf(s.now().In(s.loc))
}

// lockReason evaluates the edit-lock policy with the creation timestamp
// seen in the same zone as Today.
func (s *Service) lockReason(p billing.Production) billing.LockReason {
	p.CreatedAt = p.CreatedAt.In(s.loc)
	return billing.LockReasonFor(p, s.Today())
}

func (s *Service) checkEditable(p billing.Production) error {
	if reason := s.lockReason(p); reason != "" {
		return &billing.EditLockedError{ProductionID: p.ID, Reason: reason}
	}
	return nil
}

// CanEditProduction reports whether p may be updated, deleted or duplicated now.
func (s *Service) CanEditProduction(p billing.Production) bool {
	return s.lockReason(p) == ""
}

// EditLockReason explains why p is locked, or "" when it is editable.
func (s *Service) EditLockReason(p billing.Production) billing.LockReason {
	return s.lockReason(p)
}

// =============================================================================
// HELPERS
// =============================================================================

// persistErr wraps store failures in PersistenceError. Domain errors and
// errors that are already wrapped pass through unchanged.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, billing.ErrPersistence) || billing.IsClientError(err) {
		return err
	}
	return &billing.PersistenceError{Op: op, Err: err}
}

// mutate runs fn in a store transaction under the writer lock.
func (s *Service) mutate(ctx context.Context, op string, fn func(tx billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persistErr(op, s.store.WithTx(ctx, fn))
}

// invalidate drops cached reports for the given periods. Failures are
// logged only: the cache entry expires on its own.
func (s *Service) invalidate(ctx context.Context, ids ...billing.PeriodID) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	for _, id := range ids {
		s.gens[id]++
		s.reports.Forget(string(id))
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Msg("report cache invalidation failed")
	}
}

// generation is the number of invalidations seen for a period.
func (s *Service) generation(id billing.PeriodID) uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gens[id]
}

// storeReport caches report unless its period was invalidated after gen
// was taken, in which case the snapshot may predate the write.
func (s *Service) storeReport(ctx context.Context, report billing.PeriodReport, gen uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.gens[report.Period.ID] != gen {
		s.log.Debug().Str("period_id", string(report.Period.ID)).Msg("report changed during build, not cached")
		return
	}
	if err := s.cache.SetReport(ctx, report); err != nil {
		s.log.Warn().Err(err).Str("period_id", string(report.Period.ID)).Msg("report cache write failed")
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}
