package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/palmapsd/production-ledger/billing"
)

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

// findOrCreatePeriod returns the client's period containing date, creating
// it Open with a zero total when missing. Calling it twice with dates in the
// same bucket yields the same period.
func (s *Service) findOrCreatePeriod(ctx context.Context, tx billing.Store, clientID billing.ClientID, date billing.Date) (billing.Period, error) {
	bounds := billing.PeriodFor(date)

	period, ok, err := tx.FindPeriod(ctx, clientID, bounds.Start, bounds.End)
	if err != nil {
		return billing.Period{}, persistErr("find period", err)
	}
	if ok {
		return period, nil
	}

	now := s.timestamp()
	period = billing.Period{
		ID:        billing.PeriodID(s.newID()),
		ClientID:  clientID,
		Start:     bounds.Start,
		End:       bounds.End,
		Label:     bounds.Label,
		Status:    billing.StatusOpen,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = tx.InsertPeriod(ctx, period)
	if errors.Is(err, billing.ErrDuplicatePeriod) {
		// lost the race to another writer: use theirs
		existing, found, ferr := tx.FindPeriod(ctx, clientID, bounds.Start, bounds.End)
		if ferr != nil {
			return billing.Period{}, persistErr("find period", ferr)
		}
		if !found {
			return billing.Period{}, persistErr("insert period", err)
		}
		return existing, nil
	}
	if err != nil {
		return billing.Period{}, persistErr("insert period", err)
	}

	s.log.Info().
		Str("period_id", string(period.ID)).
		Str("client_id", string(clientID)).
		Str("label", period.Label).
		Msg("period created")
	return period, nil
}

// recompute sets the period total to the sum of its members' totals and
// reports whether the stored value changed.
func (s *Service) recompute(ctx context.Context, tx billing.Store, periodID billing.PeriodID) (billing.Period, bool, error) {
	period, err := tx.GetPeriod(ctx, periodID)
	if err != nil {
		return billing.Period{}, false, persistErr("get period", err)
	}
	members, err := tx.ListProductionsByPeriod(ctx, periodID)
	if err != nil {
		return billing.Period{}, false, persistErr("list productions", err)
	}

	total := billing.SumTotals(members)
	if period.Total.Equal(total) {
		return period, false, nil
	}
	period.Total = total
	period.UpdatedAt = s.timestamp()
	if err := tx.UpdatePeriod(ctx, period); err != nil {
		return billing.Period{}, false, persistErr("update period", err)
	}
	return period, true, nil
}

// =============================================================================
// AGGREGATION
// =============================================================================

// RecalculateTotal recomputes and stores the period total from its members.
// Totals are already kept current by every mutation; this repairs data
// written by other tools. Cached reports are only dropped when the total
// actually changed.
func (s *Service) RecalculateTotal(ctx context.Context, periodID billing.PeriodID) (decimal.Decimal, error) {
	var (
		period  billing.Period
		changed bool
	)
	err := s.mutate(ctx, "recalculate total", func(tx billing.Store) error {
		var err error
		period, changed, err = s.recompute(ctx, tx, periodID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !changed {
		return period.Total, nil
	}
	s.invalidate(ctx, periodID)

	s.log.Debug().
		Str("period_id", string(periodID)).
		Str("total", period.Total.StringFixed(2)).
		Msg("period total recalculated")
	return period.Total, nil
}

// =============================================================================
// LIFECYCLE - Open <-> Closed with cascade
// =============================================================================

// ClosePeriod closes an open period and every production in it.
func (s *Service) ClosePeriod(ctx context.Context, actor Actor, periodID billing.PeriodID) (billing.Period, error) {
	return s.transition(ctx, actor, periodID, billing.StatusClosed)
}

// ReopenPeriod reopens a closed period and every production in it.
// Creation timestamps are untouched, so productions created on earlier
// days stay locked by the same-day rule.
func (s *Service) ReopenPeriod(ctx context.Context, actor Actor, periodID billing.PeriodID) (billing.Period, error) {
	return s.transition(ctx, actor, periodID, billing.StatusOpen)
}

func (s *Service) transition(ctx context.Context, actor Actor, periodID billing.PeriodID, to billing.Status) (billing.Period, error) {
	op := "close period"
	if to == billing.StatusOpen {
		op = "reopen period"
	}
	if err := actor.authorize(op); err != nil {
		return billing.Period{}, err
	}

	var (
		period   billing.Period
		cascaded int
	)
	err := s.mutate(ctx, op, func(tx billing.Store) error {
		var err error
		period, err = tx.GetPeriod(ctx, periodID)
		if err != nil {
			return persistErr("get period", err)
		}
		if period.Status == to {
			if to == billing.StatusClosed {
				return fmt.Errorf("%w: %s", billing.ErrAlreadyClosed, period.Label)
			}
			return fmt.Errorf("%w: %s", billing.ErrAlreadyOpen, period.Label)
		}

		now := s.timestamp()
		period.Status = to
		period.UpdatedAt = now
		if err := tx.UpdatePeriod(ctx, period); err != nil {
			return persistErr("update period", err)
		}
		cascaded, err = tx.SetPeriodProductionsStatus(ctx, periodID, to, now)
		if err != nil {
			return persistErr("cascade status", err)
		}
		return nil
	})
	if err != nil {
		return billing.Period{}, err
	}
	s.invalidate(ctx, periodID)

	s.log.Info().
		Str("period_id", string(periodID)).
		Str("client_id", string(period.ClientID)).
		Str("status", string(to)).
		Int("productions", cascaded).
		Str("actor", actor.ID).
		Msg("period status changed")
	return period, nil
}
