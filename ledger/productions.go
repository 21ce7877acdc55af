package ledger

import (
	"context"
	"fmt"

	"github.com/palmapsd/production-ledger/billing"
)

// =============================================================================
// WRITES
// =============================================================================

// CreateProduction validates form, places the record in the period its
// (client, date) maps to and recomputes that period's total.
// Fails with ErrPeriodClosed when the period is closed.
func (s *Service) CreateProduction(ctx context.Context, actor Actor, form billing.ProductionForm) (billing.Production, error) {
	if err := actor.authorize("create production"); err != nil {
		return billing.Production{}, err
	}
	form = form.Normalized()
	if err := billing.ValidateForm(form); err != nil {
		return billing.Production{}, err
	}

	var created billing.Production
	err := s.mutate(ctx, "create production", func(tx billing.Store) error {
		var err error
		created, err = s.insert(ctx, tx, form)
		return err
	})
	if err != nil {
		return billing.Production{}, err
	}
	s.invalidate(ctx, created.PeriodID)

	s.log.Info().
		Str("production_id", string(created.ID)).
		Str("period_id", string(created.PeriodID)).
		Str("client_id", string(created.ClientID)).
		Str("total", created.Total.StringFixed(2)).
		Str("actor", actor.ID).
		Msg("production created")
	return created, nil
}

// insert is the shared create path; form must already be validated.
func (s *Service) insert(ctx context.Context, tx billing.Store, form billing.ProductionForm) (billing.Production, error) {
	if err := s.checkReferences(ctx, tx, form, ""); err != nil {
		return billing.Production{}, err
	}
	date, err := billing.ParseDate(form.Date)
	if err != nil {
		return billing.Production{}, &billing.ValidationError{Messages: []string{"date is required"}}
	}

	period, err := s.findOrCreatePeriod(ctx, tx, form.ClientID, date)
	if err != nil {
		return billing.Production{}, err
	}
	if period.Status.IsClosed() {
		return billing.Production{}, fmt.Errorf("%w: %s", billing.ErrPeriodClosed, period.Label)
	}

	now := s.timestamp()
	p := billing.Production{
		ID:        billing.ProductionID(s.newID()),
		Date:      date,
		ClientID:  form.ClientID,
		ProjectID: form.ProjectID,
		Type:      form.Type,
		Name:      form.Name,
		Quantity:  form.Quantity,
		UnitPrice: form.UnitPrice,
		Total:     billing.ComputeTotal(form.Quantity, form.UnitPrice),
		PeriodID:  period.ID,
		Status:    period.Status,
		Notes:     form.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertProduction(ctx, p); err != nil {
		return billing.Production{}, persistErr("insert production", err)
	}
	if _, _, err := s.recompute(ctx, tx, period.ID); err != nil {
		return billing.Production{}, err
	}
	return p, nil
}

// UpdateProduction rewrites an editable production from form.
//
// The owning period is kept even when client or date change, unless
// Options.RebucketOnDateEdit is set, in which case the record moves to the
// period of its new (client, date) and both totals are recomputed.
func (s *Service) UpdateProduction(ctx context.Context, actor Actor, id billing.ProductionID, form billing.ProductionForm) (billing.Production, error) {
	if err := actor.authorize("update production"); err != nil {
		return billing.Production{}, err
	}
	form = form.Normalized()

	var (
		updated billing.Production
		from    billing.PeriodID
	)
	err := s.mutate(ctx, "update production", func(tx billing.Store) error {
		existing, err := tx.GetProduction(ctx, id)
		if err != nil {
			return persistErr("get production", err)
		}
		if err := s.checkEditable(existing); err != nil {
			return err
		}
		if err := billing.ValidateForm(form); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, tx, form, existing.Type); err != nil {
			return err
		}
		date, err := billing.ParseDate(form.Date)
		if err != nil {
			return &billing.ValidationError{Messages: []string{"date is required"}}
		}

		from = existing.PeriodID
		updated = existing
		updated.Date = date
		updated.ClientID = form.ClientID
		updated.ProjectID = form.ProjectID
		updated.Type = form.Type
		updated.Name = form.Name
		updated.Quantity = form.Quantity
		updated.UnitPrice = form.UnitPrice
		updated.Total = billing.ComputeTotal(form.Quantity, form.UnitPrice)
		updated.Notes = form.Notes
		updated.UpdatedAt = s.timestamp()

		if s.opts.RebucketOnDateEdit && movesBucket(existing, updated) {
			target, err := s.findOrCreatePeriod(ctx, tx, updated.ClientID, updated.Date)
			if err != nil {
				return err
			}
			if target.Status.IsClosed() {
				return fmt.Errorf("%w: %s", billing.ErrPeriodClosed, target.Label)
			}
			updated.PeriodID = target.ID
			updated.Status = target.Status
		}

		if err := tx.UpdateProduction(ctx, updated); err != nil {
			return persistErr("update production", err)
		}
		if _, _, err := s.recompute(ctx, tx, from); err != nil {
			return err
		}
		if updated.PeriodID != from {
			if _, _, err := s.recompute(ctx, tx, updated.PeriodID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return billing.Production{}, err
	}
	s.invalidate(ctx, from, updated.PeriodID)

	s.log.Info().
		Str("production_id", string(id)).
		Str("period_id", string(updated.PeriodID)).
		Bool("moved", updated.PeriodID != from).
		Str("actor", actor.ID).
		Msg("production updated")
	return updated, nil
}

// movesBucket reports whether the new (client, date) belongs to another period.
func movesBucket(before, after billing.Production) bool {
	if before.ClientID != after.ClientID {
		return true
	}
	return !billing.PeriodFor(before.Date).Start.Equal(billing.PeriodFor(after.Date).Start)
}

// DeleteProduction removes an editable production and recomputes its period.
func (s *Service) DeleteProduction(ctx context.Context, actor Actor, id billing.ProductionID) error {
	if err := actor.authorize("delete production"); err != nil {
		return err
	}

	var periodID billing.PeriodID
	err := s.mutate(ctx, "delete production", func(tx billing.Store) error {
		existing, err := tx.GetProduction(ctx, id)
		if err != nil {
			return persistErr("get production", err)
		}
		if err := s.checkEditable(existing); err != nil {
			return err
		}
		periodID = existing.PeriodID
		if err := tx.DeleteProduction(ctx, id); err != nil {
			return persistErr("delete production", err)
		}
		_, _, err = s.recompute(ctx, tx, periodID)
		return err
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, periodID)

	s.log.Info().
		Str("production_id", string(id)).
		Str("period_id", string(periodID)).
		Str("actor", actor.ID).
		Msg("production deleted")
	return nil
}

// DuplicateProduction copies an editable production, dated today, through
// the create path. A closed source fails with the period-closed lock reason
// before the same-day rule is looked at.
func (s *Service) DuplicateProduction(ctx context.Context, actor Actor, id billing.ProductionID) (billing.Production, error) {
	if err := actor.authorize("duplicate production"); err != nil {
		return billing.Production{}, err
	}

	var created billing.Production
	err := s.mutate(ctx, "duplicate production", func(tx billing.Store) error {
		source, err := tx.GetProduction(ctx, id)
		if err != nil {
			return persistErr("get production", err)
		}
		if err := s.checkEditable(source); err != nil {
			return err
		}

		form := billing.FormFrom(source)
		form.Date = s.Today().String()
		if err := billing.ValidateForm(form); err != nil {
			return err
		}
		created, err = s.insert(ctx, tx, form)
		return err
	})
	if err != nil {
		return billing.Production{}, err
	}
	s.invalidate(ctx, created.PeriodID)

	s.log.Info().
		Str("production_id", string(created.ID)).
		Str("source_id", string(id)).
		Str("period_id", string(created.PeriodID)).
		Str("actor", actor.ID).
		Msg("production duplicated")
	return created, nil
}

// checkReferences verifies the client exists, the project (if any) belongs
// to it and the type is a known active type. keepType is accepted even when
// it has since been deactivated.
func (s *Service) checkReferences(ctx context.Context, tx billing.Store, form billing.ProductionForm, keepType billing.ProductionType) error {
	var messages []string

	if _, err := tx.GetClient(ctx, form.ClientID); err != nil {
		if billing.Classify(err) != billing.ReasonNotFound {
			return persistErr("get client", err)
		}
		messages = append(messages, "client not found")
	}

	if form.ProjectID != "" {
		project, err := tx.GetProject(ctx, form.ProjectID)
		switch {
		case err != nil && billing.Classify(err) != billing.ReasonNotFound:
			return persistErr("get project", err)
		case err != nil:
			messages = append(messages, "project not found")
		case project.ClientID != form.ClientID:
			messages = append(messages, "project does not belong to client")
		}
	}

	types, err := tx.ListProductionTypes(ctx)
	if err != nil {
		return persistErr("list production types", err)
	}
	if !typeAllowed(types, form.Type, keepType) {
		messages = append(messages, "unknown production type")
	}

	if len(messages) > 0 {
		return &billing.ValidationError{Messages: messages}
	}
	return nil
}

func typeAllowed(types []billing.TypeDefinition, t, keep billing.ProductionType) bool {
	for _, def := range types {
		if def.Name == t {
			return def.Active || t == keep
		}
	}
	return false
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetProduction(ctx context.Context, id billing.ProductionID) (billing.Production, error) {
	p, err := s.store.GetProduction(ctx, id)
	return p, persistErr("get production", err)
}

// ProductionsByPeriod lists a period's members, newest date first.
func (s *Service) ProductionsByPeriod(ctx context.Context, periodID billing.PeriodID) ([]billing.Production, error) {
	if _, err := s.store.GetPeriod(ctx, periodID); err != nil {
		return nil, persistErr("get period", err)
	}
	ps, err := s.store.ListProductionsByPeriod(ctx, periodID)
	return ps, persistErr("list productions", err)
}

// ProductionsByClient lists every production of a client, newest date first.
func (s *Service) ProductionsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Production, error) {
	ps, err := s.store.ListProductionsByClient(ctx, clientID)
	return ps, persistErr("list productions", err)
}

func (s *Service) GetPeriod(ctx context.Context, id billing.PeriodID) (billing.Period, error) {
	p, err := s.store.GetPeriod(ctx, id)
	return p, persistErr("get period", err)
}

// PeriodsByClient lists a client's periods, newest first.
func (s *Service) PeriodsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Period, error) {
	ps, err := s.store.ListPeriods(ctx, clientID)
	return ps, persistErr("list periods", err)
}

// OpenPeriodsByClient lists a client's open periods, newest first.
func (s *Service) OpenPeriodsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Period, error) {
	all, err := s.PeriodsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	open := all[:0]
	for _, p := range all {
		if !p.Status.IsClosed() {
			open = append(open, p)
		}
	}
	return open, nil
}
