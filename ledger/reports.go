package ledger

import (
	"context"

	"github.com/palmapsd/production-ledger/billing"
)

// ReportCache stores period report snapshots between requests.
// Implementations must treat a miss as (zero, false, nil).
type ReportCache interface {
	GetReport(ctx context.Context, id billing.PeriodID) (billing.PeriodReport, bool, error)
	SetReport(ctx context.Context, report billing.PeriodReport) error
	Invalidate(ctx context.Context, ids ...billing.PeriodID) error
}

type noCache struct{}

func (noCache) GetReport(context.Context, billing.PeriodID) (billing.PeriodReport, bool, error) {
	return billing.PeriodReport{}, false, nil
}
func (noCache) SetReport(context.Context, billing.PeriodReport) error { return nil }
func (noCache) Invalidate(context.Context, ...billing.PeriodID) error { return nil }

// PeriodReport returns the period, its productions (newest first) and the
// per-type summary. Concurrent misses for one period share a single build.
func (s *Service) PeriodReport(ctx context.Context, periodID billing.PeriodID) (billing.PeriodReport, error) {
	report, ok, err := s.cache.GetReport(ctx, periodID)
	if err != nil {
		s.log.Warn().Err(err).Str("period_id", string(periodID)).Msg("report cache read failed")
	}
	if ok {
		return report, nil
	}

	ch := s.reports.DoChan(string(periodID), func() (interface{}, error) {
		return s.buildReport(context.WithoutCancel(ctx), periodID)
	})
	select {
	case <-ctx.Done():
		return billing.PeriodReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return billing.PeriodReport{}, res.Err
		}
		return res.Val.(billing.PeriodReport), nil
	}
}

func (s *Service) buildReport(ctx context.Context, periodID billing.PeriodID) (billing.PeriodReport, error) {
	gen := s.generation(periodID)

	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return billing.PeriodReport{}, persistErr("get period", err)
	}
	members, err := s.store.ListProductionsByPeriod(ctx, periodID)
	if err != nil {
		return billing.PeriodReport{}, persistErr("list productions", err)
	}
	known, err := s.knownTypes(ctx)
	if err != nil {
		return billing.PeriodReport{}, err
	}

	var clientName string
	if client, err := s.store.GetClient(ctx, period.ClientID); err == nil {
		clientName = client.Name
	} else if billing.Classify(err) != billing.ReasonNotFound {
		return billing.PeriodReport{}, persistErr("get client", err)
	}

	report := billing.NewPeriodReport(period, clientName, members, known)
	s.storeReport(ctx, report, gen)
	return report, nil
}

// GroupByType summarises ps per production type. Every active type appears,
// in display order, even with zero totals.
func (s *Service) GroupByType(ctx context.Context, ps []billing.Production) ([]billing.TypeSummary, error) {
	known, err := s.knownTypes(ctx)
	if err != nil {
		return nil, err
	}
	return billing.GroupByType(ps, known), nil
}

func (s *Service) knownTypes(ctx context.Context) ([]billing.ProductionType, error) {
	defs, err := s.store.ListProductionTypes(ctx)
	if err != nil {
		return nil, persistErr("list production types", err)
	}
	out := make([]billing.ProductionType, 0, len(defs))
	for _, d := range defs {
		if d.Active {
			out = append(out, d.Name)
		}
	}
	return out, nil
}
