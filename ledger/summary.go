package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/palmapsd/production-ledger/billing"
)

// Summary is the dashboard overview across every client.
type Summary struct {
	Today            billing.Date
	CurrentPeriod    billing.PeriodBounds
	ActiveClients    int
	Productions      int
	TodayProductions int
	TodayTotal       decimal.Decimal
	OpenPeriods      int
	OpenTotal        decimal.Decimal
}

// Summary counts productions dated today and sums the open periods.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	today := s.Today()
	sum := Summary{
		Today:         today,
		CurrentPeriod: billing.PeriodFor(today),
		TodayTotal:    decimal.Zero,
		OpenTotal:     decimal.Zero,
	}

	clients, err := s.ListClients(ctx)
	if err != nil {
		return Summary{}, err
	}
	for _, c := range clients {
		if c.Active {
			sum.ActiveClients++
		}

		ps, err := s.store.ListProductionsByClient(ctx, c.ID)
		if err != nil {
			return Summary{}, persistErr("list productions", err)
		}
		sum.Productions += len(ps)
		for _, p := range ps {
			if p.Date.Equal(today) {
				sum.TodayProductions++
				sum.TodayTotal = sum.TodayTotal.Add(p.Total)
			}
		}

		periods, err := s.store.ListPeriods(ctx, c.ID)
		if err != nil {
			return Summary{}, persistErr("list periods", err)
		}
		for _, p := range periods {
			if !p.Status.IsClosed() {
				sum.OpenPeriods++
				sum.OpenTotal = sum.OpenTotal.Add(p.Total)
			}
		}
	}
	return sum, nil
}
