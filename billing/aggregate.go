package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD AGGREGATION
// =============================================================================

// SumTotals returns the exact sum of Total over ps.
func SumTotals(ps []Production) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range ps {
		sum = sum.Add(p.Total)
	}
	return sum
}

// TypeSummary is the per-type slice of a period.
type TypeSummary struct {
	Type     ProductionType
	Count    int // number of production records
	Quantity int // sum of quantities
	Total    decimal.Decimal
}

// GroupByType partitions ps by production type. Every type in known appears
// in the result, in the given order, even with a zero total. Types found in
// ps but missing from known are appended in name order.
func GroupByType(ps []Production, known []ProductionType) []TypeSummary {
	index := make(map[ProductionType]int, len(known))
	out := make([]TypeSummary, 0, len(known))
	for _, t := range known {
		if _, dup := index[t]; dup {
			continue
		}
		index[t] = len(out)
		out = append(out, TypeSummary{Type: t, Total: decimal.Zero})
	}

	var extra []ProductionType
	for _, p := range ps {
		if _, ok := index[p.Type]; !ok {
			index[p.Type] = -1
			extra = append(extra, p.Type)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, t := range extra {
		index[t] = len(out)
		out = append(out, TypeSummary{Type: t, Total: decimal.Zero})
	}

	for _, p := range ps {
		s := &out[index[p.Type]]
		s.Count++
		s.Quantity += p.Quantity
		s.Total = s.Total.Add(p.Total)
	}
	return out
}

// PeriodReport is a read-only snapshot of a period for rendering and export.
type PeriodReport struct {
	Period      Period
	ClientName  string
	Productions []Production
	ByType      []TypeSummary
}

// NewPeriodReport assembles a report from a period and its members.
func NewPeriodReport(period Period, clientName string, ps []Production, known []ProductionType) PeriodReport {
	return PeriodReport{
		Period:      period,
		ClientName:  clientName,
		Productions: ps,
		ByType:      GroupByType(ps, known),
	}
}
