/*
scenarios.go - Demo data for local development

PURPOSE:

	Populates an empty ledger with two clients, a project and a handful of
	productions so the UI has something to show. Goes through the public
	Service operations, so every invariant holds for the seeded data.

WHAT GETS CREATED:
 1. Clients "Palma Café" and "Studio Norte"
 2. Project "Lançamento Verão" under Palma Café
 3. Productions for both clients in the current period (editable today)
 4. Productions in the previous period for Palma Café, which is then closed

NOTE:

	Only use against development databases. Running it twice creates a
	second set of clients.

SEE ALSO:
  - cmd/server/main.go: -seed flag
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/palmapsd/production-ledger/billing"
)

// DemoSummary describes what LoadDemoScenario created.
type DemoSummary struct {
	Clients      []billing.Client
	Productions  int
	ClosedPeriod billing.PeriodID
}

type demoLine struct {
	offset   int // days from the period anchor
	typ      billing.ProductionType
	name     string
	quantity int
	price    string
	project  bool
}

var (
	palmaCurrent = []demoLine{
		{0, billing.TypeFeed, "Post lançamento cardápio", 3, "150.00", true},
		{0, billing.TypeStory, "Stories bastidores", 5, "45.00", true},
		{0, billing.TypeReels, "Reels receita da semana", 1, "320.00", false},
	}
	palmaPrevious = []demoLine{
		{0, billing.TypeFeed, "Carrossel promoções", 2, "180.00", false},
		{1, billing.TypeVideo, "Vídeo institucional", 1, "1200.00", false},
		{2, billing.TypeLogo, "Ajuste de logo", 1, "450.00", false},
	}
	norteCurrent = []demoLine{
		{0, billing.TypeFeed, "Post portfólio", 4, "120.00", false},
		{0, billing.TypeOther, "Revisão de textos", 2, "90.50", false},
	}
)

// LoadDemoScenario seeds demo data through svc as actor.
func LoadDemoScenario(ctx context.Context, svc *Service, actor Actor) (DemoSummary, error) {
	var summary DemoSummary

	palma, err := svc.CreateClient(ctx, actor, "Palma Café")
	if err != nil {
		return summary, fmt.Errorf("demo client: %w", err)
	}
	norte, err := svc.CreateClient(ctx, actor, "Studio Norte")
	if err != nil {
		return summary, fmt.Errorf("demo client: %w", err)
	}
	summary.Clients = []billing.Client{palma, norte}

	project, err := svc.CreateProject(ctx, actor, palma.ID, "Lançamento Verão")
	if err != nil {
		return summary, fmt.Errorf("demo project: %w", err)
	}

	today := svc.Today()
	previous := billing.PeriodFor(today).Previous()

	add := func(client billing.ClientID, anchor billing.Date, lines []demoLine) (billing.PeriodID, error) {
		var periodID billing.PeriodID
		for _, l := range lines {
			form := billing.ProductionForm{
				Date:      anchor.AddDays(l.offset).String(),
				ClientID:  client,
				Type:      l.typ,
				Name:      l.name,
				Quantity:  l.quantity,
				UnitPrice: billing.NewMoney(l.price),
			}
			if l.project {
				form.ProjectID = project.ID
			}
			p, err := svc.CreateProduction(ctx, actor, form)
			if err != nil {
				return "", fmt.Errorf("demo production %q: %w", l.name, err)
			}
			periodID = p.PeriodID
			summary.Productions++
		}
		return periodID, nil
	}

	if _, err := add(palma.ID, today, palmaCurrent); err != nil {
		return summary, err
	}
	if _, err := add(norte.ID, today, norteCurrent); err != nil {
		return summary, err
	}
	closed, err := add(palma.ID, previous.Start, palmaPrevious)
	if err != nil {
		return summary, err
	}
	if _, err := svc.ClosePeriod(ctx, actor, closed); err != nil {
		return summary, fmt.Errorf("demo close: %w", err)
	}
	summary.ClosedPeriod = closed

	svc.log.Info().
		Int("clients", len(summary.Clients)).
		Int("productions", summary.Productions).
		Msg("demo scenario loaded")
	return summary, nil
}
