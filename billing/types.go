/*
Package billing provides the core of the production ledger.

PURPOSE:

	Client work is recorded as Productions (one billable line: a feed post, a
	video, a logo). Productions are grouped per client into fixed 21 -> 20
	billing Periods. A Period carries a running total and an Open/Closed
	status that is mirrored onto every Production it contains.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client, Project: reference data a Production points at
  - ProductionType: administrator-managed grouping label
  - Period: the billing bucket (derived boundaries, status, total)
  - Production: one billable record (quantity x unit price = total)

DESIGN PRINCIPLES:
 1. Derived values are never edited directly: period boundaries come from
    PeriodFor, totals come from quantity x unit price and from the sum of
    member productions.
 2. Precision: money uses decimal.Decimal.
 3. Type Safety: distinct ID types for each collection.

SEE ALSO:
  - period.go: PeriodFor (21 -> 20 rule)
  - lock.go: Edit-lock policy
  - aggregate.go: Totals and per-type grouping
  - store.go: Persistence interfaces
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type ProjectID string
type PeriodID string
type ProductionID string

// =============================================================================
// STATUS
// =============================================================================

// Status is shared by periods and the productions they contain.
type Status string

const (
	StatusOpen   Status = "Aberto"
	StatusClosed Status = "Fechado"
)

func (s Status) IsClosed() bool { return s == StatusClosed }

// =============================================================================
// PRODUCTION TYPE - Reporting category, no behaviour of its own
// =============================================================================

type ProductionType string

const (
	TypeFeed  ProductionType = "Feed"
	TypeStory ProductionType = "Story"
	TypeReels ProductionType = "Reels"
	TypeVideo ProductionType = "Vídeo"
	TypeLogo  ProductionType = "Logo"
	TypeOther ProductionType = "Outro"
)

// DefaultProductionTypes is the seed list, in display order.
var DefaultProductionTypes = []ProductionType{TypeFeed, TypeStory, TypeReels, TypeVideo, TypeLogo, TypeOther}

// TypeDefinition is a stored production type.
type TypeDefinition struct {
	Name      ProductionType
	Active    bool
	Position  int
	CreatedAt time.Time
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type Client struct {
	ID        ClientID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Project struct {
	ID        ProjectID
	ClientID  ClientID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PERIOD - Billing bucket per client
// =============================================================================

// Period is unique per (ClientID, Start, End). Start, End and Label always
// come from PeriodFor; Total always equals the sum of member totals.
type Period struct {
	ID        PeriodID
	ClientID  ClientID
	Start     Date
	End       Date
	Label     string
	Status    Status
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bounds returns the period boundaries.
func (p Period) Bounds() PeriodBounds {
	return PeriodBounds{Start: p.Start, End: p.End, Label: p.Label}
}

// =============================================================================
// PRODUCTION - One billable unit
// =============================================================================

type Production struct {
	ID        ProductionID
	Date      Date
	ClientID  ClientID
	ProjectID ProjectID // empty when the production has no project
	Type      ProductionType
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	PeriodID  PeriodID
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// currencyPlaces is the minor-unit precision of BRL.
const currencyPlaces = 2

// ComputeTotal returns quantity x unit price at currency precision.
func ComputeTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(currencyPlaces)
}

// NewMoney parses a decimal literal, returning zero on malformed input.
func NewMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
