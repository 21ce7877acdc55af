/*
store.go - Persistence interfaces for the ledger

PURPOSE:

	Defines the boundary between the ledger service and the relational store.
	Four record collections (clients, projects, periods, productions) plus the
	production type list, keyed by opaque string ids.

CONTRACT:
  - Get* returns an error wrapping ErrNotFound for unknown ids.
  - InsertPeriod returns ErrDuplicatePeriod when (client, start, end) exists.
    This is the storage-level half of the one-period-per-bucket invariant.
  - Listings are ordered most recent first (date / start date descending).
  - WithTx runs fn atomically: on error nothing fn wrote is visible.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - billing/store/memory.go: In-memory for testing
*/
package billing

import (
	"context"
	"time"
)

// ReferenceStore persists clients, projects and production types.
type ReferenceStore interface {
	GetClient(ctx context.Context, id ClientID) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	SaveClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id ClientID) error

	GetProject(ctx context.Context, id ProjectID) (Project, error)
	ListProjects(ctx context.Context, clientID ClientID) ([]Project, error)
	SaveProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id ProjectID) error

	ListProductionTypes(ctx context.Context) ([]TypeDefinition, error)
	SaveProductionType(ctx context.Context, t TypeDefinition) error
}

// PeriodStore persists billing periods. Periods are never deleted.
type PeriodStore interface {
	GetPeriod(ctx context.Context, id PeriodID) (Period, error)

	// FindPeriod looks a period up by its natural key.
	// Returns (period, true, nil) when found, (Period{}, false, nil) otherwise.
	FindPeriod(ctx context.Context, clientID ClientID, start, end Date) (Period, bool, error)

	InsertPeriod(ctx context.Context, p Period) error

	// UpdatePeriod overwrites status, total and updated_at.
	UpdatePeriod(ctx context.Context, p Period) error

	// ListPeriods returns the client's periods, newest start first.
	ListPeriods(ctx context.Context, clientID ClientID) ([]Period, error)
}

// ProductionStore persists production records.
type ProductionStore interface {
	GetProduction(ctx context.Context, id ProductionID) (Production, error)
	InsertProduction(ctx context.Context, p Production) error
	UpdateProduction(ctx context.Context, p Production) error
	DeleteProduction(ctx context.Context, id ProductionID) error

	// ListProductionsByPeriod returns members of a period, newest date first.
	ListProductionsByPeriod(ctx context.Context, periodID PeriodID) ([]Production, error)

	// ListProductionsByClient returns the client's productions, newest date first.
	ListProductionsByClient(ctx context.Context, clientID ClientID) ([]Production, error)

	CountProductionsByClient(ctx context.Context, clientID ClientID) (int, error)
	CountProductionsByProject(ctx context.Context, projectID ProjectID) (int, error)

	// SetPeriodProductionsStatus sets status on every member of the period
	// and returns how many rows changed.
	SetPeriodProductionsStatus(ctx context.Context, periodID PeriodID, status Status, at time.Time) (int, error)
}

// Store is the full persistence boundary used by the ledger service.
type Store interface {
	ReferenceStore
	PeriodStore
	ProductionStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
