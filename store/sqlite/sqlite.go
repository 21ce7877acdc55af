/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:

	Persists clients, projects, production types, billing periods and
	production records. The ledger service never talks SQL; it only sees
	billing.Store.

KEY TABLES:

	clients:          Reference data, referenced by projects and productions
	projects:         Optional grouping below a client
	production_types: Administrator-managed type list (seeded on migrate)
	periods:          One row per (client, start_date, end_date)
	productions:      Billable records, each owned by one period

INVARIANTS ENFORCED BY THE SCHEMA:
  - UNIQUE(client_id, start_date, end_date) on periods: two concurrent
    find-or-create calls cannot produce two buckets. The loser gets
    billing.ErrDuplicatePeriod and re-reads.
  - productions.period_id REFERENCES periods(id).

ENCODING:

	Dates are TEXT "YYYY-MM-DD", timestamps are fixed-width RFC3339 with
	nanoseconds so that ORDER BY on the column is chronological, money is
	TEXT holding the decimal literal.

CONCURRENCY:

	Uses sync.RWMutex for thread-safety. Calls made through the Store passed
	to WithTx's callback run on the open *sql.Tx and skip the mutex, which
	WithTx already holds.

USAGE:

	store, err := sqlite.New("./data/ledger.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	svc := ledger.NewService(store)

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/palmapsd/production-ledger/billing"
)

// timestampLayout is RFC3339Nano without trailing-zero trimming.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema and seeds the default production types.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_client
		ON projects(client_id);

	CREATE TABLE IF NOT EXISTS production_types (
		name TEXT PRIMARY KEY,
		active INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- One bucket per client and boundaries
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		label TEXT NOT NULL,
		status TEXT NOT NULL,
		total TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(client_id, start_date, end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_periods_client_start
		ON periods(client_id, start_date DESC);

	CREATE TABLE IF NOT EXISTS productions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		client_id TEXT NOT NULL,
		project_id TEXT,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		total TEXT NOT NULL,
		period_id TEXT NOT NULL REFERENCES periods(id),
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Period membership (recompute, cascade, report: hot path)
	CREATE INDEX IF NOT EXISTS idx_productions_period
		ON productions(period_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_productions_client_date
		ON productions(client_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_productions_project
		ON productions(project_id) WHERE project_id IS NOT NULL;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	now := formatTime(time.Now())
	for i, t := range billing.DefaultProductionTypes {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO production_types (name, active, position, created_at) VALUES (?, 1, ?, ?)",
			string(t), i+1, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed production type %s: %w", t, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: conn{q: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the billing.Store handed to WithTx callbacks.
type txStore struct {
	conn
}

// WithTx on an open transaction joins it.
func (ts *txStore) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return fn(ts)
}

// =============================================================================
// LOCKED DELEGATES (Store -> conn over *sql.DB)
// =============================================================================

func (s *Store) c() conn { return conn{q: s.db} }

func (s *Store) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().GetClient(ctx, id)
}

func (s *Store) ListClients(ctx context.Context) ([]billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListClients(ctx)
}

func (s *Store) SaveClient(ctx context.Context, cl billing.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().SaveClient(ctx, cl)
}

func (s *Store) DeleteClient(ctx context.Context, id billing.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().DeleteClient(ctx, id)
}

func (s *Store) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().GetProject(ctx, id)
}

func (s *Store) ListProjects(ctx context.Context, clientID billing.ClientID) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListProjects(ctx, clientID)
}

func (s *Store) SaveProject(ctx context.Context, p billing.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().SaveProject(ctx, p)
}

func (s *Store) DeleteProject(ctx context.Context, id billing.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().DeleteProject(ctx, id)
}

func (s *Store) ListProductionTypes(ctx context.Context) ([]billing.TypeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListProductionTypes(ctx)
}

func (s *Store) SaveProductionType(ctx context.Context, t billing.TypeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().SaveProductionType(ctx, t)
}

func (s *Store) GetPeriod(ctx context.Context, id billing.PeriodID) (billing.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().GetPeriod(ctx, id)
}

func (s *Store) FindPeriod(ctx context.Context, clientID billing.ClientID, start, end billing.Date) (billing.Period, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().FindPeriod(ctx, clientID, start, end)
}

func (s *Store) InsertPeriod(ctx context.Context, p billing.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().InsertPeriod(ctx, p)
}

func (s *Store) UpdatePeriod(ctx context.Context, p billing.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().UpdatePeriod(ctx, p)
}

func (s *Store) ListPeriods(ctx context.Context, clientID billing.ClientID) ([]billing.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListPeriods(ctx, clientID)
}

func (s *Store) GetProduction(ctx context.Context, id billing.ProductionID) (billing.Production, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().GetProduction(ctx, id)
}

func (s *Store) InsertProduction(ctx context.Context, p billing.Production) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().InsertProduction(ctx, p)
}

func (s *Store) UpdateProduction(ctx context.Context, p billing.Production) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().UpdateProduction(ctx, p)
}

func (s *Store) DeleteProduction(ctx context.Context, id billing.ProductionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().DeleteProduction(ctx, id)
}

func (s *Store) ListProductionsByPeriod(ctx context.Context, periodID billing.PeriodID) ([]billing.Production, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListProductionsByPeriod(ctx, periodID)
}

func (s *Store) ListProductionsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Production, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().ListProductionsByClient(ctx, clientID)
}

func (s *Store) CountProductionsByClient(ctx context.Context, clientID billing.ClientID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().CountProductionsByClient(ctx, clientID)
}

func (s *Store) CountProductionsByProject(ctx context.Context, projectID billing.ProjectID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c().CountProductionsByProject(ctx, projectID)
}

func (s *Store) SetPeriodProductionsStatus(ctx context.Context, periodID billing.PeriodID, status billing.Status, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c().SetPeriodProductionsStatus(ctx, periodID, status, at)
}

// =============================================================================
// CONN - SQL against either the pool or an open transaction
// =============================================================================

type conn struct {
	q queryer
}

// ---- clients ----------------------------------------------------------------

const clientColumns = "id, name, active, created_at, updated_at"

func (c conn) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = ?", string(id))
	cl, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Client{}, &billing.NotFoundError{Kind: "client", ID: string(id)}
	}
	return cl, err
}

func (c conn) ListClients(ctx context.Context) ([]billing.Client, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []billing.Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// SaveClient inserts or updates a client.
func (c conn) SaveClient(ctx context.Context, cl billing.Client) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, string(cl.ID), cl.Name, cl.Active, formatTime(cl.CreatedAt), formatTime(cl.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (c conn) DeleteClient(ctx context.Context, id billing.ClientID) error {
	return c.deleteByID(ctx, "clients", "id", "client", string(id))
}

func scanClient(row scanner) (billing.Client, error) {
	var (
		cl                   billing.Client
		createdAt, updatedAt string
	)
	if err := row.Scan(&cl.ID, &cl.Name, &cl.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cl, err
		}
		return cl, fmt.Errorf("failed to scan client: %w", err)
	}
	cl.CreatedAt = parseTime(createdAt)
	cl.UpdatedAt = parseTime(updatedAt)
	return cl, nil
}

// ---- projects ---------------------------------------------------------------

const projectColumns = "id, client_id, name, active, created_at, updated_at"

func (c conn) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", string(id))
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Project{}, &billing.NotFoundError{Kind: "project", ID: string(id)}
	}
	return p, err
}

func (c conn) ListProjects(ctx context.Context, clientID billing.ClientID) ([]billing.Project, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE client_id = ? ORDER BY name",
		string(clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []billing.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c conn) SaveProject(ctx context.Context, p billing.Project) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO projects (id, client_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, string(p.ID), string(p.ClientID), p.Name, p.Active, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (c conn) DeleteProject(ctx context.Context, id billing.ProjectID) error {
	return c.deleteByID(ctx, "projects", "id", "project", string(id))
}

func scanProject(row scanner) (billing.Project, error) {
	var (
		p                    billing.Project
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.ClientID, &p.Name, &p.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan project: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ---- production types -------------------------------------------------------

func (c conn) ListProductionTypes(ctx context.Context) ([]billing.TypeDefinition, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT name, active, position, created_at FROM production_types ORDER BY position, name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query production types: %w", err)
	}
	defer rows.Close()

	var out []billing.TypeDefinition
	for rows.Next() {
		var (
			t         billing.TypeDefinition
			createdAt string
		)
		if err := rows.Scan(&t.Name, &t.Active, &t.Position, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan production type: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c conn) SaveProductionType(ctx context.Context, t billing.TypeDefinition) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO production_types (name, active, position, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			active = excluded.active,
			position = excluded.position
	`, string(t.Name), t.Active, t.Position, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save production type: %w", err)
	}
	return nil
}

// ---- periods ----------------------------------------------------------------

const periodColumns = "id, client_id, start_date, end_date, label, status, total, created_at, updated_at"

func (c conn) GetPeriod(ctx context.Context, id billing.PeriodID) (billing.Period, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+periodColumns+" FROM periods WHERE id = ?", string(id))
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Period{}, &billing.NotFoundError{Kind: "period", ID: string(id)}
	}
	return p, err
}

func (c conn) FindPeriod(ctx context.Context, clientID billing.ClientID, start, end billing.Date) (billing.Period, bool, error) {
	row := c.q.QueryRowContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE client_id = ? AND start_date = ? AND end_date = ?",
		string(clientID), start.String(), end.String(),
	)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Period{}, false, nil
	}
	if err != nil {
		return billing.Period{}, false, err
	}
	return p, true, nil
}

func (c conn) InsertPeriod(ctx context.Context, p billing.Period) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO periods (id, client_id, start_date, end_date, label, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(p.ID), string(p.ClientID), p.Start.String(), p.End.String(), p.Label,
		string(p.Status), p.Total.String(), formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return billing.ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to insert period: %w", err)
	}
	return nil
}

func (c conn) UpdatePeriod(ctx context.Context, p billing.Period) error {
	res, err := c.q.ExecContext(ctx,
		"UPDATE periods SET status = ?, total = ?, updated_at = ? WHERE id = ?",
		string(p.Status), p.Total.String(), formatTime(p.UpdatedAt), string(p.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update period: %w", err)
	}
	return requireRow(res, "period", string(p.ID))
}

func (c conn) ListPeriods(ctx context.Context, clientID billing.ClientID) ([]billing.Period, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT "+periodColumns+" FROM periods WHERE client_id = ? ORDER BY start_date DESC",
		string(clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var out []billing.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(row scanner) (billing.Period, error) {
	var (
		p                    billing.Period
		start, end, total    string
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.ClientID, &start, &end, &p.Label, &p.Status, &total, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan period: %w", err)
	}
	if p.Start, err = billing.ParseDate(start); err != nil {
		return p, fmt.Errorf("period %s: bad start_date: %w", p.ID, err)
	}
	if p.End, err = billing.ParseDate(end); err != nil {
		return p, fmt.Errorf("period %s: bad end_date: %w", p.ID, err)
	}
	if p.Total, err = decimal.NewFromString(total); err != nil {
		return p, fmt.Errorf("period %s: bad total: %w", p.ID, err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ---- productions ------------------------------------------------------------

const productionColumns = `id, date, client_id, project_id, type, name, quantity, unit_price, total,
	period_id, status, notes, created_at, updated_at`

func (c conn) GetProduction(ctx context.Context, id billing.ProductionID) (billing.Production, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+productionColumns+" FROM productions WHERE id = ?", string(id))
	p, err := scanProduction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Production{}, &billing.NotFoundError{Kind: "production", ID: string(id)}
	}
	return p, err
}

func (c conn) InsertProduction(ctx context.Context, p billing.Production) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO productions
		(id, date, client_id, project_id, type, name, quantity, unit_price, total,
		 period_id, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(p.ID), p.Date.String(), string(p.ClientID), nullString(string(p.ProjectID)),
		string(p.Type), p.Name, p.Quantity, p.UnitPrice.String(), p.Total.String(),
		string(p.PeriodID), string(p.Status), nullString(p.Notes),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert production: %w", err)
	}
	return nil
}

// UpdateProduction rewrites every mutable column. created_at never changes.
func (c conn) UpdateProduction(ctx context.Context, p billing.Production) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE productions SET
			date = ?, client_id = ?, project_id = ?, type = ?, name = ?, quantity = ?,
			unit_price = ?, total = ?, period_id = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		p.Date.String(), string(p.ClientID), nullString(string(p.ProjectID)), string(p.Type),
		p.Name, p.Quantity, p.UnitPrice.String(), p.Total.String(), string(p.PeriodID),
		string(p.Status), nullString(p.Notes), formatTime(p.UpdatedAt), string(p.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update production: %w", err)
	}
	return requireRow(res, "production", string(p.ID))
}

func (c conn) DeleteProduction(ctx context.Context, id billing.ProductionID) error {
	return c.deleteByID(ctx, "productions", "id", "production", string(id))
}

func (c conn) ListProductionsByPeriod(ctx context.Context, periodID billing.PeriodID) ([]billing.Production, error) {
	return c.queryProductions(ctx,
		"SELECT "+productionColumns+" FROM productions WHERE period_id = ? ORDER BY date DESC, created_at DESC",
		string(periodID),
	)
}

func (c conn) ListProductionsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Production, error) {
	return c.queryProductions(ctx,
		"SELECT "+productionColumns+" FROM productions WHERE client_id = ? ORDER BY date DESC, created_at DESC",
		string(clientID),
	)
}

func (c conn) CountProductionsByClient(ctx context.Context, clientID billing.ClientID) (int, error) {
	return c.count(ctx, "SELECT COUNT(*) FROM productions WHERE client_id = ?", string(clientID))
}

func (c conn) CountProductionsByProject(ctx context.Context, projectID billing.ProjectID) (int, error) {
	return c.count(ctx, "SELECT COUNT(*) FROM productions WHERE project_id = ?", string(projectID))
}

func (c conn) SetPeriodProductionsStatus(ctx context.Context, periodID billing.PeriodID, status billing.Status, at time.Time) (int, error) {
	res, err := c.q.ExecContext(ctx,
		"UPDATE productions SET status = ?, updated_at = ? WHERE period_id = ?",
		string(status), formatTime(at), string(periodID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade status: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (c conn) queryProductions(ctx context.Context, query string, args ...any) ([]billing.Production, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query productions: %w", err)
	}
	defer rows.Close()

	var out []billing.Production
	for rows.Next() {
		p, err := scanProduction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduction(row scanner) (billing.Production, error) {
	var (
		p                    billing.Production
		date                 string
		projectID, notes     sql.NullString
		unitPrice, total     string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID, &date, &p.ClientID, &projectID, &p.Type, &p.Name, &p.Quantity,
		&unitPrice, &total, &p.PeriodID, &p.Status, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan production: %w", err)
	}
	if p.Date, err = billing.ParseDate(date); err != nil {
		return p, fmt.Errorf("production %s: bad date: %w", p.ID, err)
	}
	if p.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return p, fmt.Errorf("production %s: bad unit_price: %w", p.ID, err)
	}
	if p.Total, err = decimal.NewFromString(total); err != nil {
		return p, fmt.Errorf("production %s: bad total: %w", p.ID, err)
	}
	p.ProjectID = billing.ProjectID(projectID.String)
	p.Notes = notes.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ---- shared -----------------------------------------------------------------

func (c conn) deleteByID(ctx context.Context, table, column, kind, id string) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return requireRow(res, kind, id)
}

func (c conn) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &billing.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
