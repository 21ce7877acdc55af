// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/palmapsd/production-ledger/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	clients     map[billing.ClientID]billing.Client
	projects    map[billing.ProjectID]billing.Project
	types       map[billing.ProductionType]billing.TypeDefinition
	periods     map[billing.PeriodID]billing.Period
	productions map[billing.ProductionID]billing.Production
}

// NewMemory returns an empty store seeded with the default production types.
func NewMemory() *Memory {
	st := &memState{
		clients:     make(map[billing.ClientID]billing.Client),
		projects:    make(map[billing.ProjectID]billing.Project),
		types:       make(map[billing.ProductionType]billing.TypeDefinition),
		periods:     make(map[billing.PeriodID]billing.Period),
		productions: make(map[billing.ProductionID]billing.Production),
	}
	now := time.Now().UTC()
	for i, t := range billing.DefaultProductionTypes {
		st.types[t] = billing.TypeDefinition{Name: t, Active: true, Position: i + 1, CreatedAt: now}
	}
	return &Memory{state: st}
}

func (s *memState) clone() *memState {
	c := &memState{
		clients:     make(map[billing.ClientID]billing.Client, len(s.clients)),
		projects:    make(map[billing.ProjectID]billing.Project, len(s.projects)),
		types:       make(map[billing.ProductionType]billing.TypeDefinition, len(s.types)),
		periods:     make(map[billing.PeriodID]billing.Period, len(s.periods)),
		productions: make(map[billing.ProductionID]billing.Production, len(s.productions)),
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.types {
		c.types[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.productions {
		c.productions[k] = v
	}
	return c
}

// =============================================================================
// LOCKED ACCESS
// =============================================================================

func (m *Memory) read(fn func(*memState)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.state)
}

func (m *Memory) write(fn func(*memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

// WithTx runs fn against a private copy of the state and publishes it only
// when fn succeeds. Writers are serialised for the duration of fn.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&txView{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// =============================================================================
// billing.Store on Memory
// =============================================================================

func (m *Memory) GetClient(_ context.Context, id billing.ClientID) (c billing.Client, err error) {
	m.read(func(s *memState) { c, err = s.getClient(id) })
	return
}

func (m *Memory) ListClients(_ context.Context) (out []billing.Client, err error) {
	m.read(func(s *memState) { out = s.listClients() })
	return
}

func (m *Memory) SaveClient(_ context.Context, c billing.Client) error {
	return m.write(func(s *memState) error { s.clients[c.ID] = c; return nil })
}

func (m *Memory) DeleteClient(_ context.Context, id billing.ClientID) error {
	return m.write(func(s *memState) error { return s.deleteClient(id) })
}

func (m *Memory) GetProject(_ context.Context, id billing.ProjectID) (p billing.Project, err error) {
	m.read(func(s *memState) { p, err = s.getProject(id) })
	return
}

func (m *Memory) ListProjects(_ context.Context, clientID billing.ClientID) (out []billing.Project, err error) {
	m.read(func(s *memState) { out = s.listProjects(clientID) })
	return
}

func (m *Memory) SaveProject(_ context.Context, p billing.Project) error {
	return m.write(func(s *memState) error { s.projects[p.ID] = p; return nil })
}

func (m *Memory) DeleteProject(_ context.Context, id billing.ProjectID) error {
	return m.write(func(s *memState) error { return s.deleteProject(id) })
}

func (m *Memory) ListProductionTypes(_ context.Context) (out []billing.TypeDefinition, err error) {
	m.read(func(s *memState) { out = s.listTypes() })
	return
}

func (m *Memory) SaveProductionType(_ context.Context, t billing.TypeDefinition) error {
	return m.write(func(s *memState) error { s.types[t.Name] = t; return nil })
}

func (m *Memory) GetPeriod(_ context.Context, id billing.PeriodID) (p billing.Period, err error) {
	m.read(func(s *memState) { p, err = s.getPeriod(id) })
	return
}

func (m *Memory) FindPeriod(_ context.Context, clientID billing.ClientID, start, end billing.Date) (p billing.Period, ok bool, err error) {
	m.read(func(s *memState) { p, ok = s.findPeriod(clientID, start, end) })
	return
}

func (m *Memory) InsertPeriod(_ context.Context, p billing.Period) error {
	return m.write(func(s *memState) error { return s.insertPeriod(p) })
}

func (m *Memory) UpdatePeriod(_ context.Context, p billing.Period) error {
	return m.write(func(s *memState) error { return s.updatePeriod(p) })
}

func (m *Memory) ListPeriods(_ context.Context, clientID billing.ClientID) (out []billing.Period, err error) {
	m.read(func(s *memState) { out = s.listPeriods(clientID) })
	return
}

func (m *Memory) GetProduction(_ context.Context, id billing.ProductionID) (p billing.Production, err error) {
	m.read(func(s *memState) { p, err = s.getProduction(id) })
	return
}

func (m *Memory) InsertProduction(_ context.Context, p billing.Production) error {
	return m.write(func(s *memState) error { s.productions[p.ID] = p; return nil })
}

func (m *Memory) UpdateProduction(_ context.Context, p billing.Production) error {
	return m.write(func(s *memState) error { return s.updateProduction(p) })
}

func (m *Memory) DeleteProduction(_ context.Context, id billing.ProductionID) error {
	return m.write(func(s *memState) error { return s.deleteProduction(id) })
}

func (m *Memory) ListProductionsByPeriod(_ context.Context, periodID billing.PeriodID) (out []billing.Production, err error) {
	m.read(func(s *memState) {
		out = s.filterProductions(func(p billing.Production) bool { return p.PeriodID == periodID })
	})
	return
}

func (m *Memory) ListProductionsByClient(_ context.Context, clientID billing.ClientID) (out []billing.Production, err error) {
	m.read(func(s *memState) {
		out = s.filterProductions(func(p billing.Production) bool { return p.ClientID == clientID })
	})
	return
}

func (m *Memory) CountProductionsByClient(_ context.Context, clientID billing.ClientID) (n int, err error) {
	m.read(func(s *memState) {
		n = len(s.filterProductions(func(p billing.Production) bool { return p.ClientID == clientID }))
	})
	return
}

func (m *Memory) CountProductionsByProject(_ context.Context, projectID billing.ProjectID) (n int, err error) {
	m.read(func(s *memState) {
		n = len(s.filterProductions(func(p billing.Production) bool { return p.ProjectID == projectID }))
	})
	return
}

func (m *Memory) SetPeriodProductionsStatus(_ context.Context, periodID billing.PeriodID, status billing.Status, at time.Time) (n int, err error) {
	err = m.write(func(s *memState) error {
		n = s.setPeriodStatus(periodID, status, at)
		return nil
	})
	return
}

// =============================================================================
// TRANSACTION VIEW - Same operations without locking
// =============================================================================

type txView struct {
	state *memState
}

func (t *txView) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return fn(t)
}

func (t *txView) GetClient(_ context.Context, id billing.ClientID) (billing.Client, error) {
	return t.state.getClient(id)
}

func (t *txView) ListClients(_ context.Context) ([]billing.Client, error) {
	return t.state.listClients(), nil
}

func (t *txView) SaveClient(_ context.Context, c billing.Client) error {
	t.state.clients[c.ID] = c
	return nil
}

func (t *txView) DeleteClient(_ context.Context, id billing.ClientID) error {
	return t.state.deleteClient(id)
}

func (t *txView) GetProject(_ context.Context, id billing.ProjectID) (billing.Project, error) {
	return t.state.getProject(id)
}

func (t *txView) ListProjects(_ context.Context, clientID billing.ClientID) ([]billing.Project, error) {
	return t.state.listProjects(clientID), nil
}

func (t *txView) SaveProject(_ context.Context, p billing.Project) error {
	t.state.projects[p.ID] = p
	return nil
}

func (t *txView) DeleteProject(_ context.Context, id billing.ProjectID) error {
	return t.state.deleteProject(id)
}

func (t *txView) ListProductionTypes(_ context.Context) ([]billing.TypeDefinition, error) {
	return t.state.listTypes(), nil
}

func (t *txView) SaveProductionType(_ context.Context, d billing.TypeDefinition) error {
	t.state.types[d.Name] = d
	return nil
}

func (t *txView) GetPeriod(_ context.Context, id billing.PeriodID) (billing.Period, error) {
	return t.state.getPeriod(id)
}

func (t *txView) FindPeriod(_ context.Context, clientID billing.ClientID, start, end billing.Date) (billing.Period, bool, error) {
	p, ok := t.state.findPeriod(clientID, start, end)
	return p, ok, nil
}

func (t *txView) InsertPeriod(_ context.Context, p billing.Period) error {
	return t.state.insertPeriod(p)
}

func (t *txView) UpdatePeriod(_ context.Context, p billing.Period) error {
	return t.state.updatePeriod(p)
}

func (t *txView) ListPeriods(_ context.Context, clientID billing.ClientID) ([]billing.Period, error) {
	return t.state.listPeriods(clientID), nil
}

func (t *txView) GetProduction(_ context.Context, id billing.ProductionID) (billing.Production, error) {
	return t.state.getProduction(id)
}

func (t *txView) InsertProduction(_ context.Context, p billing.Production) error {
	t.state.productions[p.ID] = p
	return nil
}

func (t *txView) UpdateProduction(_ context.Context, p billing.Production) error {
	return t.state.updateProduction(p)
}

func (t *txView) DeleteProduction(_ context.Context, id billing.ProductionID) error {
	return t.state.deleteProduction(id)
}

func (t *txView) ListProductionsByPeriod(_ context.Context, periodID billing.PeriodID) ([]billing.Production, error) {
	return t.state.filterProductions(func(p billing.Production) bool { return p.PeriodID == periodID }), nil
}

func (t *txView) ListProductionsByClient(_ context.Context, clientID billing.ClientID) ([]billing.Production, error) {
	return t.state.filterProductions(func(p billing.Production) bool { return p.ClientID == clientID }), nil
}

func (t *txView) CountProductionsByClient(_ context.Context, clientID billing.ClientID) (int, error) {
	return len(t.state.filterProductions(func(p billing.Production) bool { return p.ClientID == clientID })), nil
}

func (t *txView) CountProductionsByProject(_ context.Context, projectID billing.ProjectID) (int, error) {
	return len(t.state.filterProductions(func(p billing.Production) bool { return p.ProjectID == projectID })), nil
}

func (t *txView) SetPeriodProductionsStatus(_ context.Context, periodID billing.PeriodID, status billing.Status, at time.Time) (int, error) {
	return t.state.setPeriodStatus(periodID, status, at), nil
}

// =============================================================================
// STATE OPERATIONS
// =============================================================================

func (s *memState) getClient(id billing.ClientID) (billing.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return billing.Client{}, &billing.NotFoundError{Kind: "client", ID: string(id)}
	}
	return c, nil
}

func (s *memState) listClients() []billing.Client {
	out := make([]billing.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *memState) deleteClient(id billing.ClientID) error {
	if _, ok := s.clients[id]; !ok {
		return &billing.NotFoundError{Kind: "client", ID: string(id)}
	}
	delete(s.clients, id)
	return nil
}

func (s *memState) getProject(id billing.ProjectID) (billing.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return billing.Project{}, &billing.NotFoundError{Kind: "project", ID: string(id)}
	}
	return p, nil
}

func (s *memState) listProjects(clientID billing.ClientID) []billing.Project {
	var out []billing.Project
	for _, p := range s.projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *memState) deleteProject(id billing.ProjectID) error {
	if _, ok := s.projects[id]; !ok {
		return &billing.NotFoundError{Kind: "project", ID: string(id)}
	}
	delete(s.projects, id)
	return nil
}

func (s *memState) listTypes() []billing.TypeDefinition {
	out := make([]billing.TypeDefinition, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *memState) getPeriod(id billing.PeriodID) (billing.Period, error) {
	p, ok := s.periods[id]
	if !ok {
		return billing.Period{}, &billing.NotFoundError{Kind: "period", ID: string(id)}
	}
	return p, nil
}

func (s *memState) findPeriod(clientID billing.ClientID, start, end billing.Date) (billing.Period, bool) {
	for _, p := range s.periods {
		if p.ClientID == clientID && p.Start.Equal(start) && p.End.Equal(end) {
			return p, true
		}
	}
	return billing.Period{}, false
}

func (s *memState) insertPeriod(p billing.Period) error {
	if _, exists := s.findPeriod(p.ClientID, p.Start, p.End); exists {
		return billing.ErrDuplicatePeriod
	}
	s.periods[p.ID] = p
	return nil
}

func (s *memState) updatePeriod(p billing.Period) error {
	existing, ok := s.periods[p.ID]
	if !ok {
		return &billing.NotFoundError{Kind: "period", ID: string(p.ID)}
	}
	existing.Status = p.Status
	existing.Total = p.Total
	existing.UpdatedAt = p.UpdatedAt
	s.periods[p.ID] = existing
	return nil
}

func (s *memState) listPeriods(clientID billing.ClientID) []billing.Period {
	var out []billing.Period
	for _, p := range s.periods {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out
}

func (s *memState) getProduction(id billing.ProductionID) (billing.Production, error) {
	p, ok := s.productions[id]
	if !ok {
		return billing.Production{}, &billing.NotFoundError{Kind: "production", ID: string(id)}
	}
	return p, nil
}

func (s *memState) updateProduction(p billing.Production) error {
	if _, ok := s.productions[p.ID]; !ok {
		return &billing.NotFoundError{Kind: "production", ID: string(p.ID)}
	}
	s.productions[p.ID] = p
	return nil
}

func (s *memState) deleteProduction(id billing.ProductionID) error {
	if _, ok := s.productions[id]; !ok {
		return &billing.NotFoundError{Kind: "production", ID: string(id)}
	}
	delete(s.productions, id)
	return nil
}

// filterProductions returns matches ordered by date, then creation, newest first.
func (s *memState) filterProductions(keep func(billing.Production) bool) []billing.Production {
	var out []billing.Production
	for _, p := range s.productions {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *memState) setPeriodStatus(periodID billing.PeriodID, status billing.Status, at time.Time) int {
	n := 0
	for id, p := range s.productions {
		if p.PeriodID != periodID {
			continue
		}
		p.Status = status
		p.UpdatedAt = at
		s.productions[id] = p
		n++
	}
	return n
}
