package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/palmapsd/production-ledger/billing"
)

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Service) CreateClient(ctx context.Context, actor Actor, name string) (billing.Client, error) {
	if err := actor.authorize("create client"); err != nil {
		return billing.Client{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return billing.Client{}, &billing.ValidationError{Messages: []string{"client name is required"}}
	}

	now := s.timestamp()
	c := billing.Client{
		ID:        billing.ClientID(s.newID()),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.mutate(ctx, "create client", func(tx billing.Store) error {
		return tx.SaveClient(ctx, c)
	})
	if err != nil {
		return billing.Client{}, err
	}
	s.log.Info().Str("client_id", string(c.ID)).Str("actor", actor.ID).Msg("client created")
	return c, nil
}

func (s *Service) UpdateClient(ctx context.Context, actor Actor, id billing.ClientID, name string, active bool) (billing.Client, error) {
	if err := actor.authorize("update client"); err != nil {
		return billing.Client{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return billing.Client{}, &billing.ValidationError{Messages: []string{"client name is required"}}
	}

	var c billing.Client
	err := s.mutate(ctx, "update client", func(tx billing.Store) error {
		var err error
		if c, err = tx.GetClient(ctx, id); err != nil {
			return err
		}
		c.Name = name
		c.Active = active
		c.UpdatedAt = s.timestamp()
		return tx.SaveClient(ctx, c)
	})
	if err != nil {
		return billing.Client{}, err
	}
	return c, nil
}

// DeleteClient removes a client and its projects. Fails with ErrInUse while
// any production or period references the client.
func (s *Service) DeleteClient(ctx context.Context, actor Actor, id billing.ClientID) error {
	if err := actor.authorize("delete client"); err != nil {
		return err
	}
	err := s.mutate(ctx, "delete client", func(tx billing.Store) error {
		if _, err := tx.GetClient(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountProductionsByClient(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: client has %d productions", billing.ErrInUse, n)
		}
		periods, err := tx.ListPeriods(ctx, id)
		if err != nil {
			return err
		}
		if len(periods) > 0 {
			return fmt.Errorf("%w: client has %d periods", billing.ErrInUse, len(periods))
		}
		projects, err := tx.ListProjects(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range projects {
			if err := tx.DeleteProject(ctx, p.ID); err != nil {
				return err
			}
		}
		return tx.DeleteClient(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("client_id", string(id)).Str("actor", actor.ID).Msg("client deleted")
	return nil
}

func (s *Service) GetClient(ctx context.Context, id billing.ClientID) (billing.Client, error) {
	c, err := s.store.GetClient(ctx, id)
	return c, persistErr("get client", err)
}

// ListClients returns every client, ordered by name.
func (s *Service) ListClients(ctx context.Context) ([]billing.Client, error) {
	cs, err := s.store.ListClients(ctx)
	return cs, persistErr("list clients", err)
}

// ActiveClients is what the production form offers.
func (s *Service) ActiveClients(ctx context.Context) ([]billing.Client, error) {
	all, err := s.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Service) CreateProject(ctx context.Context, actor Actor, clientID billing.ClientID, name string) (billing.Project, error) {
	if err := actor.authorize("create project"); err != nil {
		return billing.Project{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return billing.Project{}, &billing.ValidationError{Messages: []string{"project name is required"}}
	}

	now := s.timestamp()
	p := billing.Project{
		ID:        billing.ProjectID(s.newID()),
		ClientID:  clientID,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.mutate(ctx, "create project", func(tx billing.Store) error {
		if _, err := tx.GetClient(ctx, clientID); err != nil {
			return err
		}
		return tx.SaveProject(ctx, p)
	})
	if err != nil {
		return billing.Project{}, err
	}
	s.log.Info().Str("project_id", string(p.ID)).Str("client_id", string(clientID)).Msg("project created")
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, actor Actor, id billing.ProjectID, name string, active bool) (billing.Project, error) {
	if err := actor.authorize("update project"); err != nil {
		return billing.Project{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return billing.Project{}, &billing.ValidationError{Messages: []string{"project name is required"}}
	}

	var p billing.Project
	err := s.mutate(ctx, "update project", func(tx billing.Store) error {
		var err error
		if p, err = tx.GetProject(ctx, id); err != nil {
			return err
		}
		p.Name = name
		p.Active = active
		p.UpdatedAt = s.timestamp()
		return tx.SaveProject(ctx, p)
	})
	if err != nil {
		return billing.Project{}, err
	}
	return p, nil
}

// DeleteProject fails with ErrInUse while any production references it.
func (s *Service) DeleteProject(ctx context.Context, actor Actor, id billing.ProjectID) error {
	if err := actor.authorize("delete project"); err != nil {
		return err
	}
	return s.mutate(ctx, "delete project", func(tx billing.Store) error {
		if _, err := tx.GetProject(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountProductionsByProject(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: project has %d productions", billing.ErrInUse, n)
		}
		return tx.DeleteProject(ctx, id)
	})
}

// ProjectsByClient returns the client's active projects.
func (s *Service) ProjectsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Project, error) {
	all, err := s.store.ListProjects(ctx, clientID)
	if err != nil {
		return nil, persistErr("list projects", err)
	}
	out := all[:0]
	for _, p := range all {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// =============================================================================
// PRODUCTION TYPES
// =============================================================================

// ProductionTypes returns every defined type in display order.
func (s *Service) ProductionTypes(ctx context.Context) ([]billing.TypeDefinition, error) {
	ts, err := s.store.ListProductionTypes(ctx)
	return ts, persistErr("list production types", err)
}

// CreateProductionType appends a new active type after the existing ones.
func (s *Service) CreateProductionType(ctx context.Context, actor Actor, name string) (billing.TypeDefinition, error) {
	if err := actor.authorize("create production type"); err != nil {
		return billing.TypeDefinition{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return billing.TypeDefinition{}, &billing.ValidationError{Messages: []string{"production type name is required"}}
	}

	var def billing.TypeDefinition
	err := s.mutate(ctx, "create production type", func(tx billing.Store) error {
		existing, err := tx.ListProductionTypes(ctx)
		if err != nil {
			return err
		}
		last := 0
		for _, t := range existing {
			if strings.EqualFold(string(t.Name), name) {
				return &billing.ValidationError{Messages: []string{"production type already exists"}}
			}
			if t.Position > last {
				last = t.Position
			}
		}
		def = billing.TypeDefinition{
			Name:      billing.ProductionType(name),
			Active:    true,
			Position:  last + 1,
			CreatedAt: s.timestamp(),
		}
		return tx.SaveProductionType(ctx, def)
	})
	if err != nil {
		return billing.TypeDefinition{}, err
	}
	return def, nil
}

// SetProductionTypeActive hides or shows a type in forms and summaries.
// Existing productions keep their type.
func (s *Service) SetProductionTypeActive(ctx context.Context, actor Actor, name billing.ProductionType, active bool) (billing.TypeDefinition, error) {
	if err := actor.authorize("update production type"); err != nil {
		return billing.TypeDefinition{}, err
	}

	var def billing.TypeDefinition
	err := s.mutate(ctx, "update production type", func(tx billing.Store) error {
		existing, err := tx.ListProductionTypes(ctx)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if t.Name == name {
				def = t
				def.Active = active
				return tx.SaveProductionType(ctx, def)
			}
		}
		return &billing.NotFoundError{Kind: "production type", ID: string(name)}
	})
	if err != nil {
		return billing.TypeDefinition{}, err
	}
	return def, nil
}
