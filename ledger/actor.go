package ledger

import (
	"fmt"
	"strings"

	"github.com/palmapsd/production-ledger/billing"
)

// Role is the capability level of whoever is calling the service.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// ParseRole accepts "admin" or "viewer", case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor identifies the caller of a mutating operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// SystemActor is used for seeding and maintenance jobs.
var SystemActor = Actor{ID: "system", Name: "system", Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// authorize returns ErrForbidden unless the actor may mutate ledger data.
func (a Actor) authorize(op string) error {
	if a.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: %s requires the %s role", billing.ErrForbidden, op, RoleAdmin)
}
