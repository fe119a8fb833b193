/*
Package registry holds the employee roster and role lookup.

PURPOSE:
  The ledger and approval engine reference employees by identifier only;
  this package owns the mapping from identifier to (name, department) and
  from sender identity to role. Owner and HR identities are injected
  configuration resolved once at startup, never ambient globals.

ROLES:
  Owner and HR are configured identity sets. Anyone whose identity matches
  a registered employee identifier is an Employee. Everything else is
  Unknown and cannot submit approval requests.

SEE ALSO:
  - approval: uses RoleOf for requester validation and approver routing
  - store/sqlite, store/memory: Store implementations
*/
package registry

import (
	"context"
	"errors"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// EmployeeID is the externally assigned identifier, e.g. "DEV01".
// Always stored and compared uppercase.
type EmployeeID string

// Identity is a chat sender identity. For regular employees it equals
// their EmployeeID; Owner and HR identities come from configuration.
type Identity string

type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleOwner    Role = "owner"
	RoleUnknown  Role = "unknown"
)

type Employee struct {
	ID         EmployeeID
	Name       string
	Department string
}

var ErrNotFound = errors.New("employee not found")

// NormalizeID uppercases and trims an employee identifier.
func NormalizeID(s string) EmployeeID {
	return EmployeeID(strings.ToUpper(strings.TrimSpace(s)))
}

// =============================================================================
// STORE - Persistence interface for the roster
// =============================================================================

type Store interface {
	// GetEmployee returns ErrNotFound when the identifier is unregistered.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// ListEmployees returns the full roster ordered by identifier.
	ListEmployees(ctx context.Context) ([]Employee, error)

	// PutEmployee inserts or replaces a roster entry.
	PutEmployee(ctx context.Context, e Employee) error

	// DeleteEmployee returns ErrNotFound when the identifier is unregistered.
	DeleteEmployee(ctx context.Context, id EmployeeID) error
}

// =============================================================================
// ROSTER - Store + role configuration
// =============================================================================

// Roster combines the employee store with the Owner/HR identity sets.
type Roster struct {
	store  Store
	owners map[Identity]struct{}
	hr     map[Identity]struct{}
}

func NewRoster(store Store, owners, hr []Identity) *Roster {
	r := &Roster{
		store:  store,
		owners: make(map[Identity]struct{}, len(owners)),
		hr:     make(map[Identity]struct{}, len(hr)),
	}
	for _, id := range owners {
		r.owners[id] = struct{}{}
	}
	for _, id := range hr {
		r.hr[id] = struct{}{}
	}
	return r
}

// Resolve looks up an employee by identifier.
func (r *Roster) Resolve(ctx context.Context, id EmployeeID) (*Employee, error) {
	return r.store.GetEmployee(ctx, id)
}

// List returns the full roster.
func (r *Roster) List(ctx context.Context) ([]Employee, error) {
	return r.store.ListEmployees(ctx)
}

// Add registers or updates an employee.
func (r *Roster) Add(ctx context.Context, e Employee) error {
	e.ID = NormalizeID(string(e.ID))
	e.Department = strings.ToUpper(strings.TrimSpace(e.Department))
	return r.store.PutEmployee(ctx, e)
}

// Remove deletes a roster entry.
func (r *Roster) Remove(ctx context.Context, id EmployeeID) error {
	return r.store.DeleteEmployee(ctx, id)
}

// RoleOf resolves a sender identity to a role. Owner and HR win over an
// employee identifier collision; identities matching no configuration and
// no roster entry are Unknown.
func (r *Roster) RoleOf(ctx context.Context, identity Identity) (Role, error) {
	if _, ok := r.owners[identity]; ok {
		return RoleOwner, nil
	}
	if _, ok := r.hr[identity]; ok {
		return RoleHR, nil
	}
	_, err := r.store.GetEmployee(ctx, NormalizeID(string(identity)))
	if errors.Is(err, ErrNotFound) {
		return RoleUnknown, nil
	}
	if err != nil {
		return RoleUnknown, err
	}
	return RoleEmployee, nil
}

// Owners returns the configured owner identities (for notification fan-out).
func (r *Roster) Owners() []Identity {
	out := make([]Identity, 0, len(r.owners))
	for id := range r.owners {
		out = append(out, id)
	}
	return out
}

// HR returns the configured HR identities.
func (r *Roster) HR() []Identity {
	out := make([]Identity, 0, len(r.hr))
	for id := range r.hr {
		out = append(out, id)
	}
	return out
}
