// Package memory provides an in-memory implementation of the storage
// interfaces (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store implements ledger.Store, registry.Store, and approval.Store.
type Store struct {
	mu        sync.RWMutex
	records   map[string]ledger.Record
	current   map[key]string
	overrides map[key]ledger.OverrideState
	employees map[registry.EmployeeID]registry.Employee
	requests  map[string]approval.Request
	reqOrder  []string
}

type key struct {
	Employee registry.EmployeeID
	Day      workday.Day
}

func New() *Store {
	return &Store{
		records:   make(map[string]ledger.Record),
		current:   make(map[key]string),
		overrides: make(map[key]ledger.OverrideState),
		employees: make(map[registry.EmployeeID]registry.Employee),
		requests:  make(map[string]approval.Request),
	}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) CurrentRecord(_ context.Context, employee registry.EmployeeID, day workday.Day) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.current[key{employee, day}]
	if !ok {
		return nil, nil
	}
	rec := s.records[id]
	return &rec, nil
}

func (s *Store) RecordsInRange(_ context.Context, employee registry.EmployeeID, from, to workday.Day) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.Record
	for d := from; !d.After(to); d = d.Next() {
		if id, ok := s.current[key{employee, d}]; ok {
			result = append(result, s.records[id])
		}
	}
	return result, nil
}

func (s *Store) OverrideState(_ context.Context, employee registry.EmployeeID, day workday.Day) (ledger.OverrideState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, ok := s.overrides[key{employee, day}]; ok {
		return state, nil
	}
	return ledger.OverrideNone, nil
}

func (s *Store) SetOverrideState(_ context.Context, employee registry.EmployeeID, day workday.Day, state ledger.OverrideState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides[key{employee, day}] = state
	return nil
}

func (s *Store) Apply(_ context.Context, m ledger.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{m.Record.Employee, m.Record.Day}
	switch m.Kind {
	case ledger.MutationSubmit, ledger.MutationLeave:
		if _, exists := s.current[k]; exists {
			return fmt.Errorf("current record already exists for %s on %s", k.Employee, k.Day)
		}
		s.records[m.Record.ID] = m.Record
		s.current[k] = m.Record.ID

	case ledger.MutationSupersede:
		old, ok := s.records[m.Supersedes]
		if !ok {
			return fmt.Errorf("superseded record %s not found", m.Supersedes)
		}
		old.Superseded = true
		s.records[old.ID] = old
		s.records[m.Record.ID] = m.Record
		s.current[k] = m.Record.ID
		s.overrides[k] = ledger.OverrideConsumed

	case ledger.MutationEdit:
		if _, ok := s.records[m.Record.ID]; !ok {
			return fmt.Errorf("edited record %s not found", m.Record.ID)
		}
		s.records[m.Record.ID] = m.Record

	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
	return nil
}

// =============================================================================
// ROSTER STORE (registry.Store interface)
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id registry.EmployeeID) (*registry.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]registry.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]registry.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) PutEmployee(_ context.Context, e registry.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.employees[e.ID] = e
	return nil
}

func (s *Store) DeleteEmployee(_ context.Context, id registry.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return registry.ErrNotFound
	}
	delete(s.employees, id)
	return nil
}

// =============================================================================
// REQUEST STORE (approval.Store interface)
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, r approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	s.requests[r.ID] = cloneRequest(r)
	s.reqOrder = append(s.reqOrder, r.ID)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, approval.ErrRequestNotFound
	}
	r = cloneRequest(r)
	return &r, nil
}

func (s *Store) PendingRequests(_ context.Context) ([]approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []approval.Request
	for _, id := range s.reqOrder {
		if r := s.requests[id]; r.Status == approval.StatusPending {
			result = append(result, cloneRequest(r))
		}
	}
	return result, nil
}

// MarkResolved is the exactly-once transition: the status check and the
// write happen under one lock, so only the first caller wins.
func (s *Store) MarkResolved(_ context.Context, id string, status approval.Status, by registry.Identity, at time.Time) (*approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, approval.ErrRequestNotFound
	}
	if r.Status != approval.StatusPending {
		return nil, approval.ErrAlreadyResolved
	}
	r.Status = status
	r.ResolvedBy = by
	r.ResolvedAt = at
	s.requests[id] = r
	r = cloneRequest(r)
	return &r, nil
}

func (s *Store) ExpirePendingBefore(_ context.Context, cutoff time.Time) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []approval.Request
	for _, id := range s.reqOrder {
		r := s.requests[id]
		if r.Status != approval.StatusPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		r.Status = approval.StatusExpired
		r.ResolvedAt = cutoff
		s.requests[id] = r
		expired = append(expired, cloneRequest(r))
	}
	return expired, nil
}

// cloneRequest deep-copies the eligible slice so callers never share
// backing arrays with the store.
func cloneRequest(r approval.Request) approval.Request {
	r.Eligible = append([]registry.Role(nil), r.Eligible...)
	return r
}
