/*
Package approval is the role-based approval workflow engine.

PURPOSE:
  Re-submissions, edits, and leaves never hit the ledger directly: they
  travel as requests through this engine. A request is created pending,
  routed to the roles eligible to resolve it, and resolved exactly once.
  Approval applies the requested effect to the ledger; rejection leaves
  the ledger untouched.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: one pending or resolved workflow item
  - Routing: eligibility is FIXED at creation from the requester's role,
    so a later role change never re-routes an open request
  - Store: persistence with a compare-and-set resolution primitive

DESIGN PRINCIPLES:
  1. Exactly-once resolution: the store's MarkResolved succeeds for at
     most one caller per request, under any concurrency.
  2. Resolution outlives its effect: if applying an approved effect
     fails, the request stays resolved and the failure surfaces as a
     warning on the result.

SEE ALSO:
  - engine.go: Submit / Resolve / ExpireStale
  - errors.go: error taxonomy
  - ledger: the Effects implementation
*/
package approval

import (
	"context"
	"time"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// REQUEST
// =============================================================================

// Kind is the workflow action being requested.
type Kind string

const (
	// KindResubmission asks for a single-use override grant so the
	// employee can replace a work-day record.
	KindResubmission Kind = "resubmission"

	// KindEdit asks to replace the body of an existing record.
	KindEdit Kind = "edit"

	// KindLeave asks to mark a work-day as approved leave.
	KindLeave Kind = "leave"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Request is one workflow item. Eligible is computed from the
// requester's role at creation time and never changes afterwards.
type Request struct {
	ID            string
	Kind          Kind
	Requester     registry.Identity
	RequesterRole registry.Role
	Employee      registry.EmployeeID
	Day           workday.Day

	// Payload is the new body for edits and the reason for leaves.
	Payload string

	Eligible []registry.Role

	Status     Status
	ResolvedBy registry.Identity
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// Resolved reports whether the request left the pending state.
func (r *Request) Resolved() bool { return r.Status != StatusPending }

// EligibleFor reports whether the role may resolve this request.
func (r *Request) EligibleFor(role registry.Role) bool {
	for _, e := range r.Eligible {
		if e == role {
			return true
		}
	}
	return false
}

// =============================================================================
// EFFECTS - What approval does to the ledger
// =============================================================================

// Effects is the slice of the ledger the engine drives on approval.
// Satisfied by *ledger.Ledger.
type Effects interface {
	GrantOverride(ctx context.Context, employee registry.EmployeeID, day workday.Day) error
	ApplyEdit(ctx context.Context, employee registry.EmployeeID, day workday.Day, newBody string) (*ledger.Record, error)
	RecordLeave(ctx context.Context, employee registry.EmployeeID, day workday.Day, reason string, approvedBy registry.Identity) (*ledger.LeaveResult, error)
}

// =============================================================================
// STORE - Request persistence
// =============================================================================

// Store persists workflow requests. MarkResolved is the exactly-once
// primitive: it transitions pending -> status for at most one caller and
// returns ErrAlreadyResolved to everyone else.
type Store interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)

	// PendingRequests returns open requests ordered by creation time.
	PendingRequests(ctx context.Context) ([]Request, error)

	// MarkResolved atomically transitions the request out of pending and
	// returns the updated request. Fails with ErrAlreadyResolved when the
	// transition already happened, ErrRequestNotFound when the ID is
	// unknown.
	MarkResolved(ctx context.Context, id string, status Status, by registry.Identity, at time.Time) (*Request, error)

	// ExpirePendingBefore marks every pending request created before the
	// cutoff as expired and returns the affected requests.
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]Request, error)
}
