/*
Package ledger is the submission ledger: one current record per
(employee, work-day), enforced under restart and concurrent access.

PURPOSE:
  Every inbound work update is attributed to a work-day by the resolver
  and then recorded here. The ledger owns the uniqueness invariant, the
  single-use override grants that permit a re-submission, the edit and
  leave mutations, and the derived history/leave-count views.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: a submission (or approved leave) attributed to a work-day
  - OverrideState: per-(employee, work-day) grant lifecycle None ->
    Granted -> Consumed
  - Mutation: an immutable snapshot of a finalized ledger change, the
    unit handed to the sync dispatcher for durable + mirrored writes

DESIGN PRINCIPLES:
  1. Records are never deleted: a re-submission supersedes, it does not
     erase. "Absent" is the absence of a record, computed on demand.
  2. Only the body of a record is editable, never its timestamp or day.
  3. Exactly one current record per (employee, work-day) at any time.

SEE ALSO:
  - ledger.go: the Ledger service and its operations
  - errors.go: error taxonomy
  - syncer: Committer implementation (primary write + async mirror)
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// RECORD
// =============================================================================

type Kind string

const (
	KindWorked Kind = "worked"
	KindLeave  Kind = "leave"
)

// Record is one submission attributed to a work-day. A superseded record
// stays in history but is no longer current for its key.
type Record struct {
	ID          string
	Employee    registry.EmployeeID
	Day         workday.Day
	SubmittedAt time.Time
	Body        string
	Verdict     workday.Verdict
	Kind        Kind
	Superseded  bool

	// ApprovedBy is set on leave records only.
	ApprovedBy registry.Identity
}

// =============================================================================
// OVERRIDE STATE
// =============================================================================

// OverrideState tracks the single-use re-submission grant for a
// (employee, work-day) key. The counter never exceeds one: a grant is
// either outstanding or consumed, and consuming it requires a fresh
// grant before any further re-submission.
type OverrideState string

const (
	OverrideNone     OverrideState = "none"
	OverrideGranted  OverrideState = "granted"
	OverrideConsumed OverrideState = "consumed"
)

// =============================================================================
// MUTATION - Unit of durable change
// =============================================================================

type MutationKind string

const (
	MutationSubmit    MutationKind = "submit"
	MutationSupersede MutationKind = "supersede"
	MutationEdit      MutationKind = "edit"
	MutationLeave     MutationKind = "leave"
)

// Mutation is an immutable snapshot of a finalized ledger change.
// The primary store applies it atomically; mirrors receive the same
// snapshot asynchronously and must not share state with the caller.
type Mutation struct {
	Kind   MutationKind
	Record Record

	// Supersedes carries the record ID being replaced (supersede only).
	// The primary store marks it superseded and consumes the override
	// grant in the same transaction.
	Supersedes string

	// Leave bookkeeping (leave mutations only).
	LeaveCount int
	Deduction  decimal.Decimal
}

// Committer performs the durable primary write for a mutation and
// schedules best-effort mirroring. Implemented by syncer.Dispatcher.
type Committer interface {
	Commit(ctx context.Context, m Mutation) error
}

// =============================================================================
// STORE - Primary persistence interface
// =============================================================================

// Store is the primary durable store for submission records and override
// grants. Records are append-or-supersede: no deletes.
type Store interface {
	// CurrentRecord returns the current (non-superseded) record for the
	// key, or nil when none exists.
	CurrentRecord(ctx context.Context, employee registry.EmployeeID, day workday.Day) (*Record, error)

	// RecordsInRange returns current records for the employee with
	// from <= Day <= to, ordered by day ascending.
	RecordsInRange(ctx context.Context, employee registry.EmployeeID, from, to workday.Day) ([]Record, error)

	// OverrideState reports the grant state for a key.
	OverrideState(ctx context.Context, employee registry.EmployeeID, day workday.Day) (OverrideState, error)

	// SetOverrideState records a grant transition made outside Apply
	// (granting; consumption happens inside the supersede transaction).
	SetOverrideState(ctx context.Context, employee registry.EmployeeID, day workday.Day, state OverrideState) error

	// Apply performs the mutation atomically.
	Apply(ctx context.Context, m Mutation) error
}

// =============================================================================
// HISTORY VIEW
// =============================================================================

type DayStatus string

const (
	StatusSubmitted DayStatus = "submitted"
	StatusLeave     DayStatus = "leave"
	StatusAbsent    DayStatus = "absent"
)

// DayEntry is one day in a history range. Record is nil when absent.
type DayEntry struct {
	Day    workday.Day
	Status DayStatus
	Record *Record
}
