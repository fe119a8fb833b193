/*
ledger.go - The Ledger service

PURPOSE:
  Implements the submission operations against the primary store via the
  sync dispatcher, under per-key serialization.

INVARIANTS:
  1. At most one current record per (employee, work-day), after any
     interleaving of concurrent TryRecord/ApplyEdit/RecordLeave calls.
  2. The override counter never exceeds one per key; a duplicate after
     the grant is consumed is rejected AND flagged suspicious.
  3. Records are superseded, never deleted.

CONCURRENCY:
  Mutations on the same key serialize on a striped lock; different keys
  do not contend. Reads used by reports go straight to the store.

SEE ALSO:
  - types.go: Record, Mutation, Store, Committer
  - workday: day attribution
  - syncer: Committer implementation
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// Ledger is the submission ledger service.
type Ledger struct {
	store  Store
	commit Committer
	policy LeavePolicy
	log    *zap.Logger
	locks  keyLocks

	// The deadline is adjustable at runtime (admin setting), so the
	// resolver sits behind its own lock.
	mu       sync.RWMutex
	resolver workday.Resolver

	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLeavePolicy(p LeavePolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, commit Committer, resolver workday.Resolver, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		commit:   commit,
		resolver: resolver,
		policy:   DefaultLeavePolicy(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolver returns the current day-boundary resolver.
func (l *Ledger) Resolver() workday.Resolver {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resolver
}

// SetDeadline changes the submission deadline for subsequent messages.
func (l *Ledger) SetDeadline(d workday.Deadline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolver.Deadline = d
	l.log.Info("submission deadline updated", zap.String("deadline", d.String()))
}

// Policy returns the active leave policy.
func (l *Ledger) Policy() LeavePolicy { return l.policy }

// =============================================================================
// SUBMISSIONS
// =============================================================================

// TryRecord attributes the message to a work-day and records it.
//
// Outcomes:
//   - no current record for the key: insert, return the new record
//   - current record + unconsumed grant: consume the grant, supersede
//   - current record + no grant: *DuplicateConflictError
//   - current record + grant already consumed: *DuplicateConflictError
//     with Suspicious set
func (l *Ledger) TryRecord(ctx context.Context, employee registry.EmployeeID, at time.Time, body string) (*Record, error) {
	day, verdict := l.Resolver().Resolve(at)

	mu := l.locks.lock(employee, day)
	defer mu.Unlock()

	cur, err := l.store.CurrentRecord(ctx, employee, day)
	if err != nil {
		return nil, fmt.Errorf("lookup current record: %w", err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		Employee:    employee,
		Day:         day,
		SubmittedAt: at,
		Body:        body,
		Verdict:     verdict,
		Kind:        KindWorked,
	}

	if cur == nil {
		if err := l.commit.Commit(ctx, Mutation{Kind: MutationSubmit, Record: rec}); err != nil {
			return nil, fmt.Errorf("commit submission: %w", err)
		}
		l.log.Info("submission recorded",
			zap.String("employee", string(employee)),
			zap.String("day", day.String()),
			zap.String("verdict", string(verdict)))
		return &rec, nil
	}

	state, err := l.store.OverrideState(ctx, employee, day)
	if err != nil {
		return nil, fmt.Errorf("lookup override state: %w", err)
	}

	switch state {
	case OverrideGranted:
		// Grant consumption and supersession are one store transaction.
		m := Mutation{Kind: MutationSupersede, Record: rec, Supersedes: cur.ID}
		if err := l.commit.Commit(ctx, m); err != nil {
			return nil, fmt.Errorf("commit re-submission: %w", err)
		}
		l.log.Info("re-submission recorded, override consumed",
			zap.String("employee", string(employee)),
			zap.String("day", day.String()),
			zap.String("superseded", cur.ID))
		return &rec, nil

	case OverrideConsumed:
		l.log.Warn("duplicate submission after override consumed",
			zap.String("employee", string(employee)),
			zap.String("day", day.String()))
		return nil, &DuplicateConflictError{
			Employee: employee, Day: day, Existing: *cur, Suspicious: true,
		}

	default:
		return nil, &DuplicateConflictError{Employee: employee, Day: day, Existing: *cur}
	}
}

// =============================================================================
// OVERRIDE GRANTS
// =============================================================================

// GrantOverride issues a single-use re-submission grant for the key.
// A grant requires a current record to supersede; issuing one against an
// empty key would dangle past the first submission and let a later
// duplicate through without fresh approval, so it is refused with
// ErrNoRecordFound. A fresh grant after a consumed one is a new
// permission; granting while one is outstanding returns
// ErrAlreadyGranted and changes nothing.
func (l *Ledger) GrantOverride(ctx context.Context, employee registry.EmployeeID, day workday.Day) error {
	mu := l.locks.lock(employee, day)
	defer mu.Unlock()

	cur, err := l.store.CurrentRecord(ctx, employee, day)
	if err != nil {
		return fmt.Errorf("lookup current record: %w", err)
	}
	if cur == nil {
		return fmt.Errorf("grant for %s on %s: %w", employee, day, ErrNoRecordFound)
	}

	state, err := l.store.OverrideState(ctx, employee, day)
	if err != nil {
		return fmt.Errorf("lookup override state: %w", err)
	}
	if state == OverrideGranted {
		return ErrAlreadyGranted
	}

	if err := l.store.SetOverrideState(ctx, employee, day, OverrideGranted); err != nil {
		return fmt.Errorf("grant override: %w", err)
	}
	l.log.Info("override granted",
		zap.String("employee", string(employee)),
		zap.String("day", day.String()))
	return nil
}

// =============================================================================
// EDITS
// =============================================================================

// ApplyEdit replaces the body of the current record for the key. The
// timestamp and work-day never change.
func (l *Ledger) ApplyEdit(ctx context.Context, employee registry.EmployeeID, day workday.Day, newBody string) (*Record, error) {
	mu := l.locks.lock(employee, day)
	defer mu.Unlock()

	cur, err := l.store.CurrentRecord(ctx, employee, day)
	if err != nil {
		return nil, fmt.Errorf("lookup current record: %w", err)
	}
	if cur == nil {
		return nil, fmt.Errorf("edit %s on %s: %w", employee, day, ErrNoRecordFound)
	}

	rec := *cur
	rec.Body = newBody
	if err := l.commit.Commit(ctx, Mutation{Kind: MutationEdit, Record: rec}); err != nil {
		return nil, fmt.Errorf("commit edit: %w", err)
	}
	l.log.Info("edit applied",
		zap.String("employee", string(employee)),
		zap.String("day", day.String()))
	return &rec, nil
}

// =============================================================================
// LEAVE
// =============================================================================

// LeaveResult reports the monthly standing after an approved leave.
type LeaveResult struct {
	Record       Record
	MonthlyCount int
	Deduction    decimal.Decimal
}

// RecordLeave inserts a leave record for the key. Leave conflicts with
// any existing current record, worked or leave; an absent day (no
// record) is simply filled.
func (l *Ledger) RecordLeave(ctx context.Context, employee registry.EmployeeID, day workday.Day, reason string, approvedBy registry.Identity) (*LeaveResult, error) {
	mu := l.locks.lock(employee, day)
	defer mu.Unlock()

	cur, err := l.store.CurrentRecord(ctx, employee, day)
	if err != nil {
		return nil, fmt.Errorf("lookup current record: %w", err)
	}
	if cur != nil {
		return nil, fmt.Errorf("leave for %s on %s: %w", employee, day, ErrRecordAlreadyExists)
	}

	count, err := l.MonthlyLeaveCount(ctx, employee, day)
	if err != nil {
		return nil, fmt.Errorf("count monthly leaves: %w", err)
	}
	count++ // including this one

	rec := Record{
		ID:          uuid.NewString(),
		Employee:    employee,
		Day:         day,
		SubmittedAt: l.now(),
		Body:        reason,
		Verdict:     workday.OnTime,
		Kind:        KindLeave,
		ApprovedBy:  approvedBy,
	}
	deduction := l.policy.Deduction(count)

	m := Mutation{Kind: MutationLeave, Record: rec, LeaveCount: count, Deduction: deduction}
	if err := l.commit.Commit(ctx, m); err != nil {
		return nil, fmt.Errorf("commit leave: %w", err)
	}

	l.log.Info("leave recorded",
		zap.String("employee", string(employee)),
		zap.String("day", day.String()),
		zap.Int("monthly_count", count),
		zap.String("deduction", deduction.String()))
	return &LeaveResult{Record: rec, MonthlyCount: count, Deduction: deduction}, nil
}

// MonthlyLeaveCount counts current leave records in the calendar month
// of the given day. Derived, never stored.
func (l *Ledger) MonthlyLeaveCount(ctx context.Context, employee registry.EmployeeID, day workday.Day) (int, error) {
	first := workday.NewDay(day.Year, day.Month, 1)
	last := first.AddDays(31)
	for last.Month != day.Month {
		last = last.Prev()
	}
	recs, err := l.store.RecordsInRange(ctx, employee, first, last)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range recs {
		if r.Kind == KindLeave {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History walks the inclusive day range and reports each day as
// submitted, leave, or absent.
func (l *Ledger) History(ctx context.Context, employee registry.EmployeeID, from, to workday.Day) ([]DayEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s", from, to)
	}
	recs, err := l.store.RecordsInRange(ctx, employee, from, to)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	byDay := make(map[workday.Day]*Record, len(recs))
	for i := range recs {
		byDay[recs[i].Day] = &recs[i]
	}

	var entries []DayEntry
	for d := from; !d.After(to); d = d.Next() {
		entry := DayEntry{Day: d, Status: StatusAbsent}
		if rec, ok := byDay[d]; ok {
			entry.Record = rec
			if rec.Kind == KindLeave {
				entry.Status = StatusLeave
			} else {
				entry.Status = StatusSubmitted
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
