/*
errors.go - Error taxonomy for the submission ledger

PURPOSE:
  All ledger errors in one place. Every error here is a rejected
  operation with an explicit reason; nothing is fatal to the process.

USAGE:
  Callers branch with errors.Is / errors.As:

    _, err := led.TryRecord(ctx, emp, now, body)
    var conflict *ledger.DuplicateConflictError
    if errors.As(err, &conflict) {
        if conflict.Suspicious { ... notify Owner/HR ... }
    }

SEE ALSO:
  - ledger.go: where these are returned
  - approval: wraps effect failures as resolution warnings
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateConflict is returned when a submission targets a key
	// that already has a current record and no unconsumed override grant.
	ErrDuplicateConflict = errors.New("duplicate submission for work-day")

	// ErrAlreadyGranted is returned when granting an override that is
	// already outstanding. Idempotency guard: the existing grant stands.
	ErrAlreadyGranted = errors.New("override already granted")

	// ErrNoRecordFound is returned by edits targeting a key with no
	// current record.
	ErrNoRecordFound = errors.New("no record found for work-day")

	// ErrRecordAlreadyExists is returned by leave insertion when the key
	// already has a current record (worked or leave).
	ErrRecordAlreadyExists = errors.New("record already exists for work-day")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DuplicateConflictError carries the conflicting record and whether the
// attempt is the suspicious second duplicate after a consumed grant.
type DuplicateConflictError struct {
	Employee registry.EmployeeID
	Day      workday.Day
	Existing Record

	// Suspicious marks a repeat duplicate after the override grant was
	// already consumed. Routed to Owner/HR as a side notification,
	// distinct from the rejection returned to the sender.
	Suspicious bool
}

func (e *DuplicateConflictError) Error() string {
	if e.Suspicious {
		return fmt.Sprintf("duplicate submission for %s on %s after override was consumed (existing: %s)",
			e.Employee, e.Day, e.Existing.ID)
	}
	return fmt.Sprintf("duplicate submission for %s on %s (existing: %s)",
		e.Employee, e.Day, e.Existing.ID)
}

func (e *DuplicateConflictError) Unwrap() error { return ErrDuplicateConflict }

// IsClientError reports whether the error is a rejected operation caused
// by the caller rather than a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateConflict) ||
		errors.Is(err, ErrAlreadyGranted) ||
		errors.Is(err, ErrNoRecordFound) ||
		errors.Is(err, ErrRecordAlreadyExists)
}
