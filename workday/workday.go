/*
Package workday maps submission timestamps onto canonical work-days.

PURPOSE:
  A submission posted at 00:30 usually belongs to the day that is still
  "closing out", not to the calendar date on the clock. This package owns
  that decision: given a timestamp and a configured deadline time-of-day,
  it returns the work-day the submission is attributed to and whether it
  was on time.

THE RULE:
  - Time-of-day strictly before the deadline: the submission closes out
    the PREVIOUS calendar day and is marked Late (it missed the deadline
    but still counts against the prior cycle).
  - Time-of-day at or after the deadline: a fresh cycle has started; the
    submission belongs to the CURRENT calendar day and is OnTime until
    the next deadline passes.

  With an 11:00 deadline:
    09:30 on March 10  -> work-day March 9,  Late
    11:00 on March 10  -> work-day March 10, OnTime
    23:50 on March 10  -> work-day March 10, OnTime
    00:30 on March 11  -> work-day March 10, Late

PROPERTIES:
  Resolve is pure and total: it never fails and identical inputs always
  yield identical outputs. Every calendar day is an eligible work-day;
  there is no weekend or holiday exclusion.

SEE ALSO:
  - ledger: consumes (Day, Verdict) to key submission records
*/
package workday

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Canonical calendar date (timezone already applied)
// =============================================================================

// Day identifies a single calendar work-day. It is the ledger key component
// and is always interpreted in the organization's configured timezone.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

func NewDay(year int, month time.Month, date int) Day {
	// Normalize through time.Date so Day{2025, March, 32} becomes April 1.
	t := time.Date(year, month, date, 0, 0, 0, 0, time.UTC)
	return Day{Year: t.Year(), Month: t.Month(), Date: t.Day()}
}

// DayOf extracts the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	return Day{Year: t.Year(), Month: t.Month(), Date: t.Day()}
}

// ParseDay parses the canonical YYYY-MM-DD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Date)
}

func (d Day) IsZero() bool { return d == Day{} }

// Time returns midnight UTC of the day. Calendar arithmetic only; the
// organization timezone was already applied when the Day was resolved.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, time.UTC)
}

func (d Day) AddDays(n int) Day { return DayOf(d.Time().AddDate(0, 0, n)) }
func (d Day) Prev() Day         { return d.AddDays(-1) }
func (d Day) Next() Day         { return d.AddDays(1) }

func (d Day) Before(other Day) bool { return d.Time().Before(other.Time()) }
func (d Day) After(other Day) bool  { return d.Time().After(other.Time()) }

// Weekday returns the day of week, used only for display in reports.
func (d Day) Weekday() time.Weekday { return d.Time().Weekday() }

// Month key in YYYY-MM form, used for monthly leave counting.
func (d Day) MonthKey() string { return fmt.Sprintf("%04d-%02d", d.Year, d.Month) }

// DaysBetween returns the number of days from a to b (negative if b is
// earlier).
func DaysBetween(a, b Day) int {
	return int(b.Time().Sub(a.Time()).Hours() / 24)
}

// =============================================================================
// VERDICT
// =============================================================================

type Verdict string

const (
	OnTime Verdict = "on_time"
	Late   Verdict = "late"
)

// =============================================================================
// DEADLINE - Time-of-day cutoff
// =============================================================================

// Deadline is a time-of-day in the organization's timezone, e.g. 11:00.
type Deadline struct {
	Hour   int
	Minute int
}

// ParseDeadline parses "HH:MM" in 24h form.
func ParseDeadline(s string) (Deadline, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return Deadline{}, fmt.Errorf("invalid deadline %q: expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Deadline{}, fmt.Errorf("invalid deadline %q: out of range", s)
	}
	return Deadline{Hour: h, Minute: m}, nil
}

func (d Deadline) String() string { return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute) }

// minutes since midnight
func (d Deadline) minutes() int { return d.Hour*60 + d.Minute }

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver attributes timestamps to work-days against a deadline, in a
// fixed timezone. Zero-value Location means the timestamp's own location
// is used.
type Resolver struct {
	Deadline Deadline
	Location *time.Location
}

// Resolve returns the work-day a submission at t belongs to and its
// lateness verdict. Pure and total.
func (r Resolver) Resolve(t time.Time) (Day, Verdict) {
	if r.Location != nil {
		t = t.In(r.Location)
	}
	submitted := t.Hour()*60 + t.Minute()
	if submitted < r.Deadline.minutes() {
		// Still closing out the previous cycle: credit yesterday, late.
		return DayOf(t).Prev(), Late
	}
	return DayOf(t), OnTime
}
