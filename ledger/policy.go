/*
policy.go - Monthly leave allowance and deduction policy

PURPOSE:
  Approved leaves beyond a monthly free allowance carry a salary
  deduction. The count is derived from leave records in the calendar
  month of the leave day; nothing extra is stored.

DEFAULTS (match the organization's standing policy):
  3 free leaves per month, 500.00 deducted per extra leave.
*/
package ledger

import "github.com/shopspring/decimal"

// LeavePolicy applies the monthly free-leave threshold.
type LeavePolicy struct {
	FreeLeavesPerMonth int
	DeductionPerLeave  decimal.Decimal
}

func DefaultLeavePolicy() LeavePolicy {
	return LeavePolicy{
		FreeLeavesPerMonth: 3,
		DeductionPerLeave:  decimal.NewFromInt(500),
	}
}

// Deduction returns the salary deduction for the n-th approved leave of
// the month (zero within the free allowance). The deduction covers all
// extra leaves so far, matching what the leave register reports.
func (p LeavePolicy) Deduction(monthlyCount int) decimal.Decimal {
	extra := monthlyCount - p.FreeLeavesPerMonth
	if extra <= 0 {
		return decimal.Zero
	}
	return p.DeductionPerLeave.Mul(decimal.NewFromInt(int64(extra)))
}

// IsExtra reports whether the n-th leave of the month exceeds the free
// allowance.
func (p LeavePolicy) IsExtra(monthlyCount int) bool {
	return monthlyCount > p.FreeLeavesPerMonth
}
