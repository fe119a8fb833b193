/*
Package report derives the read-side views: weekly grids, monthly
summaries, and absent/late lists.

PURPOSE:
  Everything here is computed from the ledger's current records and the
  roster; nothing is stored. Each view comes in two shapes: a structured
  value for the HTTP surface and a Format method producing the plain
  text layout people paste into chat.

SEE ALSO:
  - ledger: History is the single read primitive underneath
  - registry: roster enumeration
*/
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// HistorySource is the slice of the ledger the reporter reads.
// Satisfied by *ledger.Ledger.
type HistorySource interface {
	History(ctx context.Context, employee registry.EmployeeID, from, to workday.Day) ([]ledger.DayEntry, error)
}

// RosterSource enumerates employees. Satisfied by *registry.Roster.
type RosterSource interface {
	List(ctx context.Context) ([]registry.Employee, error)
}

type Reporter struct {
	history HistorySource
	roster  RosterSource
}

func New(history HistorySource, roster RosterSource) *Reporter {
	return &Reporter{history: history, roster: roster}
}

// =============================================================================
// WEEKLY GRID
// =============================================================================

// WeeklyGrid is seven days of status per employee.
type WeeklyGrid struct {
	Start workday.Day
	Rows  []GridRow
}

type GridRow struct {
	Employee registry.Employee
	Days     []ledger.DayEntry
}

func (r *Reporter) Weekly(ctx context.Context, start workday.Day) (*WeeklyGrid, error) {
	employees, err := r.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	grid := &WeeklyGrid{Start: start}
	end := start.AddDays(6)
	for _, emp := range employees {
		days, err := r.history.History(ctx, emp.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", emp.ID, err)
		}
		grid.Rows = append(grid.Rows, GridRow{Employee: emp, Days: days})
	}
	return grid, nil
}

// Format renders the grid as monospace text, one row per employee.
func (g *WeeklyGrid) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Week of %s\n\n", g.Start)

	b.WriteString(fmt.Sprintf("%-8s", "ID"))
	for i := 0; i < 7; i++ {
		b.WriteString(fmt.Sprintf(" %-3s", g.Start.AddDays(i).Weekday().String()[:3]))
	}
	b.WriteString("\n")

	for _, row := range g.Rows {
		b.WriteString(fmt.Sprintf("%-8s", row.Employee.ID))
		for _, day := range row.Days {
			b.WriteString(fmt.Sprintf(" %-3s", daySymbol(day)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func daySymbol(e ledger.DayEntry) string {
	switch e.Status {
	case ledger.StatusLeave:
		return "L"
	case ledger.StatusSubmitted:
		if e.Record != nil && e.Record.Verdict == workday.Late {
			return "~"
		}
		return "+"
	default:
		return "-"
	}
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// MonthlySummary aggregates one calendar month per employee.
type MonthlySummary struct {
	Month string // YYYY-MM
	Rows  []SummaryRow
}

type SummaryRow struct {
	Employee  registry.Employee
	Submitted int
	Late      int
	OnLeave   int
	Absent    int

	// Percent is submitted+leave days over the days elapsed so far.
	Percent int
}

// Monthly summarizes the month containing day, counting only days up to
// and including it (a mid-month report does not punish the future).
func (r *Reporter) Monthly(ctx context.Context, day workday.Day) (*MonthlySummary, error) {
	employees, err := r.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	first := workday.NewDay(day.Year, day.Month, 1)
	elapsed := workday.DaysBetween(first, day) + 1

	summary := &MonthlySummary{Month: day.MonthKey()}
	for _, emp := range employees {
		days, err := r.history.History(ctx, emp.ID, first, day)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", emp.ID, err)
		}
		row := SummaryRow{Employee: emp}
		for _, d := range days {
			switch d.Status {
			case ledger.StatusSubmitted:
				row.Submitted++
				if d.Record.Verdict == workday.Late {
					row.Late++
				}
			case ledger.StatusLeave:
				row.OnLeave++
			default:
				row.Absent++
			}
		}
		if elapsed > 0 {
			row.Percent = (row.Submitted + row.OnLeave) * 100 / elapsed
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary, nil
}

// Format renders each employee with a ten-block percent bar.
func (s *MonthlySummary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance %s\n\n", s.Month)
	for _, row := range s.Rows {
		fmt.Fprintf(&b, "%-8s %-20s %s %3d%%  (%d submitted, %d late, %d leave, %d absent)\n",
			row.Employee.ID, row.Employee.Name, percentBar(row.Percent),
			row.Percent, row.Submitted, row.Late, row.OnLeave, row.Absent)
	}
	return b.String()
}

func percentBar(percent int) string {
	filled := percent / 10
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", 10-filled)
}

// =============================================================================
// DAY LISTS
// =============================================================================

// AbsentOn lists employees with no record for the day.
func (r *Reporter) AbsentOn(ctx context.Context, day workday.Day) ([]registry.Employee, error) {
	return r.filterByStatus(ctx, day, ledger.StatusAbsent, nil)
}

// LateOn lists employees whose submission for the day was late.
func (r *Reporter) LateOn(ctx context.Context, day workday.Day) ([]registry.Employee, error) {
	late := func(e ledger.DayEntry) bool {
		return e.Record != nil && e.Record.Verdict == workday.Late
	}
	return r.filterByStatus(ctx, day, ledger.StatusSubmitted, late)
}

func (r *Reporter) filterByStatus(ctx context.Context, day workday.Day, status ledger.DayStatus, extra func(ledger.DayEntry) bool) ([]registry.Employee, error) {
	employees, err := r.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	var out []registry.Employee
	for _, emp := range employees {
		days, err := r.history.History(ctx, emp.ID, day, day)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", emp.ID, err)
		}
		if len(days) != 1 || days[0].Status != status {
			continue
		}
		if extra != nil && !extra(days[0]) {
			continue
		}
		out = append(out, emp)
	}
	return out, nil
}
