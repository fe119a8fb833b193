/*
excel.go - Workbook mirror

PURPOSE:
  Mirrors the ledger into an .xlsx workbook for people who live in
  spreadsheets: one sheet per calendar month plus a Dashboard and a
  Leave Register. The workbook is derived state; it can always be
  rebuilt from the primary store.

LAYOUT:
  "Jan 2006" sheets  one row per current record, updated in place on
                     re-submission and edit
  Leave Register     append-only, one row per approved leave with the
                     monthly leave number and deduction
  Dashboard          per-employee rollup of the most recently touched
                     month

SEE ALSO:
  - dispatcher.go: delivery, retry, and failure isolation
*/
package syncer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// Directory resolves employee identifiers to names for the sheet rows.
type Directory interface {
	GetEmployee(ctx context.Context, id registry.EmployeeID) (*registry.Employee, error)
}

const (
	sheetDashboard     = "Dashboard"
	sheetLeaveRegister = "Leave Register"
	monthSheetLayout   = "Jan 2006"
	dateLayout         = "2006-01-02"
	timeLayout         = "15:04:05"
)

var monthHeader = []interface{}{
	"Sr No", "Employee ID", "Department", "Employee Name",
	"Date", "Day", "Time", "Work Update", "Status", "On Time",
}

var leaveHeader = []interface{}{
	"Sr No", "Employee ID", "Name", "Department",
	"Leave Date", "Reason", "Approved By", "Leave #", "Deduction",
}

var dashboardHeader = []interface{}{
	"Employee ID", "Name", "Department",
	"Days Submitted", "Late Count", "On Leave",
}

// Workbook is an .xlsx Mirror.
type Workbook struct {
	path string
	dir  Directory
	log  *zap.Logger

	mu sync.Mutex
	f  *excelize.File
}

// NewWorkbook opens the workbook at path, creating it with the fixed
// sheets when missing.
func NewWorkbook(path string, dir Directory, log *zap.Logger) (*Workbook, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Workbook{path: path, dir: dir, log: log}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		w.f = f
		return w, nil
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetDashboard)
	if _, err := f.NewSheet(sheetLeaveRegister); err != nil {
		return nil, fmt.Errorf("create leave register: %w", err)
	}
	if err := writeHeader(f, sheetDashboard, dashboardHeader); err != nil {
		return nil, err
	}
	if err := writeHeader(f, sheetLeaveRegister, leaveHeader); err != nil {
		return nil, err
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("create workbook %s: %w", path, err)
	}
	w.f = f
	return w, nil
}

func (w *Workbook) Name() string { return "excel-workbook" }

// Close saves and releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.SaveAs(w.path); err != nil {
		return err
	}
	return w.f.Close()
}

// Mirror applies one mutation to the workbook and saves it.
func (w *Workbook) Mirror(ctx context.Context, m ledger.Mutation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sheet := m.Record.Day.Time().Format(monthSheetLayout)
	if err := w.ensureMonthSheet(sheet); err != nil {
		return err
	}

	name, dept := w.identify(ctx, m.Record.Employee)
	if err := w.upsertRecordRow(sheet, m, name, dept); err != nil {
		return err
	}
	if m.Kind == ledger.MutationLeave {
		if err := w.appendLeaveRow(m, name, dept); err != nil {
			return err
		}
	}
	if err := w.refreshDashboard(sheet); err != nil {
		return err
	}
	return w.f.SaveAs(w.path)
}

func (w *Workbook) identify(ctx context.Context, id registry.EmployeeID) (name, dept string) {
	emp, err := w.dir.GetEmployee(ctx, id)
	if err != nil {
		// The row still gets written; the roster entry may have been
		// removed after the record landed.
		return "", ""
	}
	return emp.Name, emp.Department
}

func (w *Workbook) ensureMonthSheet(sheet string) error {
	idx, err := w.f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return writeHeader(w.f, sheet, monthHeader)
}

func (w *Workbook) upsertRecordRow(sheet string, m ledger.Mutation, name, dept string) error {
	rec := m.Record
	status := "Submitted"
	onTime := "Yes"
	switch {
	case rec.Kind == ledger.KindLeave:
		status, onTime = "On Leave", "-"
	case m.Kind == ledger.MutationSupersede:
		status = "Resubmitted"
	}
	if rec.Kind == ledger.KindWorked && rec.Verdict == workday.Late {
		onTime = "No"
	}

	date := rec.Day.String()
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return err
	}
	rowNum := len(rows) + 1
	srNo := len(rows) // header occupies row 1
	for i, row := range rows {
		if i == 0 || len(row) < 5 {
			continue
		}
		if row[1] == string(rec.Employee) && row[4] == date {
			rowNum = i + 1
			srNo = i
			break
		}
	}

	row := []interface{}{
		srNo, string(rec.Employee), dept, name,
		date, rec.Day.Weekday().String(), rec.SubmittedAt.Format(timeLayout),
		rec.Body, status, onTime,
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	return w.f.SetSheetRow(sheet, cell, &row)
}

func (w *Workbook) appendLeaveRow(m ledger.Mutation, name, dept string) error {
	rows, err := w.f.GetRows(sheetLeaveRegister)
	if err != nil {
		return err
	}
	row := []interface{}{
		len(rows), string(m.Record.Employee), name, dept,
		m.Record.Day.String(), m.Record.Body, string(m.Record.ApprovedBy),
		m.LeaveCount, m.Deduction.StringFixed(2),
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(rows)+1)
	return w.f.SetSheetRow(sheetLeaveRegister, cell, &row)
}

// refreshDashboard recomputes the rollup from the given month sheet.
func (w *Workbook) refreshDashboard(sheet string) error {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return err
	}

	type tally struct {
		name, dept               string
		submitted, late, onLeave int
	}
	order := make([]string, 0, 16)
	byID := make(map[string]*tally)
	for i, row := range rows {
		if i == 0 || len(row) < 10 {
			continue
		}
		id := row[1]
		t, ok := byID[id]
		if !ok {
			t = &tally{name: row[3], dept: row[2]}
			byID[id] = t
			order = append(order, id)
		}
		switch {
		case row[8] == "On Leave":
			t.onLeave++
		default:
			t.submitted++
			if row[9] == "No" {
				t.late++
			}
		}
	}

	// Rewrite the sheet wholesale; it is small and derived.
	if err := w.f.DeleteSheet(sheetDashboard); err != nil {
		return err
	}
	if _, err := w.f.NewSheet(sheetDashboard); err != nil {
		return err
	}
	if err := writeHeader(w.f, sheetDashboard, dashboardHeader); err != nil {
		return err
	}
	for i, id := range order {
		t := byID[id]
		row := []interface{}{id, t.name, t.dept, t.submitted, t.late, t.onLeave}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheetDashboard, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(len(header), 1)
	return f.SetCellStyle(sheet, "A1", end, style)
}
