/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store:   submission records and override grants
  registry.Store: the employee roster
  approval.Store: workflow requests

KEY TABLES:
  records:   submissions and approved leaves; superseded rows are kept
  overrides: per-(employee, work-day) grant state
  employees: roster entries
  requests:  approval workflow items

INVARIANT ENFORCEMENT:
  idx_unique_current_record guarantees at most one current (non
  superseded) record per (employee, work-day) at the database level,
  so the invariant holds even against a buggy caller or a second
  process on the same file.

  MarkResolved is a compare-and-set: UPDATE ... WHERE status='pending',
  checked via RowsAffected. Two concurrent resolvers cannot both win.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger: Store interface definition and Mutation semantics
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Submission records. Superseded rows stay for history.
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_day TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		body TEXT NOT NULL,
		verdict TEXT NOT NULL,
		kind TEXT NOT NULL,
		superseded INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_employee_day
		ON records(employee_id, work_day);

	-- CRITICAL: at most one current record per (employee, work-day)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_current_record
		ON records(employee_id, work_day)
		WHERE superseded = 0;

	-- Override grant state per (employee, work-day)
	CREATE TABLE IF NOT EXISTS overrides (
		employee_id TEXT NOT NULL,
		work_day TEXT NOT NULL,
		state TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_day)
	);

	-- Roster
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Approval workflow requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		requester TEXT NOT NULL,
		requester_role TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		work_day TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		eligible TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		resolved_by TEXT,
		created_at TEXT NOT NULL,
		resolved_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

const recordColumns = `id, employee_id, work_day, submitted_at, body, verdict, kind, superseded, approved_by`

func (s *Store) CurrentRecord(ctx context.Context, employee registry.EmployeeID, day workday.Day) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE employee_id = ? AND work_day = ? AND superseded = 0
	`, employee, day.String())

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current record: %w", err)
	}
	return rec, nil
}

func (s *Store) RecordsInRange(ctx context.Context, employee registry.EmployeeID, from, to workday.Day) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE employee_id = ? AND work_day >= ? AND work_day <= ? AND superseded = 0
		ORDER BY work_day ASC
	`, employee, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *Store) OverrideState(ctx context.Context, employee registry.EmployeeID, day workday.Day) (ledger.OverrideState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM overrides WHERE employee_id = ? AND work_day = ?",
		employee, day.String(),
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.OverrideNone, nil
	}
	if err != nil {
		return ledger.OverrideNone, fmt.Errorf("failed to query override state: %w", err)
	}
	return ledger.OverrideState(state), nil
}

func (s *Store) SetOverrideState(ctx context.Context, employee registry.EmployeeID, day workday.Day, state ledger.OverrideState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setOverride(ctx, s.db, employee, day, state)
}

func (s *Store) setOverride(ctx context.Context, db execer, employee registry.EmployeeID, day workday.Day, state ledger.OverrideState) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO overrides (employee_id, work_day, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, work_day) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, employee, day.String(), state, now())
	if err != nil {
		return fmt.Errorf("failed to set override state: %w", err)
	}
	return nil
}

// Apply performs the mutation atomically. Supersede marks the old row,
// inserts the new one, and consumes the grant in one SQL transaction.
func (s *Store) Apply(ctx context.Context, m ledger.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Kind {
	case ledger.MutationSubmit, ledger.MutationLeave:
		return s.insertRecord(ctx, s.db, m.Record)

	case ledger.MutationSupersede:
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			"UPDATE records SET superseded = 1 WHERE id = ? AND superseded = 0",
			m.Supersedes)
		if err != nil {
			return fmt.Errorf("failed to supersede record: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("superseded record %s not current", m.Supersedes)
		}
		if err := s.insertRecord(ctx, tx, m.Record); err != nil {
			return err
		}
		if err := s.setOverride(ctx, tx, m.Record.Employee, m.Record.Day, ledger.OverrideConsumed); err != nil {
			return err
		}
		return tx.Commit()

	case ledger.MutationEdit:
		res, err := s.db.ExecContext(ctx,
			"UPDATE records SET body = ? WHERE id = ?",
			m.Record.Body, m.Record.ID)
		if err != nil {
			return fmt.Errorf("failed to edit record: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("edited record %s not found", m.Record.ID)
		}
		return nil

	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertRecord(ctx context.Context, db execer, rec ledger.Record) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO records
		(id, employee_id, work_day, submitted_at, body, verdict, kind, superseded, approved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Employee,
		rec.Day.String(),
		rec.SubmittedAt.UTC().Format(time.RFC3339),
		rec.Body,
		rec.Verdict,
		rec.Kind,
		boolToInt(rec.Superseded),
		nullString(string(rec.ApprovedBy)),
		now(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func scanRecord(row interface{ Scan(dest ...any) error }) (*ledger.Record, error) {
	var (
		rec         ledger.Record
		day         string
		submittedAt string
		superseded  int
		approvedBy  sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Employee, &day, &submittedAt,
		&rec.Body, &rec.Verdict, &rec.Kind, &superseded, &approvedBy)
	if err != nil {
		return nil, err
	}

	rec.Day, err = workday.ParseDay(day)
	if err != nil {
		return nil, fmt.Errorf("failed to parse work day: %w", err)
	}
	rec.SubmittedAt, err = time.Parse(time.RFC3339, submittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse submitted_at: %w", err)
	}
	rec.Superseded = superseded != 0
	rec.ApprovedBy = registry.Identity(approvedBy.String)
	return &rec, nil
}

// =============================================================================
// ROSTER STORE (registry.Store interface)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id registry.EmployeeID) (*registry.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e registry.Employee
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, department FROM employees WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &e.Department)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query employee: %w", err)
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]registry.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, department FROM employees ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []registry.Employee
	for rows.Next() {
		var e registry.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Department); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) PutEmployee(ctx context.Context, e registry.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, department, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, department = excluded.department
	`, e.ID, e.Name, e.Department, now())
	if err != nil {
		return fmt.Errorf("failed to put employee: %w", err)
	}
	return nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id registry.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// =============================================================================
// REQUEST STORE (approval.Store interface)
// =============================================================================

const requestColumns = `id, kind, requester, requester_role, employee_id, work_day, payload, eligible, status, resolved_by, created_at, resolved_at`

func (s *Store) CreateRequest(ctx context.Context, r approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
		(`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Kind,
		r.Requester,
		r.RequesterRole,
		r.Employee,
		r.Day.String(),
		r.Payload,
		joinRoles(r.Eligible),
		r.Status,
		nullString(string(r.ResolvedBy)),
		r.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(r.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, approval.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query request: %w", err)
	}
	return req, nil
}

func (s *Store) PendingRequests(ctx context.Context) ([]approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE status = 'pending' ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []approval.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// MarkResolved transitions pending -> status with a compare-and-set.
// RowsAffected == 0 means someone else got there first (or the ID is
// unknown); only one caller ever sees success.
func (s *Store) MarkResolved(ctx context.Context, id string, status approval.Status, by registry.Identity, at time.Time) (*approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, status, by, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM requests WHERE id = ?", id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check request: %w", err)
		}
		if exists == 0 {
			return nil, approval.ErrRequestNotFound
		}
		return nil, approval.ErrAlreadyResolved
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	return scanRequest(row)
}

func (s *Store) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := cutoff.UTC().Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE status = 'pending' AND created_at < ?", cut)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale requests: %w", err)
	}
	var stale []approval.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		stale = append(stale, *req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var expired []approval.Request
	for _, req := range stale {
		res, err := s.db.ExecContext(ctx, `
			UPDATE requests SET status = ?, resolved_at = ?
			WHERE id = ? AND status = 'pending'
		`, approval.StatusExpired, cut, req.ID)
		if err != nil {
			return expired, fmt.Errorf("failed to expire request %s: %w", req.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			req.Status = approval.StatusExpired
			req.ResolvedAt = cutoff.UTC()
			expired = append(expired, req)
		}
	}
	return expired, nil
}

func scanRequest(row interface{ Scan(dest ...any) error }) (*approval.Request, error) {
	var (
		req        approval.Request
		day        string
		eligible   string
		resolvedBy sql.NullString
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(&req.ID, &req.Kind, &req.Requester, &req.RequesterRole,
		&req.Employee, &day, &req.Payload, &eligible, &req.Status,
		&resolvedBy, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	req.Day, err = workday.ParseDay(day)
	if err != nil {
		return nil, fmt.Errorf("failed to parse work day: %w", err)
	}
	req.Eligible = splitRoles(eligible)
	req.ResolvedBy = registry.Identity(resolvedBy.String)
	req.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if resolvedAt.Valid {
		req.ResolvedAt, err = time.Parse(time.RFC3339, resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse resolved_at: %w", err)
		}
	}
	return &req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinRoles(roles []registry.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitRoles(s string) []registry.Role {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make([]registry.Role, len(parts))
	for i, p := range parts {
		roles[i] = registry.Role(p)
	}
	return roles
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
