/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the ledger, approval workflow, roster, and reports via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Messages:
    POST   /api/messages                     Submit a work update

  Employees:
    GET    /api/employees                    List the roster
    POST   /api/employees                    Register an employee
    DELETE /api/employees/{id}               Remove an employee
    GET    /api/employees/{id}/history       Per-day history

  Requests:
    POST   /api/requests                     File a workflow request
    GET    /api/requests/pending             Open requests (optional ?role=)
    POST   /api/requests/{id}/approve        Approve
    POST   /api/requests/{id}/reject         Reject

  Reports:
    GET    /api/reports/weekly?start=        Seven-day grid
    GET    /api/reports/monthly?day=         Month summary with percentages
    GET    /api/reports/absent?day=          Employees with no record
    GET    /api/reports/late?day=            Late submitters

  Settings:
    GET    /api/settings/deadline            Current submission deadline
    PUT    /api/settings/deadline            Change it

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Role not eligible / self-approval
  - 404: Resource not found
  - 409: Conflict (duplicate submission, already resolved)
  - 500: Internal errors

SECURITY NOTE:
  Sender identity is taken from the request body; the chat gateway in
  front of this service is trusted to authenticate it.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/notify"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/report"
	"github.com/standup/attendance-engine/workday"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger   *ledger.Ledger
	Engine   *approval.Engine
	Roster   *registry.Roster
	Reporter *report.Reporter
	Notifier notify.Notifier
	Log      *zap.Logger

	// Clock is overridable for tests; nil means time.Now.
	Clock func() time.Time
}

func NewHandler(led *ledger.Ledger, eng *approval.Engine, roster *registry.Roster, rep *report.Reporter, n notify.Notifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = notify.NewLog(log)
	}
	return &Handler{
		Ledger:   led,
		Engine:   eng,
		Roster:   roster,
		Reporter: rep,
		Notifier: n,
		Log:      log,
	}
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// SubmitMessage records a work update. The first token of the text is
// the employee identifier; the rest is the update body.
func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, body, ok := splitMessage(req.Text)
	if !ok {
		writeError(w, http.StatusBadRequest, "Message must start with an employee ID followed by the update", nil)
		return
	}
	if _, err := h.Roster.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Unknown employee ID", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up employee", err)
		return
	}

	at := h.now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'at' timestamp", err)
			return
		}
		at = parsed
	}

	rec, err := h.Ledger.TryRecord(r.Context(), id, at, body)
	if err != nil {
		var conflict *ledger.DuplicateConflictError
		if errors.As(err, &conflict) {
			if conflict.Suspicious {
				h.notifyAdmins(r, "Suspicious duplicate submission",
					"Repeat duplicate from "+string(conflict.Employee)+" for "+conflict.Day.String()+
						" after the re-submission grant was already used.")
			}
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Error:      "A record already exists for this work-day",
				Details:    err.Error(),
				Suspicious: conflict.Suspicious,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record submission", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// splitMessage parses "EMPID rest of the update".
func splitMessage(text string) (registry.EmployeeID, string, bool) {
	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(fields) < 2 || fields[0] == "" || strings.TrimSpace(fields[1]) == "" {
		return "", "", false
	}
	return registry.NormalizeID(fields[0]), strings.TrimSpace(fields[1]), true
}

func (h *Handler) notifyAdmins(r *http.Request, subject, body string) {
	recipients := append(h.Roster.Owners(), h.Roster.HR()...)
	if err := h.Notifier.Notify(r.Context(), recipients, subject, body); err != nil {
		h.Log.Warn("failed to notify admins", zap.Error(err))
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the roster.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Roster.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee registers or updates a roster entry.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := registry.Employee{
		ID:         registry.EmployeeID(req.ID),
		Name:       strings.TrimSpace(req.Name),
		Department: req.Department,
	}
	if err := h.Roster.Add(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register employee", err)
		return
	}

	stored, err := h.Roster.Resolve(r.Context(), registry.NormalizeID(req.ID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read back employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*stored))
}

// DeleteEmployee removes a roster entry. Ledger records stay.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := registry.NormalizeID(chi.URLParam(r, "id"))
	if err := h.Roster.Remove(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to remove employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns per-day history for ?from= and ?to= (YYYY-MM-DD).
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := registry.NormalizeID(chi.URLParam(r, "id"))
	if _, err := h.Roster.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to look up employee", err)
		return
	}

	from, err := workday.ParseDay(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' day", err)
		return
	}
	to, err := workday.ParseDay(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' day", err)
		return
	}

	entries, err := h.Ledger.History(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load history", err)
		return
	}

	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dto := HistoryEntryDTO{Day: e.Day.String(), Status: string(e.Status)}
		if e.Record != nil {
			rec := toRecordDTO(e.Record)
			dto.Record = &rec
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WORKFLOW REQUEST HANDLERS
// =============================================================================

// SubmitRequest files a resubmission/edit/leave request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := approval.Kind(req.Kind)
	switch kind {
	case approval.KindResubmission, approval.KindEdit, approval.KindLeave:
	default:
		writeError(w, http.StatusBadRequest, "kind must be resubmission, edit, or leave", nil)
		return
	}

	day, err := workday.ParseDay(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", err)
		return
	}

	filed, err := h.Engine.Submit(r.Context(), kind,
		registry.Identity(req.Requester), registry.NormalizeID(req.EmployeeID), day, req.Payload)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, approval.ErrUnknownRequester):
			status = http.StatusForbidden
		case errors.Is(err, approval.ErrUnknownEmployee):
			status = http.StatusNotFound
		}
		writeError(w, status, "Failed to file request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(filed))
}

// ListPendingRequests returns open requests, optionally scoped to the
// requests a given role may resolve (?role=hr).
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	role := registry.Role(r.URL.Query().Get("role"))
	pending, err := h.Engine.Pending(r.Context(), role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}

	dtos := make([]WorkflowRequestDTO, len(pending))
	for i := range pending {
		dtos[i] = toRequestDTO(&pending[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest resolves a request positively.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// RejectRequest resolves a request negatively.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	id := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.Resolve(r.Context(), id, registry.Identity(req.Resolver), approve)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, approval.ErrRequestNotFound):
			status = http.StatusNotFound
		case errors.Is(err, approval.ErrAlreadyResolved):
			status = http.StatusConflict
		case errors.Is(err, approval.ErrNotEligible), errors.Is(err, approval.ErrSelfApproval):
			status = http.StatusForbidden
		}
		writeError(w, status, "Failed to resolve request", err)
		return
	}

	dto := ResolutionDTO{Request: toRequestDTO(res.Request)}
	if res.Warning != nil {
		dto.Warning = res.Warning.Error()
	}
	if res.Record != nil {
		rec := toRecordDTO(res.Record)
		dto.Record = &rec
	}
	if res.Leave != nil {
		rec := toRecordDTO(&res.Leave.Record)
		dto.Leave = &LeaveDTO{
			Record:       rec,
			MonthlyCount: res.Leave.MonthlyCount,
			Deduction:    res.Leave.Deduction.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetWeeklyReport renders the seven-day grid starting at ?start=.
// ?format=text returns the monospace layout instead of JSON.
func (h *Handler) GetWeeklyReport(w http.ResponseWriter, r *http.Request) {
	start, err := h.dayParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'start' day", err)
		return
	}

	grid, err := h.Reporter.Weekly(r.Context(), start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build weekly report", err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		writeText(w, grid.Format())
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// GetMonthlyReport summarizes the month containing ?day= (default today).
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	day, err := h.dayParam(r, "day")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'day'", err)
		return
	}

	summary, err := h.Reporter.Monthly(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build monthly report", err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		writeText(w, summary.Format())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetAbsentReport lists employees with no record on ?day=.
func (h *Handler) GetAbsentReport(w http.ResponseWriter, r *http.Request) {
	h.dayList(w, r, h.Reporter.AbsentOn)
}

// GetLateReport lists employees who submitted late on ?day=.
func (h *Handler) GetLateReport(w http.ResponseWriter, r *http.Request) {
	h.dayList(w, r, h.Reporter.LateOn)
}

func (h *Handler) dayList(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, day workday.Day) ([]registry.Employee, error)) {
	day, err := h.dayParam(r, "day")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'day'", err)
		return
	}

	employees, err := fetch(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// dayParam reads a YYYY-MM-DD query parameter, defaulting to the
// current open work-day.
func (h *Handler) dayParam(r *http.Request, name string) (workday.Day, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		day, _ := h.Ledger.Resolver().Resolve(h.now())
		return day, nil
	}
	return workday.ParseDay(v)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetDeadline returns the active submission deadline.
func (h *Handler) GetDeadline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DeadlineDTO{Deadline: h.Ledger.Resolver().Deadline.String()})
}

// SetDeadline changes the submission deadline for subsequent messages.
func (h *Handler) SetDeadline(w http.ResponseWriter, r *http.Request) {
	var req DeadlineDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	deadline, err := workday.ParseDeadline(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deadline", err)
		return
	}
	h.Ledger.SetDeadline(deadline)
	writeJSON(w, http.StatusOK, DeadlineDTO{Deadline: deadline.String()})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
