/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/standup/attendance-engine/approval"
	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
)

// =============================================================================
// MESSAGES
// =============================================================================

// SubmitMessageRequest is an inbound work update. The text carries the
// employee identifier as its first token ("DEV01 fixed the parser").
// At is optional RFC3339; empty means now.
type SubmitMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	At     string `json:"at,omitempty"`
}

// RecordDTO represents a ledger record in API responses.
type RecordDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Day         string `json:"day"`
	SubmittedAt string `json:"submitted_at"`
	Body        string `json:"body"`
	Verdict     string `json:"verdict"`
	Kind        string `json:"kind"`
	ApprovedBy  string `json:"approved_by,omitempty"`
}

func toRecordDTO(rec *ledger.Record) RecordDTO {
	return RecordDTO{
		ID:          rec.ID,
		EmployeeID:  string(rec.Employee),
		Day:         rec.Day.String(),
		SubmittedAt: rec.SubmittedAt.Format(time.RFC3339),
		Body:        rec.Body,
		Verdict:     string(rec.Verdict),
		Kind:        string(rec.Kind),
		ApprovedBy:  string(rec.ApprovedBy),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

func toEmployeeDTO(e registry.Employee) EmployeeDTO {
	return EmployeeDTO{ID: string(e.ID), Name: e.Name, Department: e.Department}
}

// CreateEmployeeRequest is the request to register an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// HistoryEntryDTO is one day of an employee's history.
type HistoryEntryDTO struct {
	Day    string     `json:"day"`
	Status string     `json:"status"`
	Record *RecordDTO `json:"record,omitempty"`
}

// =============================================================================
// WORKFLOW REQUESTS
// =============================================================================

// SubmitWorkflowRequest files a resubmission/edit/leave request.
type SubmitWorkflowRequest struct {
	Kind       string `json:"kind"`
	Requester  string `json:"requester"`
	EmployeeID string `json:"employee_id"`
	Day        string `json:"day"`
	Payload    string `json:"payload,omitempty"`
}

// ResolveRequest identifies who is approving or rejecting.
type ResolveRequest struct {
	Resolver string `json:"resolver"`
}

type WorkflowRequestDTO struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Requester     string   `json:"requester"`
	RequesterRole string   `json:"requester_role"`
	EmployeeID    string   `json:"employee_id"`
	Day           string   `json:"day"`
	Payload       string   `json:"payload,omitempty"`
	Eligible      []string `json:"eligible"`
	Status        string   `json:"status"`
	ResolvedBy    string   `json:"resolved_by,omitempty"`
	CreatedAt     string   `json:"created_at"`
	ResolvedAt    string   `json:"resolved_at,omitempty"`
}

func toRequestDTO(r *approval.Request) WorkflowRequestDTO {
	eligible := make([]string, len(r.Eligible))
	for i, role := range r.Eligible {
		eligible[i] = string(role)
	}
	dto := WorkflowRequestDTO{
		ID:            r.ID,
		Kind:          string(r.Kind),
		Requester:     string(r.Requester),
		RequesterRole: string(r.RequesterRole),
		EmployeeID:    string(r.Employee),
		Day:           r.Day.String(),
		Payload:       r.Payload,
		Eligible:      eligible,
		Status:        string(r.Status),
		ResolvedBy:    string(r.ResolvedBy),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if !r.ResolvedAt.IsZero() {
		dto.ResolvedAt = r.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

// ResolutionDTO is the outcome of approving or rejecting a request.
type ResolutionDTO struct {
	Request WorkflowRequestDTO `json:"request"`

	// Warning is set when the approval stood but its ledger effect
	// failed and needs operator attention.
	Warning string `json:"warning,omitempty"`

	Record *RecordDTO `json:"record,omitempty"`
	Leave  *LeaveDTO  `json:"leave,omitempty"`
}

// LeaveDTO reports the monthly standing after an approved leave.
type LeaveDTO struct {
	Record       RecordDTO `json:"record"`
	MonthlyCount int       `json:"monthly_count"`
	Deduction    string    `json:"deduction"`
}

// =============================================================================
// SETTINGS / ERRORS
// =============================================================================

type DeadlineDTO struct {
	Deadline string `json:"deadline"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Suspicious marks a duplicate submission after the override grant
	// was already used.
	Suspicious bool `json:"suspicious,omitempty"`
}
