/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DATES:
  Calendar dates are "YYYY-MM-DD"; timestamps are RFC 3339 in UTC.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// SubmitRequest is the body of POST /api/requests. EmployeeID defaults to
// the actor.
type SubmitRequest struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Comment    string `json:"comment"`
}

// DecisionRequest is the body of approve and reject. It may be empty.
type DecisionRequest struct {
	Comment string `json:"comment"`
}

type CreateEmployeeRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	RemainingDays *int   `json:"remaining_days,omitempty"`
}

type AssignRoleRequest struct {
	Role string `json:"role"`
}

type CreateHolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// UpdateHolidayRequest is the body of PUT /api/holidays/{id}. Both fields
// are replaced.
type UpdateHolidayRequest = CreateHolidayRequest

// =============================================================================
// RESPONSES
// =============================================================================

type RequestDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	ChargeableDays int     `json:"chargeable_days"`
	Comments       string  `json:"comments"`
	Status         string  `json:"status"`
	DecidedBy      string  `json:"decided_by,omitempty"`
	DecidedAt      *string `json:"decided_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type SubmitResponse struct {
	Request        RequestDTO `json:"request"`
	Balance        int        `json:"balance"`
	ExceedsBalance bool       `json:"exceeds_balance"`
}

type BalanceDTO struct {
	EmployeeID    string `json:"employee_id"`
	RemainingDays int    `json:"remaining_days"`
}

type LedgerEntryDTO struct {
	ID           string `json:"id"`
	RequestID    string `json:"request_id,omitempty"`
	Type         string `json:"type"`
	Delta        int    `json:"delta"`
	BalanceAfter int    `json:"balance_after"`
	Reason       string `json:"reason,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	RemainingDays int    `json:"remaining_days"`
	CreatedAt     string `json:"created_at"`
}

type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toRequestDTO(r timeoff.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:             r.ID,
		EmployeeID:     string(r.EmployeeID),
		StartDate:      r.Start.String(),
		EndDate:        r.End.String(),
		ChargeableDays: r.ChargeableDays,
		Comments:       r.Comments,
		Status:         string(r.Status),
		DecidedBy:      string(r.DecidedBy),
		CreatedAt:      formatTimestamp(r.CreatedAt),
		UpdatedAt:      formatTimestamp(r.UpdatedAt),
	}
	if r.DecidedAt != nil {
		s := formatTimestamp(*r.DecidedAt)
		dto.DecidedAt = &s
	}
	return dto
}

func toRequestDTOs(rs []timeoff.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, 0, len(rs))
	for _, r := range rs {
		dtos = append(dtos, toRequestDTO(r))
	}
	return dtos
}

func toLedgerEntryDTOs(entries []generic.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, LedgerEntryDTO{
			ID:           e.ID,
			RequestID:    e.RequestID,
			Type:         string(e.Type),
			Delta:        e.Delta,
			BalanceAfter: e.BalanceAfter,
			Reason:       e.Reason,
			CreatedBy:    e.CreatedBy,
			CreatedAt:    formatTimestamp(e.CreatedAt),
		})
	}
	return dtos
}

func toEmployeeDTO(e timeoff.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		Email:         e.Email,
		Role:          string(e.Role),
		RemainingDays: e.RemainingDays,
		CreatedAt:     formatTimestamp(e.CreatedAt),
	}
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name}
}
