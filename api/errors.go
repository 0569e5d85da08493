package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code, message := classifyError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, message, err)
}

func classifyError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, generic.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range", "End date is before start date"
	case errors.Is(err, generic.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", "Invalid amount"
	case errors.Is(err, generic.ErrInvalidComment):
		return http.StatusBadRequest, "invalid_comment", "Comment is too long"
	case errors.Is(err, generic.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role", "Unknown role"
	case errors.Is(err, generic.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "Unknown or missing actor"
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden, "forbidden", "Not allowed"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, generic.ErrAlreadyFinalized):
		return http.StatusConflict, "already_finalized", "Request is not pending"
	case errors.Is(err, generic.ErrDuplicateHoliday):
		return http.StatusConflict, "duplicate_holiday", "A holiday already exists on this date"
	case errors.Is(err, timeoff.ErrEmployeeExists):
		return http.StatusConflict, "employee_exists", "Employee already exists"
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance", "Not enough remaining days"
	case errors.Is(err, generic.ErrTransient):
		return http.StatusServiceUnavailable, "transient", "Busy, retry shortly"
	default:
		return http.StatusInternalServerError, "internal", "Internal error"
	}
}
