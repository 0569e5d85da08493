/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the request lifecycle and the directory over REST. Handles HTTP
  request/response and JSON, and delegates every rule to package timeoff.

ENDPOINTS:
  Requests:
    POST   /api/requests                 Submit a leave request
    GET    /api/requests/pending         Pending requests the actor may decide
    GET    /api/requests/{id}            Get one request
    POST   /api/requests/{id}/approve    Approve (debits the balance)
    POST   /api/requests/{id}/reject     Reject

  Employees:
    GET    /api/employees                List employees (admin)
    POST   /api/employees                Create employee (admin)
    GET    /api/employees/{id}           Get employee
    PUT    /api/employees/{id}/role      Assign role (admin)
    GET    /api/employees/{id}/balance   Remaining days
    GET    /api/employees/{id}/requests  Requests of one employee
    GET    /api/employees/{id}/ledger    Balance history

  Holidays:
    GET    /api/holidays                 List holidays
    POST   /api/holidays                 Add holiday (admin)
    DELETE /api/holidays/{id}            Delete holiday (admin)

REQUEST FLOW:
  1. ActorMiddleware resolves X-Actor-ID to an Actor (401 otherwise)
  2. Parse and validate the body
  3. Call the service
  4. Serialize response, or map the error (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Requests  *timeoff.RequestService
	Directory *timeoff.Directory

	// Health is called by /healthz when set.
	Health func(ctx context.Context) error

	logger *zap.Logger
}

func NewHandler(requests *timeoff.RequestService, directory *timeoff.Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Requests:  requests,
		Directory: directory,
		logger:    logger.Named("api"),
	}
}

// decodeBody decodes a JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (timeoff.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeDomainError(w, generic.ErrUnauthenticated)
	}
	return actor, ok
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _, _ := classifyError(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeDomainError(w, err)
}

// Healthz reports liveness.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy", "Storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST ENDPOINTS
// =============================================================================

// SubmitLeave submits a leave request.
// POST /api/requests
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "start_date and end_date are required", nil)
		return
	}

	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "Invalid start_date", err)
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "Invalid end_date", err)
		return
	}

	employeeID := generic.EntityID(req.EmployeeID)
	if employeeID == "" {
		employeeID = actor.ID
	}

	result, err := h.Requests.Submit(r.Context(), actor, timeoff.SubmitInput{
		EmployeeID: employeeID,
		Start:      start,
		End:        end,
		Comment:    req.Comment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Request:        toRequestDTO(result.Request),
		Balance:        result.Balance,
		ExceedsBalance: result.ExceedsBalance,
	})
}

// ApproveRequest approves a pending request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Requests.Approve)
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Requests.Reject)
}

type decideFunc func(ctx context.Context, requestID string, actor timeoff.Actor, comment string) (*timeoff.LeaveRequest, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}

	result, err := fn(r.Context(), chi.URLParam(r, "id"), actor, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(*result))
}

// GetRequest returns one request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Requests.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ListPendingRequests returns pending requests the actor may decide.
// GET /api/requests/pending
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	pending, err := h.Requests.ListPending(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": toRequestDTOs(pending)})
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	employees, err := h.Directory.ListEmployees(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": dtos})
}

// CreateEmployee creates an employee with role UNASSIGNED.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req CreateEmployeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "name is required", nil)
		return
	}

	e, err := h.Directory.CreateEmployee(r.Context(), actor, timeoff.NewEmployee{
		ID:            generic.EntityID(req.ID),
		Name:          req.Name,
		Email:         req.Email,
		RemainingDays: req.RemainingDays,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(*e))
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	e, err := h.Directory.GetEmployee(r.Context(), actor, generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// AssignRole changes an employee's role.
// PUT /api/employees/{id}/role
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}
	role, err := timeoff.ParseRole(req.Role)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	e, err := h.Directory.AssignRole(r.Context(), actor, generic.EntityID(chi.URLParam(r, "id")), role)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(*e))
}

// GetBalance returns the remaining days.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id := generic.EntityID(chi.URLParam(r, "id"))
	balance, err := h.Requests.Balance(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{EmployeeID: string(id), RemainingDays: balance})
}

// ListEmployeeRequests returns one employee's requests, newest first.
// GET /api/employees/{id}/requests
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	requests, err := h.Requests.ListForEmployee(r.Context(), actor, generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": toRequestDTOs(requests)})
}

// GetLedger returns the balance history.
// GET /api/employees/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	entries, err := h.Requests.LedgerEntries(r.Context(), actor, generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toLedgerEntryDTOs(entries)})
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Directory.ListHolidays(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday adds a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req CreateHolidayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "Date and name are required", nil)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday, err := h.Directory.AddHoliday(r.Context(), actor, date, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHolidayDTO(*holiday))
}

// UpdateHoliday changes a holiday's date and name.
// PUT /api/holidays/{id}
func (h *Handler) UpdateHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req UpdateHolidayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "Date and name are required", nil)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday, err := h.Directory.UpdateHoliday(r.Context(), actor, chi.URLParam(r, "id"), date, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHolidayDTO(*holiday))
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.Directory.DeleteHoliday(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}
