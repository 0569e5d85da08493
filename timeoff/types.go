// Package timeoff implements the leave-request lifecycle: roles and their
// authorization table, submission with chargeable-day computation, and the
// approval state machine coupled to the balance ledger.
package timeoff

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ROLE - Closed set; adding one means a new constant, AllRoles and policy rows
// =============================================================================

type Role string

const (
	RoleUnassigned Role = "UNASSIGNED"
	RoleEmployee   Role = "EMPLOYEE"
	RoleBoss       Role = "BOSS"
	RoleAdmin      Role = "ADMIN"
)

// AllRoles lists every role, in escalating order.
func AllRoles() []Role {
	return []Role{RoleUnassigned, RoleEmployee, RoleBoss, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleUnassigned, RoleEmployee, RoleBoss, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrInvalidRole, s)
	}
	return r, nil
}

// DefaultRemainingDays is the balance of a newly created employee.
const DefaultRemainingDays = 15

// Employee is the slice of the identity subsystem the engine needs.
type Employee struct {
	ID            generic.EntityID
	Name          string
	Email         string
	Role          Role
	RemainingDays int
	CreatedAt     time.Time
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   generic.EntityID
	Role Role
}

func (e Employee) AsActor() Actor { return Actor{ID: e.ID, Role: e.Role} }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether no transition may leave this status.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s RequestStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// MaxCommentLength bounds each comment supplied on submit, approve or reject.
const MaxCommentLength = 500

// LeaveRequest is an immutable snapshot; transitions produce a new value.
type LeaveRequest struct {
	ID             string
	EmployeeID     generic.EntityID
	Start          generic.Date
	End            generic.Date
	ChargeableDays int
	Comments       string
	Status         RequestStatus
	DecidedBy      generic.EntityID
	DecidedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// decide returns the request moved to status by actor, with comment appended.
func (r LeaveRequest) decide(status RequestStatus, actor generic.EntityID, comment string, at time.Time) LeaveRequest {
	next := r
	next.Status = status
	next.Comments = appendComment(r.Comments, comment)
	next.DecidedBy = actor
	next.DecidedAt = &at
	next.UpdatedAt = at
	return next
}

func appendComment(existing, comment string) string {
	comment = strings.TrimSpace(comment)
	switch {
	case comment == "":
		return existing
	case existing == "":
		return comment
	default:
		return existing + "\n" + comment
	}
}

func validateComment(comment string) error {
	if n := len([]rune(comment)); n > MaxCommentLength {
		return fmt.Errorf("%w: %d characters, at most %d allowed", generic.ErrInvalidComment, n, MaxCommentLength)
	}
	return nil
}
