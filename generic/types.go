/*
Package generic provides the domain-agnostic core of the leave engine.

PURPOSE:
  Calendar arithmetic, the balance ledger, per-key locking and the error
  vocabulary shared by every domain package. Nothing in here knows about
  roles, requests or approval rules; those live in package timeoff.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntityID: identity of the employee owning a balance
  - LedgerEntry: immutable record of one balance change
  - AuditEntry: who did what when

DESIGN PRINCIPLES:
  1. Whole days: balances and charges are integers
  2. One mutator: the only balance write is a conditional debit
  3. Auditability: every debit leaves a ledger entry

SEE ALSO:
  - time.go: Date, Holiday, HolidayCalendar
  - workdays.go: ChargeableDays
  - ledger.go: Ledger
  - store.go: BalanceStore, AuditLog, HolidayCalendar
  - locker.go: KeyLocker
*/
package generic

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string

// =============================================================================
// LEDGER ENTRY - Immutable record of a balance change
// =============================================================================

type EntryType string

const (
	EntryDebit EntryType = "debit" // approved leave
)

type LedgerEntry struct {
	ID           string
	EmployeeID   EntityID
	RequestID    string
	Type         EntryType
	Delta        int // negative for debits
	BalanceAfter int
	Reason       string
	CreatedBy    string
	CreatedAt    time.Time
}

// =============================================================================
// AUDIT LOG - Separate from ledger, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRequestSubmitted AuditAction = "request_submitted"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestRejected  AuditAction = "request_rejected"
	AuditRoleAssigned     AuditAction = "role_assigned"
	AuditEmployeeCreated  AuditAction = "employee_created"
	AuditHolidayAdded     AuditAction = "holiday_added"
	AuditHolidayUpdated   AuditAction = "holiday_updated"
	AuditHolidayDeleted   AuditAction = "holiday_deleted"
)

type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	EmployeeID EntityID
	RequestID  string
	Payload    map[string]any
}
