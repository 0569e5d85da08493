/*
store.go - Persistence contracts the generic core depends on

PURPOSE:
  Defines the interface between the domain-agnostic core and the database.
  Implementations live in store/memory and store/sqlite; both also satisfy
  the richer timeoff.Store.

KEY INTERFACES:
  BalanceStore:    Remaining-days counter plus its append-only ledger
  AuditLog:        Append-only record of who did what when
  HolidayCalendar: Read side of the holiday collaborator

CONDITIONAL DEBIT:
  DebitBalance is the only write to the counter and must be a single
  guarded read-modify-write. Checking Balance first and then writing is
  not enough under concurrency; the guard has to live in the write itself:

    UPDATE employees SET remaining_days = remaining_days - n
     WHERE id = ? AND remaining_days >= n

APPEND-ONLY:
  Ledger entries and audit entries have no Update or Delete.

SEE ALSO:
  - ledger.go: Ledger built on BalanceStore
  - timeoff/store.go: Full store contract including requests
*/
package generic

import "context"

// =============================================================================
// BALANCE STORE
// =============================================================================

type BalanceStore interface {
	// Balance returns the remaining days. Missing employee: ErrNotFound.
	Balance(ctx context.Context, id EntityID) (int, error)

	// DebitBalance atomically subtracts amount if the balance covers it and
	// returns the new balance. Otherwise it returns *InsufficientBalanceError
	// and leaves the balance unchanged.
	DebitBalance(ctx context.Context, id EntityID, amount int) (int, error)

	AppendLedgerEntry(ctx context.Context, entry LedgerEntry) error
	LedgerEntries(ctx context.Context, id EntityID) ([]LedgerEntry, error)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EmployeeID *EntityID
	ActorID    *string
	Actions    []AuditAction
}

// Matches reports whether e passes the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if a == e.Action {
			return true
		}
	}
	return false
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar is the read side of the holiday collaborator.
type HolidayCalendar interface {
	// ListHolidaysInRange returns holidays in [from, to], ordered by date.
	ListHolidaysInRange(ctx context.Context, from, to Date) ([]Holiday, error)
}

// NoHolidays is a calendar without holidays.
type NoHolidays struct{}

func (NoHolidays) ListHolidaysInRange(context.Context, Date, Date) ([]Holiday, error) {
	return nil, nil
}
