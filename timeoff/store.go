/*
store.go - Persistence contracts for the leave engine

PURPOSE:
  Defines the interface between the lifecycle logic and the database.
  Two implementations exist with identical semantics:
  - store/memory: maps behind a RWMutex, for tests and demos
  - store/sqlite: database/sql over SQLite (WAL)

CONDITIONAL WRITES:
  Requests are fetched as immutable snapshots. A transition computes the
  next snapshot and persists it with TransitionRequest, which only succeeds
  if the stored status still equals the expected previous status. A writer
  that lost the race gets *generic.AlreadyFinalizedError.

  Balance debits go through generic.BalanceStore.DebitBalance, which is the
  same kind of conditional write on the balance column.

TRANSACTIONS:
  WithTx runs fn against a Store bound to one transaction. If fn returns an
  error everything it wrote is rolled back. Approval uses this so the debit,
  its ledger entry and the status flip commit together or not at all.

SEE ALSO:
  - request.go: RequestService, the main consumer
  - generic/ledger.go: BalanceStore
*/
package timeoff

import (
	"context"
	"errors"

	"github.com/warp/leave-engine/generic"
)

var ErrEmployeeExists = errors.New("employee already exists")

// EmployeeStore is the identity collaborator: roles and existence.
type EmployeeStore interface {
	// GetEmployee returns *generic.NotFoundError when the employee is missing.
	GetEmployee(ctx context.Context, id generic.EntityID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// CreateEmployee fails with ErrEmployeeExists on a duplicate ID.
	CreateEmployee(ctx context.Context, e Employee) error
	SetRole(ctx context.Context, id generic.EntityID, role Role) error
}

// RequestStore keeps leave requests. There is no delete.
type RequestStore interface {
	CreateRequest(ctx context.Context, r LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	ListRequestsByEmployee(ctx context.Context, id generic.EntityID) ([]LeaveRequest, error)
	ListRequestsByStatus(ctx context.Context, status RequestStatus) ([]LeaveRequest, error)

	// TransitionRequest replaces the stored request with next only if its
	// status is still from.
	TransitionRequest(ctx context.Context, next LeaveRequest, from RequestStatus) error
}

// HolidayStore is the holiday-management collaborator.
type HolidayStore interface {
	generic.HolidayCalendar

	// AddHoliday fails with generic.ErrDuplicateHoliday if the date is taken.
	AddHoliday(ctx context.Context, h generic.Holiday) error

	// UpdateHoliday replaces date and name of an existing holiday. Same
	// duplicate-date rule as AddHoliday; a missing ID is *generic.NotFoundError.
	UpdateHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]generic.Holiday, error)
}

type Store interface {
	EmployeeStore
	RequestStore
	HolidayStore
	generic.BalanceStore
	generic.AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
