/*
ledger.go - Per-employee balance counter and its debit operation

PURPOSE:
  The Ledger owns the remaining-days counter of every employee. It has
  exactly one mutator, Debit, which is only ever called when a leave request
  is approved. Submission and rejection never touch it.

CRITICAL INVARIANTS:
  1. NEVER NEGATIVE: a debit larger than the balance fails and writes nothing
  2. ONE MUTATOR: Debit is the only write to the counter
  3. AUDITABLE: every debit appends a LedgerEntry with the balance after it

ATOMICITY:
  BalanceStore.DebitBalance must be a single conditional read-modify-write
  ("subtract n where balance >= n"). The ledger does not hold its own lock;
  serialization per employee is the store's job, and the request service
  additionally takes a per-employee KeyLocker lock around approval.

  When the ledger is built on a store handed out by TxStore.WithTx, the
  debit and its entry commit together with whatever else the transaction
  writes (the request status flip on approval).

EXAMPLE:
  ledger := generic.NewLedger(store)
  ok, _ := ledger.HasAtLeast(ctx, "emp-1", 5)
  newBalance, err := ledger.Debit(ctx, "emp-1", 5, generic.DebitRef{RequestID: "req-1"})

SEE ALSO:
  - store.go: BalanceStore
  - store/memory, store/sqlite: BalanceStore implementations
  - timeoff/request.go: the only caller of Debit
*/
package generic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger interface {
	Balance(ctx context.Context, id EntityID) (int, error)
	HasAtLeast(ctx context.Context, id EntityID, amount int) (bool, error)
	Debit(ctx context.Context, id EntityID, amount int, ref DebitRef) (int, error)
	Entries(ctx context.Context, id EntityID) ([]LedgerEntry, error)
}

// DebitRef describes why a debit happened.
type DebitRef struct {
	RequestID string
	ActorID   string
	Reason    string
}

type DefaultLedger struct {
	Store BalanceStore
	Now   func() time.Time
}

func NewLedger(store BalanceStore) *DefaultLedger {
	return &DefaultLedger{Store: store, Now: time.Now}
}

func (l *DefaultLedger) Balance(ctx context.Context, id EntityID) (int, error) {
	return l.Store.Balance(ctx, id)
}

func (l *DefaultLedger) HasAtLeast(ctx context.Context, id EntityID, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	balance, err := l.Store.Balance(ctx, id)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

func (l *DefaultLedger) Debit(ctx context.Context, id EntityID, amount int, ref DebitRef) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	newBalance, err := l.Store.DebitBalance(ctx, id, amount)
	if err != nil {
		return 0, err
	}

	entry := LedgerEntry{
		ID:           uuid.NewString(),
		EmployeeID:   id,
		RequestID:    ref.RequestID,
		Type:         EntryDebit,
		Delta:        -amount,
		BalanceAfter: newBalance,
		Reason:       ref.Reason,
		CreatedBy:    ref.ActorID,
		CreatedAt:    l.Now().UTC(),
	}
	if err := l.Store.AppendLedgerEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return newBalance, nil
}

func (l *DefaultLedger) Entries(ctx context.Context, id EntityID) ([]LedgerEntry, error) {
	return l.Store.LedgerEntries(ctx, id)
}
