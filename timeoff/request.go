/*
request.go - Leave request lifecycle

PURPOSE:
  Submission, approval and rejection of leave requests.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Submit ──▶ holidays in range ──▶ ChargeableDays ──▶ Pending      │
  │                                                       │          │
  │                          ┌────────────────────────────┤          │
  │                          ▼                            ▼          │
  │                    ┌──────────┐                 ┌──────────┐     │
  │   Approve ───────▶ │ Approved │ ◀── debit       │ Rejected │     │
  │                    └──────────┘                 └──────────┘     │
  │                                                       ▲          │
  │   Reject ─────────────────────────────────────────────┘          │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

  Approved and Rejected are terminal. Approving twice fails with
  ErrAlreadyFinalized; it never debits twice.

BALANCE:
  Submission does not check or touch the balance; SubmitResult only flags
  requests that would currently exceed it. The binding check is at
  approval, inside the same store transaction as the debit.

CONCURRENCY:
  Approve holds the request lock and then the employee lock (always in that
  order); Reject holds only the request lock. Locks wait at most the
  configured timeout and then fail with ErrTransient. Transient failures are
  retried MaxRetries times; each attempt starts over from the Pending check.

SEE ALSO:
  - policies.go: Authorize
  - store.go: TransitionRequest, WithTx
  - generic/ledger.go: Debit
*/
package timeoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// REQUEST SERVICE
// =============================================================================

type ServiceConfig struct {
	LockTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		LockTimeout:  generic.DefaultLockTimeout,
		MaxRetries:   2,
		RetryBackoff: 50 * time.Millisecond,
	}
}

type RequestService struct {
	Store        TxStore
	Locks        *generic.KeyLocker
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time

	logger *zap.Logger
}

func NewRequestService(store TxStore, cfg ServiceConfig, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		Store:        store,
		Locks:        generic.NewKeyLocker(cfg.LockTimeout),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Now:          time.Now,
		logger:       logger.Named("timeoff.request"),
	}
}

type SubmitInput struct {
	EmployeeID generic.EntityID
	Start      generic.Date
	End        generic.Date
	Comment    string
}

type SubmitResult struct {
	Request LeaveRequest

	// Balance at submission time. Informational only.
	Balance        int
	ExceedsBalance bool
}

// Submit records a Pending request with its chargeable days computed from
// the holiday calendar. Zero-day requests are accepted.
func (rs *RequestService) Submit(ctx context.Context, actor Actor, in SubmitInput) (*SubmitResult, error) {
	log := rs.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.String("employee_id", string(in.EmployeeID)),
		zap.Stringer("start", in.Start),
		zap.Stringer("end", in.End),
	)
	log.Debug("submit leave requested")

	if err := validateComment(in.Comment); err != nil {
		return nil, err
	}
	if in.End.Before(in.Start) {
		return nil, &generic.InvalidRangeError{Start: in.Start, End: in.End}
	}

	employee, err := rs.Store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, *employee, ActionSubmit); err != nil {
		log.Warn("submit leave denied", zap.Error(err))
		return nil, err
	}

	holidays, err := rs.Store.ListHolidaysInRange(ctx, in.Start, in.End)
	if err != nil {
		log.Error("submit leave holiday lookup failed", zap.Error(err))
		return nil, fmt.Errorf("failed to load holidays: %w", err)
	}
	days, err := generic.ChargeableDays(in.Start, in.End, generic.NewHolidaySet(holidays))
	if err != nil {
		return nil, err
	}

	now := rs.now()
	request := LeaveRequest{
		ID:             uuid.NewString(),
		EmployeeID:     employee.ID,
		Start:          in.Start,
		End:            in.End,
		ChargeableDays: days,
		Comments:       strings.TrimSpace(in.Comment),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = rs.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateRequest(ctx, request); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  now,
			ActorID:    string(actor.ID),
			Action:     generic.AuditRequestSubmitted,
			EmployeeID: employee.ID,
			RequestID:  request.ID,
			Payload: map[string]any{
				"start":           request.Start.String(),
				"end":             request.End.String(),
				"chargeable_days": days,
			},
		})
	})
	if err != nil {
		log.Error("submit leave persist failed", zap.Error(err))
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	log.Info("submit leave success",
		zap.String("request_id", request.ID),
		zap.Int("chargeable_days", days),
	)

	return &SubmitResult{
		Request:        request,
		Balance:        employee.RemainingDays,
		ExceedsBalance: days > employee.RemainingDays,
	}, nil
}

// Approve moves a Pending request to Approved and debits the requester's
// balance by its chargeable days, atomically.
func (rs *RequestService) Approve(ctx context.Context, requestID string, actor Actor, comment string) (*LeaveRequest, error) {
	return rs.withRetry(ctx, requestID, func() (*LeaveRequest, error) {
		return rs.decide(ctx, requestID, actor, comment, StatusApproved)
	})
}

// Reject moves a Pending request to Rejected. The balance is untouched.
func (rs *RequestService) Reject(ctx context.Context, requestID string, actor Actor, comment string) (*LeaveRequest, error) {
	return rs.withRetry(ctx, requestID, func() (*LeaveRequest, error) {
		return rs.decide(ctx, requestID, actor, comment, StatusRejected)
	})
}

func (rs *RequestService) decide(ctx context.Context, requestID string, actor Actor, comment string, target RequestStatus) (*LeaveRequest, error) {
	action := ActionReject
	auditAction := generic.AuditRequestRejected
	if target == StatusApproved {
		action = ActionApprove
		auditAction = generic.AuditRequestApproved
	}

	log := rs.logger.With(
		zap.String("request_id", requestID),
		zap.String("actor_id", string(actor.ID)),
		zap.String("action", string(action)),
	)
	log.Debug("decide leave requested")

	unlock, err := rs.Locks.Lock(ctx, "request:"+requestID)
	if err != nil {
		log.Warn("decide leave request lock unavailable", zap.Error(err))
		return nil, err
	}
	defer unlock()

	request, err := rs.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, &generic.AlreadyFinalizedError{RequestID: request.ID, Status: string(request.Status)}
	}

	requester, err := rs.Store.GetEmployee(ctx, request.EmployeeID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, *requester, action); err != nil {
		log.Warn("decide leave denied", zap.Error(err))
		return nil, err
	}
	// Lookup and authorization errors take precedence over comment errors.
	if err := validateComment(comment); err != nil {
		return nil, err
	}

	if target == StatusApproved {
		unlockEmployee, err := rs.Locks.Lock(ctx, "employee:"+string(request.EmployeeID))
		if err != nil {
			log.Warn("decide leave employee lock unavailable", zap.Error(err))
			return nil, err
		}
		defer unlockEmployee()
	}

	now := rs.now()
	next := request.decide(target, actor.ID, comment, now)
	newBalance := -1

	err = rs.Store.WithTx(ctx, func(s Store) error {
		if target == StatusApproved {
			ledger := generic.NewLedger(s)
			ledger.Now = rs.now

			ok, err := ledger.HasAtLeast(ctx, request.EmployeeID, request.ChargeableDays)
			if err != nil {
				return err
			}
			if !ok {
				available, err := ledger.Balance(ctx, request.EmployeeID)
				if err != nil {
					return err
				}
				return &generic.InsufficientBalanceError{
					EmployeeID: request.EmployeeID,
					Available:  available,
					Requested:  request.ChargeableDays,
				}
			}

			newBalance, err = ledger.Debit(ctx, request.EmployeeID, request.ChargeableDays, generic.DebitRef{
				RequestID: request.ID,
				ActorID:   string(actor.ID),
				Reason:    fmt.Sprintf("leave %s to %s approved", request.Start, request.End),
			})
			if err != nil {
				return err
			}
		}

		if err := s.TransitionRequest(ctx, next, StatusPending); err != nil {
			return err
		}

		payload := map[string]any{"chargeable_days": request.ChargeableDays}
		if newBalance >= 0 {
			payload["balance_after"] = newBalance
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  now,
			ActorID:    string(actor.ID),
			Action:     auditAction,
			EmployeeID: request.EmployeeID,
			RequestID:  request.ID,
			Payload:    payload,
		})
	})
	if err != nil {
		if generic.IsClientError(err) || generic.IsRetryable(err) {
			log.Warn("decide leave refused", zap.Error(err))
		} else {
			log.Error("decide leave persist failed", zap.Error(err))
		}
		return nil, err
	}

	log.Info("decide leave success",
		zap.String("status", string(next.Status)),
		zap.Int("chargeable_days", request.ChargeableDays),
	)
	return &next, nil
}

// withRetry re-runs fn while it fails with ErrTransient.
func (rs *RequestService) withRetry(ctx context.Context, requestID string, fn func() (*LeaveRequest, error)) (*LeaveRequest, error) {
	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil || !generic.IsRetryable(err) || attempt >= rs.MaxRetries {
			return result, err
		}

		rs.logger.Debug("retrying after transient failure",
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rs.RetryBackoff * time.Duration(attempt+1)):
		}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a request the actor may see.
func (rs *RequestService) Get(ctx context.Context, actor Actor, requestID string) (*LeaveRequest, error) {
	request, err := rs.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := rs.authorizeView(ctx, actor, request.EmployeeID); err != nil {
		return nil, err
	}
	return request, nil
}

// ListForEmployee returns an employee's requests, newest first.
func (rs *RequestService) ListForEmployee(ctx context.Context, actor Actor, employeeID generic.EntityID) ([]LeaveRequest, error) {
	if err := rs.authorizeView(ctx, actor, employeeID); err != nil {
		return nil, err
	}
	return rs.Store.ListRequestsByEmployee(ctx, employeeID)
}

// ListPending returns the pending requests the actor is allowed to decide.
func (rs *RequestService) ListPending(ctx context.Context, actor Actor) ([]LeaveRequest, error) {
	pending, err := rs.Store.ListRequestsByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}

	requesters := make(map[generic.EntityID]*Employee)
	decidable := make([]LeaveRequest, 0, len(pending))
	for _, r := range pending {
		requester, ok := requesters[r.EmployeeID]
		if !ok {
			requester, err = rs.Store.GetEmployee(ctx, r.EmployeeID)
			if err != nil && !generic.IsNotFound(err) {
				return nil, err
			}
			requesters[r.EmployeeID] = requester
		}
		if requester == nil {
			continue
		}
		if Authorize(actor, *requester, ActionApprove) == nil {
			decidable = append(decidable, r)
		}
	}
	return decidable, nil
}

// Balance returns the employee's remaining days.
func (rs *RequestService) Balance(ctx context.Context, actor Actor, employeeID generic.EntityID) (int, error) {
	if err := rs.authorizeView(ctx, actor, employeeID); err != nil {
		return 0, err
	}
	return generic.NewLedger(rs.Store).Balance(ctx, employeeID)
}

// LedgerEntries returns the employee's balance history.
func (rs *RequestService) LedgerEntries(ctx context.Context, actor Actor, employeeID generic.EntityID) ([]generic.LedgerEntry, error) {
	if err := rs.authorizeView(ctx, actor, employeeID); err != nil {
		return nil, err
	}
	return generic.NewLedger(rs.Store).Entries(ctx, employeeID)
}

func (rs *RequestService) authorizeView(ctx context.Context, actor Actor, employeeID generic.EntityID) error {
	target, err := rs.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if !CanView(actor, *target) {
		return &generic.ForbiddenError{
			ActorID: string(actor.ID),
			Action:  "view",
			Reason:  generic.ReasonRolePair,
			Detail:  fmt.Sprintf("role %s may not view employee %s", actor.Role, employeeID),
		}
	}
	return nil
}

func (rs *RequestService) now() time.Time {
	if rs.Now == nil {
		return time.Now().UTC()
	}
	return rs.Now().UTC()
}
