package timeoff_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/sqlite"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

func date(year int, month time.Month, day int) generic.Date {
	return generic.NewDate(year, month, day)
}

// storeFactories runs every service test against both stores.
var storeFactories = map[string]func(t *testing.T) timeoff.TxStore{
	"memory": func(t *testing.T) timeoff.TxStore {
		return memory.New()
	},
	"sqlite": func(t *testing.T) timeoff.TxStore {
		store, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, store timeoff.TxStore)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

type fixture struct {
	store    timeoff.TxStore
	svc      *timeoff.RequestService
	dir      *timeoff.Directory
	employee timeoff.Actor // EMPLOYEE emp-1
	peer     timeoff.Actor // EMPLOYEE emp-2
	boss     timeoff.Actor // BOSS boss-1
	boss2    timeoff.Actor // BOSS boss-2
	admin    timeoff.Actor // ADMIN admin-1
}

func newFixture(t *testing.T, store timeoff.TxStore) *fixture {
	t.Helper()
	ctx := context.Background()

	people := []timeoff.Employee{
		{ID: "emp-1", Name: "Ana", Role: timeoff.RoleEmployee, RemainingDays: 15},
		{ID: "emp-2", Name: "Luis", Role: timeoff.RoleEmployee, RemainingDays: 15},
		{ID: "boss-1", Name: "Marta", Role: timeoff.RoleBoss, RemainingDays: 15},
		{ID: "boss-2", Name: "Jorge", Role: timeoff.RoleBoss, RemainingDays: 15},
		{ID: "admin-1", Name: "Root", Role: timeoff.RoleAdmin, RemainingDays: 15},
		{ID: "new-1", Name: "Nuevo", Role: timeoff.RoleUnassigned, RemainingDays: 15},
	}
	for _, p := range people {
		p.CreatedAt = fixedNow
		require.NoError(t, store.CreateEmployee(ctx, p))
	}

	logger := zaptest.NewLogger(t)
	cfg := timeoff.DefaultServiceConfig()
	cfg.RetryBackoff = time.Millisecond
	svc := timeoff.NewRequestService(store, cfg, logger)
	svc.Now = func() time.Time { return fixedNow }

	dir := timeoff.NewDirectory(store, logger)
	dir.Now = func() time.Time { return fixedNow }

	return &fixture{
		store:    store,
		svc:      svc,
		dir:      dir,
		employee: timeoff.Actor{ID: "emp-1", Role: timeoff.RoleEmployee},
		peer:     timeoff.Actor{ID: "emp-2", Role: timeoff.RoleEmployee},
		boss:     timeoff.Actor{ID: "boss-1", Role: timeoff.RoleBoss},
		boss2:    timeoff.Actor{ID: "boss-2", Role: timeoff.RoleBoss},
		admin:    timeoff.Actor{ID: "admin-1", Role: timeoff.RoleAdmin},
	}
}

func (f *fixture) setBalance(t *testing.T, id generic.EntityID, days int) {
	t.Helper()
	current, err := f.store.Balance(context.Background(), id)
	require.NoError(t, err)
	require.GreaterOrEqual(t, current, days)
	_, err = f.store.DebitBalance(context.Background(), id, current-days)
	require.NoError(t, err)
}

// submit files a request for actor over [start, end].
func (f *fixture) submit(t *testing.T, actor timeoff.Actor, start, end generic.Date) timeoff.LeaveRequest {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), actor, timeoff.SubmitInput{
		EmployeeID: actor.ID,
		Start:      start,
		End:        end,
	})
	require.NoError(t, err)
	return res.Request
}

func (f *fixture) balance(t *testing.T, id generic.EntityID) int {
	t.Helper()
	n, err := f.store.Balance(context.Background(), id)
	require.NoError(t, err)
	return n
}

// 2024-01-08 is a Monday.
var (
	mon = date(2024, time.January, 8)
	wed = date(2024, time.January, 10)
	fri = date(2024, time.January, 12)
	sat = date(2024, time.January, 13)
	sun = date(2024, time.January, 14)
)

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_ComputesChargeableDaysWithHolidays(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: a holiday on Wednesday
		// WHEN: emp-1 requests Monday to Friday
		// THEN: 4 chargeable days, Pending, balance untouched

		f := newFixture(t, store)
		ctx := context.Background()
		_, err := f.dir.AddHoliday(ctx, f.admin, wed, "Founders Day")
		require.NoError(t, err)

		res, err := f.svc.Submit(ctx, f.employee, timeoff.SubmitInput{
			EmployeeID: "emp-1",
			Start:      mon,
			End:        fri,
			Comment:    "  family trip  ",
		})
		require.NoError(t, err)

		assert.Equal(t, 4, res.Request.ChargeableDays)
		assert.Equal(t, timeoff.StatusPending, res.Request.Status)
		assert.Equal(t, "family trip", res.Request.Comments)
		assert.Equal(t, 15, res.Balance)
		assert.False(t, res.ExceedsBalance)
		assert.Equal(t, 15, f.balance(t, "emp-1"))

		stored, err := store.GetRequest(ctx, res.Request.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Request.ID, stored.ID)
		assert.Equal(t, mon, stored.Start)
		assert.Equal(t, fri, stored.End)
		assert.Equal(t, 4, stored.ChargeableDays)
		assert.Nil(t, stored.DecidedAt)

		empID := generic.EntityID("emp-1")
		audit, err := store.QueryAudit(ctx, generic.AuditFilter{
			EmployeeID: &empID,
			Actions:    []generic.AuditAction{generic.AuditRequestSubmitted},
		})
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, res.Request.ID, audit[0].RequestID)
	})
}

func TestSubmit_ExceedingBalanceIsOnlyFlagged(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: 15 days
		// WHEN: requesting four working weeks (20 days)
		// THEN: accepted, flagged as exceeding

		f := newFixture(t, store)
		res, err := f.svc.Submit(context.Background(), f.employee, timeoff.SubmitInput{
			EmployeeID: "emp-1",
			Start:      mon,
			End:        mon.AddDays(25),
		})
		require.NoError(t, err)
		assert.Equal(t, 20, res.Request.ChargeableDays)
		assert.True(t, res.ExceedsBalance)
		assert.Equal(t, timeoff.StatusPending, res.Request.Status)
	})
}

func TestSubmit_WeekendOnlyIsZeroDays(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		req := f.submit(t, f.employee, sat, sun)
		assert.Equal(t, 0, req.ChargeableDays)
	})
}

func TestSubmit_Rejections(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()

		t.Run("end before start", func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.employee, timeoff.SubmitInput{EmployeeID: "emp-1", Start: fri, End: mon})
			assert.ErrorIs(t, err, generic.ErrInvalidRange)
		})

		t.Run("for someone else", func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.boss, timeoff.SubmitInput{EmployeeID: "emp-1", Start: mon, End: fri})
			assert.ErrorIs(t, err, generic.ErrForbidden)
		})

		t.Run("admin may not submit", func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.admin, timeoff.SubmitInput{EmployeeID: "admin-1", Start: mon, End: fri})
			assert.ErrorIs(t, err, generic.ErrForbidden)
		})

		t.Run("unassigned may not submit", func(t *testing.T) {
			actor := timeoff.Actor{ID: "new-1", Role: timeoff.RoleUnassigned}
			_, err := f.svc.Submit(ctx, actor, timeoff.SubmitInput{EmployeeID: "new-1", Start: mon, End: fri})
			assert.ErrorIs(t, err, generic.ErrForbidden)
		})

		t.Run("unknown employee", func(t *testing.T) {
			ghost := timeoff.Actor{ID: "ghost", Role: timeoff.RoleEmployee}
			_, err := f.svc.Submit(ctx, ghost, timeoff.SubmitInput{EmployeeID: "ghost", Start: mon, End: fri})
			assert.True(t, generic.IsNotFound(err))
		})

		t.Run("comment too long", func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.employee, timeoff.SubmitInput{
				EmployeeID: "emp-1", Start: mon, End: fri,
				Comment: strings.Repeat("x", timeoff.MaxCommentLength+1),
			})
			assert.ErrorIs(t, err, generic.ErrInvalidComment)
		})

		t.Run("comment at the limit is fine", func(t *testing.T) {
			_, err := f.svc.Submit(ctx, f.employee, timeoff.SubmitInput{
				EmployeeID: "emp-1", Start: mon, End: fri,
				Comment: strings.Repeat("ñ", timeoff.MaxCommentLength),
			})
			assert.NoError(t, err)
		})

		pending, err := store.ListRequestsByEmployee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Len(t, pending, 1, "only the valid submission was recorded")
	})
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

func TestApprove_DebitsBalanceAndAppendsComment(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: a pending Monday-Friday request with a comment
		// WHEN: the boss approves with a comment
		// THEN: 15 -> 10, Approved, both comments kept, ledger entry written

		f := newFixture(t, store)
		ctx := context.Background()

		res, err := f.svc.Submit(ctx, f.employee, timeoff.SubmitInput{
			EmployeeID: "emp-1", Start: mon, End: fri, Comment: "beach",
		})
		require.NoError(t, err)

		approved, err := f.svc.Approve(ctx, res.Request.ID, f.boss, "enjoy")
		require.NoError(t, err)

		assert.Equal(t, timeoff.StatusApproved, approved.Status)
		assert.Equal(t, "beach\nenjoy", approved.Comments)
		assert.Equal(t, generic.EntityID("boss-1"), approved.DecidedBy)
		require.NotNil(t, approved.DecidedAt)
		assert.True(t, approved.DecidedAt.Equal(fixedNow))
		assert.Equal(t, 10, f.balance(t, "emp-1"))

		stored, err := store.GetRequest(ctx, res.Request.ID)
		require.NoError(t, err)
		assert.Equal(t, timeoff.StatusApproved, stored.Status)
		assert.Equal(t, "beach\nenjoy", stored.Comments)

		entries, err := f.svc.LedgerEntries(ctx, f.employee, "emp-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, -5, entries[0].Delta)
		assert.Equal(t, 10, entries[0].BalanceAfter)
		assert.Equal(t, res.Request.ID, entries[0].RequestID)
		assert.Equal(t, "boss-1", entries[0].CreatedBy)
	})
}

func TestApprove_Twice_DebitsOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()
		req := f.submit(t, f.employee, mon, fri)

		_, err := f.svc.Approve(ctx, req.ID, f.boss, "")
		require.NoError(t, err)

		_, err = f.svc.Approve(ctx, req.ID, f.boss2, "")
		require.ErrorIs(t, err, generic.ErrAlreadyFinalized)

		var finalized *generic.AlreadyFinalizedError
		require.ErrorAs(t, err, &finalized)
		assert.Equal(t, string(timeoff.StatusApproved), finalized.Status)

		assert.Equal(t, 10, f.balance(t, "emp-1"))
	})
}

func TestReject_LeavesBalanceAndIsTerminal(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()
		req := f.submit(t, f.employee, mon, fri)

		rejected, err := f.svc.Reject(ctx, req.ID, f.boss, "busy week")
		require.NoError(t, err)
		assert.Equal(t, timeoff.StatusRejected, rejected.Status)
		assert.Equal(t, "busy week", rejected.Comments)
		assert.Equal(t, 15, f.balance(t, "emp-1"))

		_, err = f.svc.Approve(ctx, req.ID, f.boss, "")
		assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)
		_, err = f.svc.Reject(ctx, req.ID, f.boss, "")
		assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)
		assert.Equal(t, 15, f.balance(t, "emp-1"))
	})
}

func TestApprove_InsufficientBalance(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: 3 days left, 5-day request
		// WHEN: approving
		// THEN: InsufficientBalance, request stays Pending, balance stays 3

		f := newFixture(t, store)
		ctx := context.Background()
		f.setBalance(t, "emp-1", 3)
		req := f.submit(t, f.employee, mon, fri)

		_, err := f.svc.Approve(ctx, req.ID, f.boss, "")
		require.ErrorIs(t, err, generic.ErrInsufficientBalance)

		var balErr *generic.InsufficientBalanceError
		require.ErrorAs(t, err, &balErr)
		assert.Equal(t, 3, balErr.Available)
		assert.Equal(t, 5, balErr.Requested)

		stored, err := store.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, timeoff.StatusPending, stored.Status)
		assert.Empty(t, stored.Comments)
		assert.Equal(t, 3, f.balance(t, "emp-1"))

		entries, err := store.LedgerEntries(ctx, "emp-1")
		require.NoError(t, err)
		assert.Empty(t, entries)

		// still decidable: rejection works
		_, err = f.svc.Reject(ctx, req.ID, f.boss, "not enough days")
		assert.NoError(t, err)
	})
}

func TestApprove_ZeroDayRequest(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		req := f.submit(t, f.employee, sat, sun)

		approved, err := f.svc.Approve(context.Background(), req.ID, f.boss, "")
		require.NoError(t, err)
		assert.Equal(t, timeoff.StatusApproved, approved.Status)
		assert.Equal(t, 15, f.balance(t, "emp-1"))
	})
}

func TestDecide_Authorization(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()

		employeeReq := f.submit(t, f.employee, mon, fri)
		bossReq := f.submit(t, f.boss, mon, fri)

		tests := []struct {
			name      string
			requestID string
			actor     timeoff.Actor
			approve   bool
		}{
			{"boss approves boss", bossReq.ID, f.boss2, true},
			{"boss approves own", bossReq.ID, f.boss, true},
			{"boss rejects own", bossReq.ID, f.boss, false},
			{"admin approves employee", employeeReq.ID, f.admin, true},
			{"employee approves peer", employeeReq.ID, f.peer, true},
			{"employee rejects own", employeeReq.ID, f.employee, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var err error
				if tt.approve {
					_, err = f.svc.Approve(ctx, tt.requestID, tt.actor, "")
				} else {
					_, err = f.svc.Reject(ctx, tt.requestID, tt.actor, "")
				}
				assert.ErrorIs(t, err, generic.ErrForbidden)
			})
		}

		assert.Equal(t, 15, f.balance(t, "emp-1"))
		assert.Equal(t, 15, f.balance(t, "boss-1"))

		// the permitted pairs still work afterwards
		_, err := f.svc.Approve(ctx, bossReq.ID, f.admin, "")
		require.NoError(t, err)
		assert.Equal(t, 10, f.balance(t, "boss-1"))

		_, err = f.svc.Reject(ctx, employeeReq.ID, f.boss, "")
		require.NoError(t, err)
	})
}

func TestDecide_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()

		_, err := f.svc.Approve(ctx, "missing", f.boss, "")
		assert.True(t, generic.IsNotFound(err))

		req := f.submit(t, f.employee, mon, fri)
		_, err = f.svc.Approve(ctx, req.ID, f.boss, strings.Repeat("x", timeoff.MaxCommentLength+1))
		assert.ErrorIs(t, err, generic.ErrInvalidComment)
		assert.Equal(t, 15, f.balance(t, "emp-1"))
	})
}

func TestDecide_LookupErrorsBeforeCommentValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: an over-long comment
		// WHEN: deciding a missing, finalized or forbidden request
		// THEN: the lookup or authorization error is returned, not ErrInvalidComment

		f := newFixture(t, store)
		ctx := context.Background()
		long := strings.Repeat("x", timeoff.MaxCommentLength+1)

		_, err := f.svc.Reject(ctx, "missing", f.boss, long)
		assert.True(t, generic.IsNotFound(err))
		assert.NotErrorIs(t, err, generic.ErrInvalidComment)

		req := f.submit(t, f.employee, mon, fri)
		_, err = f.svc.Approve(ctx, req.ID, f.peer, long)
		assert.ErrorIs(t, err, generic.ErrForbidden)

		_, err = f.svc.Reject(ctx, req.ID, f.boss, "")
		require.NoError(t, err)
		_, err = f.svc.Approve(ctx, req.ID, f.boss, long)
		var finalized *generic.AlreadyFinalizedError
		assert.ErrorAs(t, err, &finalized)
	})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestApprove_ConcurrentSameRequest_ExactlyOneWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: one pending 5-day request
		// WHEN: 20 goroutines approve it at once, from two bosses
		// THEN: one success, every other call AlreadyFinalized, one debit

		f := newFixture(t, store)
		ctx := context.Background()
		req := f.submit(t, f.employee, mon, fri)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			actor := f.boss
			if i%2 == 1 {
				actor = f.boss2
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Approve(ctx, req.ID, actor, "ok")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		successes := 0
		for err := range errs {
			if err == nil {
				successes++
				continue
			}
			assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 10, f.balance(t, "emp-1"))

		entries, err := store.LedgerEntries(ctx, "emp-1")
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		stored, err := store.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, "ok", stored.Comments)
	})
}

func TestApprove_ConcurrentRequestsSameEmployee_NeverOverdraw(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		// GIVEN: 15 days and four pending 5-day requests
		// WHEN: all four are approved concurrently
		// THEN: three succeed, one is InsufficientBalance, balance ends at 0

		f := newFixture(t, store)
		ctx := context.Background()

		var ids []string
		for week := 0; week < 4; week++ {
			start := mon.AddDays(7 * week)
			ids = append(ids, f.submit(t, f.employee, start, start.AddDays(4)).ID)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(ids))
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Approve(ctx, id, f.boss, "")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		approved, insufficient := 0, 0
		for err := range errs {
			switch {
			case err == nil:
				approved++
			case assert.ErrorIs(t, err, generic.ErrInsufficientBalance):
				insufficient++
			}
		}
		assert.Equal(t, 3, approved)
		assert.Equal(t, 1, insufficient)
		assert.Equal(t, 0, f.balance(t, "emp-1"))
	})
}

// flakyStore fails the first n transactions with contention.
type flakyStore struct {
	timeoff.TxStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(timeoff.Store) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return &generic.TransientError{Key: "employee:emp-1"}
	}
	return s.TxStore.WithTx(ctx, fn)
}

func TestApprove_RetriesTransientFailures(t *testing.T) {
	// GIVEN: a store whose first two approval transactions hit contention
	// WHEN: approving with MaxRetries = 2
	// THEN: the third attempt commits, and the debit happens once

	base := memory.New()
	f := newFixture(t, base)
	req := f.submit(t, f.employee, mon, fri)

	flaky := &flakyStore{TxStore: base, failures: 2}
	f.svc.Store = flaky

	approved, err := f.svc.Approve(context.Background(), req.ID, f.boss, "")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, approved.Status)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, 10, f.balance(t, "emp-1"))
}

func TestApprove_TransientSurfacesAfterRetries(t *testing.T) {
	base := memory.New()
	f := newFixture(t, base)
	req := f.submit(t, f.employee, mon, fri)

	flaky := &flakyStore{TxStore: base, failures: 10}
	f.svc.Store = flaky
	f.svc.MaxRetries = 1

	_, err := f.svc.Approve(context.Background(), req.ID, f.boss, "")
	require.Error(t, err)
	assert.True(t, generic.IsRetryable(err))
	assert.Equal(t, 2, flaky.calls)

	stored, err := base.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, stored.Status)
	assert.Equal(t, 15, f.balance(t, "emp-1"))
}

func TestApprove_LockTimeoutIsTransient(t *testing.T) {
	// GIVEN: the request lock held elsewhere
	// WHEN: approving with a short lock timeout and no retries
	// THEN: ErrTransient and no effect

	f := newFixture(t, memory.New())
	req := f.submit(t, f.employee, mon, fri)

	f.svc.Locks = generic.NewKeyLocker(10 * time.Millisecond)
	f.svc.MaxRetries = 0
	unlock, err := f.svc.Locks.Lock(context.Background(), "request:"+req.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = f.svc.Approve(context.Background(), req.ID, f.boss, "")
	assert.ErrorIs(t, err, generic.ErrTransient)
	assert.Equal(t, 15, f.balance(t, "emp-1"))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestListPending_OnlyDecidableRequests(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()

		empReq := f.submit(t, f.employee, mon, fri)
		peerReq := f.submit(t, f.peer, mon, fri)
		bossReq := f.submit(t, f.boss, mon, fri)
		_, err := f.svc.Reject(ctx, peerReq.ID, f.boss, "")
		require.NoError(t, err)

		forBoss, err := f.svc.ListPending(ctx, f.boss2)
		require.NoError(t, err)
		require.Len(t, forBoss, 1)
		assert.Equal(t, empReq.ID, forBoss[0].ID)

		forAdmin, err := f.svc.ListPending(ctx, f.admin)
		require.NoError(t, err)
		require.Len(t, forAdmin, 1)
		assert.Equal(t, bossReq.ID, forAdmin[0].ID)

		// own request is never listed as decidable
		forOwner, err := f.svc.ListPending(ctx, f.boss)
		require.NoError(t, err)
		require.Len(t, forOwner, 1)
		assert.Equal(t, empReq.ID, forOwner[0].ID)

		forEmployee, err := f.svc.ListPending(ctx, f.employee)
		require.NoError(t, err)
		assert.Empty(t, forEmployee)
	})
}

func TestQueries_Visibility(t *testing.T) {
	forEachStore(t, func(t *testing.T, store timeoff.TxStore) {
		f := newFixture(t, store)
		ctx := context.Background()
		req := f.submit(t, f.employee, mon, fri)

		n, err := f.svc.Balance(ctx, f.employee, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, 15, n)

		_, err = f.svc.Balance(ctx, f.boss, "emp-1")
		assert.NoError(t, err)

		_, err = f.svc.Balance(ctx, f.peer, "emp-1")
		assert.ErrorIs(t, err, generic.ErrForbidden)

		got, err := f.svc.Get(ctx, f.admin, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)

		_, err = f.svc.Get(ctx, f.peer, req.ID)
		assert.ErrorIs(t, err, generic.ErrForbidden)

		list, err := f.svc.ListForEmployee(ctx, f.employee, "emp-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = f.svc.ListForEmployee(ctx, f.boss, "boss-2")
		assert.ErrorIs(t, err, generic.ErrForbidden)

		_, err = f.svc.Balance(ctx, f.admin, "ghost")
		assert.True(t, generic.IsNotFound(err))
	})
}
