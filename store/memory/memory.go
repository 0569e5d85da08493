// Package memory provides an in-memory timeoff.TxStore for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps everything in maps behind a RWMutex. Values are copied in and
// out, so callers never share state with the store.
type Memory struct {
	mu sync.RWMutex
	st *state
}

var _ timeoff.TxStore = (*Memory)(nil)

func New() *Memory {
	return &Memory{st: newState()}
}

type state struct {
	employees    map[generic.EntityID]timeoff.Employee
	requests     map[string]timeoff.LeaveRequest
	holidays     map[string]generic.Holiday
	holidayDates map[generic.Date]string
	ledger       map[generic.EntityID][]generic.LedgerEntry
	audit        []generic.AuditEntry
}

func newState() *state {
	return &state{
		employees:    make(map[generic.EntityID]timeoff.Employee),
		requests:     make(map[string]timeoff.LeaveRequest),
		holidays:     make(map[string]generic.Holiday),
		holidayDates: make(map[generic.Date]string),
		ledger:       make(map[generic.EntityID][]generic.LedgerEntry),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.holidays {
		c.holidays[k] = v
	}
	for k, v := range s.holidayDates {
		c.holidayDates[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = append([]generic.LedgerEntry(nil), v...)
	}
	c.audit = append([]generic.AuditEntry(nil), s.audit...)
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn with the store locked. Writes go straight to the live maps;
// on error the state is restored from a snapshot taken before fn.
func (m *Memory) WithTx(ctx context.Context, fn func(timeoff.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) read(fn func(v *view) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&view{st: m.st})
}

func (m *Memory) write(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{st: m.st})
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) GetEmployee(ctx context.Context, id generic.EntityID) (e *timeoff.Employee, err error) {
	err = m.read(func(v *view) error { e, err = v.GetEmployee(ctx, id); return err })
	return e, err
}

func (m *Memory) ListEmployees(ctx context.Context) (out []timeoff.Employee, err error) {
	err = m.read(func(v *view) error { out, err = v.ListEmployees(ctx); return err })
	return out, err
}

func (m *Memory) CreateEmployee(ctx context.Context, e timeoff.Employee) error {
	return m.write(func(v *view) error { return v.CreateEmployee(ctx, e) })
}

func (m *Memory) SetRole(ctx context.Context, id generic.EntityID, role timeoff.Role) error {
	return m.write(func(v *view) error { return v.SetRole(ctx, id, role) })
}

func (m *Memory) CreateRequest(ctx context.Context, r timeoff.LeaveRequest) error {
	return m.write(func(v *view) error { return v.CreateRequest(ctx, r) })
}

func (m *Memory) GetRequest(ctx context.Context, id string) (r *timeoff.LeaveRequest, err error) {
	err = m.read(func(v *view) error { r, err = v.GetRequest(ctx, id); return err })
	return r, err
}

func (m *Memory) ListRequestsByEmployee(ctx context.Context, id generic.EntityID) (out []timeoff.LeaveRequest, err error) {
	err = m.read(func(v *view) error { out, err = v.ListRequestsByEmployee(ctx, id); return err })
	return out, err
}

func (m *Memory) ListRequestsByStatus(ctx context.Context, status timeoff.RequestStatus) (out []timeoff.LeaveRequest, err error) {
	err = m.read(func(v *view) error { out, err = v.ListRequestsByStatus(ctx, status); return err })
	return out, err
}

func (m *Memory) TransitionRequest(ctx context.Context, next timeoff.LeaveRequest, from timeoff.RequestStatus) error {
	return m.write(func(v *view) error { return v.TransitionRequest(ctx, next, from) })
}

func (m *Memory) ListHolidaysInRange(ctx context.Context, from, to generic.Date) (out []generic.Holiday, err error) {
	err = m.read(func(v *view) error { out, err = v.ListHolidaysInRange(ctx, from, to); return err })
	return out, err
}

func (m *Memory) AddHoliday(ctx context.Context, h generic.Holiday) error {
	return m.write(func(v *view) error { return v.AddHoliday(ctx, h) })
}

func (m *Memory) UpdateHoliday(ctx context.Context, h generic.Holiday) error {
	return m.write(func(v *view) error { return v.UpdateHoliday(ctx, h) })
}

func (m *Memory) DeleteHoliday(ctx context.Context, id string) error {
	return m.write(func(v *view) error { return v.DeleteHoliday(ctx, id) })
}

func (m *Memory) ListHolidays(ctx context.Context) (out []generic.Holiday, err error) {
	err = m.read(func(v *view) error { out, err = v.ListHolidays(ctx); return err })
	return out, err
}

func (m *Memory) Balance(ctx context.Context, id generic.EntityID) (n int, err error) {
	err = m.read(func(v *view) error { n, err = v.Balance(ctx, id); return err })
	return n, err
}

func (m *Memory) DebitBalance(ctx context.Context, id generic.EntityID, amount int) (n int, err error) {
	err = m.write(func(v *view) error { n, err = v.DebitBalance(ctx, id, amount); return err })
	return n, err
}

func (m *Memory) AppendLedgerEntry(ctx context.Context, entry generic.LedgerEntry) error {
	return m.write(func(v *view) error { return v.AppendLedgerEntry(ctx, entry) })
}

func (m *Memory) LedgerEntries(ctx context.Context, id generic.EntityID) (out []generic.LedgerEntry, err error) {
	err = m.read(func(v *view) error { out, err = v.LedgerEntries(ctx, id); return err })
	return out, err
}

func (m *Memory) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	return m.write(func(v *view) error { return v.AppendAudit(ctx, entry) })
}

func (m *Memory) QueryAudit(ctx context.Context, filter generic.AuditFilter) (out []generic.AuditEntry, err error) {
	err = m.read(func(v *view) error { out, err = v.QueryAudit(ctx, filter); return err })
	return out, err
}

// =============================================================================
// VIEW - Unlocked operations; the caller holds the mutex
// =============================================================================

type view struct {
	st *state
}

var _ timeoff.Store = (*view)(nil)

func (v *view) GetEmployee(_ context.Context, id generic.EntityID) (*timeoff.Employee, error) {
	e, ok := v.st.employees[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return &e, nil
}

func (v *view) ListEmployees(_ context.Context) ([]timeoff.Employee, error) {
	out := make([]timeoff.Employee, 0, len(v.st.employees))
	for _, e := range v.st.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) CreateEmployee(_ context.Context, e timeoff.Employee) error {
	if _, ok := v.st.employees[e.ID]; ok {
		return fmt.Errorf("%w: %s", timeoff.ErrEmployeeExists, e.ID)
	}
	if e.RemainingDays < 0 {
		return fmt.Errorf("%w: remaining days %d", generic.ErrInvalidAmount, e.RemainingDays)
	}
	v.st.employees[e.ID] = e
	return nil
}

func (v *view) SetRole(_ context.Context, id generic.EntityID, role timeoff.Role) error {
	e, ok := v.st.employees[id]
	if !ok {
		return &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	e.Role = role
	v.st.employees[id] = e
	return nil
}

func (v *view) CreateRequest(_ context.Context, r timeoff.LeaveRequest) error {
	if _, ok := v.st.requests[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	if _, ok := v.st.employees[r.EmployeeID]; !ok {
		return &generic.NotFoundError{Kind: "employee", ID: string(r.EmployeeID)}
	}
	v.st.requests[r.ID] = r
	return nil
}

func (v *view) GetRequest(_ context.Context, id string) (*timeoff.LeaveRequest, error) {
	r, ok := v.st.requests[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "request", ID: id}
	}
	return &r, nil
}

// ListRequestsByEmployee returns newest first.
func (v *view) ListRequestsByEmployee(_ context.Context, id generic.EntityID) ([]timeoff.LeaveRequest, error) {
	var out []timeoff.LeaveRequest
	for _, r := range v.st.requests {
		if r.EmployeeID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListRequestsByStatus returns oldest first.
func (v *view) ListRequestsByStatus(_ context.Context, status timeoff.RequestStatus) ([]timeoff.LeaveRequest, error) {
	var out []timeoff.LeaveRequest
	for _, r := range v.st.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) TransitionRequest(_ context.Context, next timeoff.LeaveRequest, from timeoff.RequestStatus) error {
	current, ok := v.st.requests[next.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "request", ID: next.ID}
	}
	if current.Status != from {
		return &generic.AlreadyFinalizedError{RequestID: next.ID, Status: string(current.Status)}
	}
	v.st.requests[next.ID] = next
	return nil
}

func (v *view) ListHolidaysInRange(_ context.Context, from, to generic.Date) ([]generic.Holiday, error) {
	var out []generic.Holiday
	for _, h := range v.st.holidays {
		if h.Date.AfterOrEqual(from) && h.Date.BeforeOrEqual(to) {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out, nil
}

func (v *view) AddHoliday(_ context.Context, h generic.Holiday) error {
	if _, ok := v.st.holidayDates[h.Date]; ok {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateHoliday, h.Date)
	}
	v.st.holidays[h.ID] = h
	v.st.holidayDates[h.Date] = h.ID
	return nil
}

func (v *view) UpdateHoliday(_ context.Context, h generic.Holiday) error {
	current, ok := v.st.holidays[h.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "holiday", ID: h.ID}
	}
	if owner, taken := v.st.holidayDates[h.Date]; taken && owner != h.ID {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateHoliday, h.Date)
	}
	if !current.Date.Equal(h.Date) {
		delete(v.st.holidayDates, current.Date)
	}
	v.st.holidays[h.ID] = h
	v.st.holidayDates[h.Date] = h.ID
	return nil
}

func (v *view) DeleteHoliday(_ context.Context, id string) error {
	h, ok := v.st.holidays[id]
	if !ok {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	delete(v.st.holidays, id)
	delete(v.st.holidayDates, h.Date)
	return nil
}

func (v *view) ListHolidays(_ context.Context) ([]generic.Holiday, error) {
	out := make([]generic.Holiday, 0, len(v.st.holidays))
	for _, h := range v.st.holidays {
		out = append(out, h)
	}
	sortHolidays(out)
	return out, nil
}

func (v *view) Balance(_ context.Context, id generic.EntityID) (int, error) {
	e, ok := v.st.employees[id]
	if !ok {
		return 0, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e.RemainingDays, nil
}

func (v *view) DebitBalance(_ context.Context, id generic.EntityID, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d", generic.ErrInvalidAmount, amount)
	}
	e, ok := v.st.employees[id]
	if !ok {
		return 0, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if e.RemainingDays < amount {
		return 0, &generic.InsufficientBalanceError{EmployeeID: id, Available: e.RemainingDays, Requested: amount}
	}
	e.RemainingDays -= amount
	v.st.employees[id] = e
	return e.RemainingDays, nil
}

func (v *view) AppendLedgerEntry(_ context.Context, entry generic.LedgerEntry) error {
	v.st.ledger[entry.EmployeeID] = append(v.st.ledger[entry.EmployeeID], entry)
	return nil
}

func (v *view) LedgerEntries(_ context.Context, id generic.EntityID) ([]generic.LedgerEntry, error) {
	return append([]generic.LedgerEntry(nil), v.st.ledger[id]...), nil
}

func (v *view) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	v.st.audit = append(v.st.audit, entry)
	return nil
}

func (v *view) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range v.st.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func sortHolidays(hs []generic.Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}
