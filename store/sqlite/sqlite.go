/*
Package sqlite provides a SQLite-backed timeoff.TxStore.

PURPOSE:
  Persists employees, the holiday calendar, leave requests, the balance
  ledger and the audit log. Semantics match store/memory exactly; the
  request service runs unchanged on either.

KEY TABLES:
  employees:      identity slice (role) and the remaining_days counter
  holidays:       one row per holiday date (date is UNIQUE)
  leave_requests: request snapshots, status is the state machine column
  ledger_entries: one row per debit, with the balance after it
  audit_log:      who did what when, payload as JSON

CONDITIONAL WRITES:
  Both writes that race are single UPDATE statements guarded by a WHERE
  clause, and RowsAffected tells whether the guard held:

    UPDATE employees SET remaining_days = remaining_days - ?
     WHERE id = ? AND remaining_days >= ?

    UPDATE leave_requests SET status = ?, ...
     WHERE id = ? AND status = ?

  The schema additionally CHECKs remaining_days >= 0, so a negative balance
  is impossible even for writers outside this package.

CONCURRENCY:
  Uses sync.RWMutex inside one process. Across processes sharing the file,
  transactions begin IMMEDIATE and wait up to the busy timeout; SQLITE_BUSY
  and SQLITE_LOCKED after that surface as *generic.TransientError.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - timeoff/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// BusyTimeout is how long a statement waits on another connection's lock.
const BusyTimeout = 5 * time.Second

// Store implements timeoff.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ timeoff.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		dbPath, BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('UNASSIGNED', 'EMPLOYEE', 'BOSS', 'ADMIN')),
		remaining_days INTEGER NOT NULL CHECK (remaining_days >= 0),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		chargeable_days INTEGER NOT NULL CHECK (chargeable_days >= 0),
		comments TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status, created_at);

	-- Append-only: no UPDATE or DELETE is ever issued on this table
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		request_id TEXT,
		entry_type TEXT NOT NULL,
		delta INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reason TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_employee
		ON ledger_entries(employee_id, created_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		employee_id TEXT,
		request_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee ON audit_log(employee_id);
	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(timeoff.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify("commit", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func (s *Store) read() (*conn, func()) {
	s.mu.RLock()
	return &conn{q: s.db}, s.mu.RUnlock
}

func (s *Store) write() (*conn, func()) {
	s.mu.Lock()
	return &conn{q: s.db}, s.mu.Unlock
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id generic.EntityID) (*timeoff.Employee, error) {
	c, done := s.read()
	defer done()
	return c.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context) ([]timeoff.Employee, error) {
	c, done := s.read()
	defer done()
	return c.ListEmployees(ctx)
}

func (s *Store) CreateEmployee(ctx context.Context, e timeoff.Employee) error {
	c, done := s.write()
	defer done()
	return c.CreateEmployee(ctx, e)
}

func (s *Store) SetRole(ctx context.Context, id generic.EntityID, role timeoff.Role) error {
	c, done := s.write()
	defer done()
	return c.SetRole(ctx, id, role)
}

func (s *Store) CreateRequest(ctx context.Context, r timeoff.LeaveRequest) error {
	c, done := s.write()
	defer done()
	return c.CreateRequest(ctx, r)
}

func (s *Store) GetRequest(ctx context.Context, id string) (*timeoff.LeaveRequest, error) {
	c, done := s.read()
	defer done()
	return c.GetRequest(ctx, id)
}

func (s *Store) ListRequestsByEmployee(ctx context.Context, id generic.EntityID) ([]timeoff.LeaveRequest, error) {
	c, done := s.read()
	defer done()
	return c.ListRequestsByEmployee(ctx, id)
}

func (s *Store) ListRequestsByStatus(ctx context.Context, status timeoff.RequestStatus) ([]timeoff.LeaveRequest, error) {
	c, done := s.read()
	defer done()
	return c.ListRequestsByStatus(ctx, status)
}

func (s *Store) TransitionRequest(ctx context.Context, next timeoff.LeaveRequest, from timeoff.RequestStatus) error {
	c, done := s.write()
	defer done()
	return c.TransitionRequest(ctx, next, from)
}

func (s *Store) ListHolidaysInRange(ctx context.Context, from, to generic.Date) ([]generic.Holiday, error) {
	c, done := s.read()
	defer done()
	return c.ListHolidaysInRange(ctx, from, to)
}

func (s *Store) AddHoliday(ctx context.Context, h generic.Holiday) error {
	c, done := s.write()
	defer done()
	return c.AddHoliday(ctx, h)
}

func (s *Store) UpdateHoliday(ctx context.Context, h generic.Holiday) error {
	c, done := s.write()
	defer done()
	return c.UpdateHoliday(ctx, h)
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	c, done := s.write()
	defer done()
	return c.DeleteHoliday(ctx, id)
}

func (s *Store) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	c, done := s.read()
	defer done()
	return c.ListHolidays(ctx)
}

func (s *Store) Balance(ctx context.Context, id generic.EntityID) (int, error) {
	c, done := s.read()
	defer done()
	return c.Balance(ctx, id)
}

func (s *Store) DebitBalance(ctx context.Context, id generic.EntityID, amount int) (int, error) {
	c, done := s.write()
	defer done()
	return c.DebitBalance(ctx, id, amount)
}

func (s *Store) AppendLedgerEntry(ctx context.Context, entry generic.LedgerEntry) error {
	c, done := s.write()
	defer done()
	return c.AppendLedgerEntry(ctx, entry)
}

func (s *Store) LedgerEntries(ctx context.Context, id generic.EntityID) ([]generic.LedgerEntry, error) {
	c, done := s.read()
	defer done()
	return c.LedgerEntries(ctx, id)
}

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	c, done := s.write()
	defer done()
	return c.AppendAudit(ctx, entry)
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	c, done := s.read()
	defer done()
	return c.QueryAudit(ctx, filter)
}

// =============================================================================
// CONN - Statements against either *sql.DB or *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q querier
}

var _ timeoff.Store = (*conn)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// ===== Employees =====

const employeeColumns = `id, name, email, role, remaining_days, created_at`

func (c *conn) GetEmployee(ctx context.Context, id generic.EntityID) (*timeoff.Employee, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, string(id))
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if err != nil {
		return nil, classify("employee:"+string(id), err)
	}
	return e, nil
}

func (c *conn) ListEmployees(ctx context.Context) ([]timeoff.Employee, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, classify("employees", err)
	}
	defer rows.Close()

	var out []timeoff.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (c *conn) CreateEmployee(ctx context.Context, e timeoff.Employee) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Name, e.Email, string(e.Role), e.RemainingDays, formatTime(e.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", timeoff.ErrEmployeeExists, e.ID)
	}
	if isCheckViolation(err) {
		return fmt.Errorf("%w: remaining days %d", generic.ErrInvalidAmount, e.RemainingDays)
	}
	return classify("employee:"+string(e.ID), err)
}

func (c *conn) SetRole(ctx context.Context, id generic.EntityID, role timeoff.Role) error {
	res, err := c.q.ExecContext(ctx, `UPDATE employees SET role = ? WHERE id = ?`, string(role), string(id))
	if err != nil {
		return classify("employee:"+string(id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return nil
}

func scanEmployee(row scanner) (*timeoff.Employee, error) {
	var e timeoff.Employee
	var id, role, createdAt string
	if err := row.Scan(&id, &e.Name, &e.Email, &role, &e.RemainingDays, &createdAt); err != nil {
		return nil, err
	}
	e.ID = generic.EntityID(id)
	e.Role = timeoff.Role(role)
	if !e.Role.Valid() {
		return nil, fmt.Errorf("employee %s: unknown role %q", id, role)
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("employee %s: %w", id, err)
	}
	return &e, nil
}

// ===== Requests =====

const requestColumns = `id, employee_id, start_date, end_date, chargeable_days, comments,
	status, decided_by, decided_at, created_at, updated_at`

func (c *conn) CreateRequest(ctx context.Context, r timeoff.LeaveRequest) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.EmployeeID), r.Start.String(), r.End.String(), r.ChargeableDays, r.Comments,
		string(r.Status), nullString(string(r.DecidedBy)), nullTime(r.DecidedAt),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if isForeignKeyViolation(err) {
		return &generic.NotFoundError{Kind: "employee", ID: string(r.EmployeeID)}
	}
	return classify("request:"+r.ID, err)
}

func (c *conn) GetRequest(ctx context.Context, id string) (*timeoff.LeaveRequest, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "request", ID: id}
	}
	if err != nil {
		return nil, classify("request:"+id, err)
	}
	return r, nil
}

func (c *conn) ListRequestsByEmployee(ctx context.Context, id generic.EntityID) ([]timeoff.LeaveRequest, error) {
	return c.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE employee_id = ?
		ORDER BY created_at DESC, id`, string(id))
}

func (c *conn) ListRequestsByStatus(ctx context.Context, status timeoff.RequestStatus) ([]timeoff.LeaveRequest, error) {
	return c.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE status = ?
		ORDER BY created_at, id`, string(status))
}

func (c *conn) TransitionRequest(ctx context.Context, next timeoff.LeaveRequest, from timeoff.RequestStatus) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, comments = ?, decided_by = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(next.Status), next.Comments, nullString(string(next.DecidedBy)), nullTime(next.DecidedAt),
		formatTime(next.UpdatedAt), next.ID, string(from),
	)
	if err != nil {
		return classify("request:"+next.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status string
	err = c.q.QueryRowContext(ctx, `SELECT status FROM leave_requests WHERE id = ?`, next.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &generic.NotFoundError{Kind: "request", ID: next.ID}
	}
	if err != nil {
		return classify("request:"+next.ID, err)
	}
	return &generic.AlreadyFinalizedError{RequestID: next.ID, Status: status}
}

func (c *conn) queryRequests(ctx context.Context, query string, args ...any) ([]timeoff.LeaveRequest, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("requests", err)
	}
	defer rows.Close()

	var out []timeoff.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (*timeoff.LeaveRequest, error) {
	var r timeoff.LeaveRequest
	var employeeID, start, end, status, createdAt, updatedAt string
	var decidedBy, decidedAt sql.NullString

	err := row.Scan(&r.ID, &employeeID, &start, &end, &r.ChargeableDays, &r.Comments,
		&status, &decidedBy, &decidedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if r.Start, err = generic.ParseDate(start); err != nil {
		return nil, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if r.End, err = generic.ParseDate(end); err != nil {
		return nil, fmt.Errorf("request %s: %w", r.ID, err)
	}
	r.EmployeeID = generic.EntityID(employeeID)
	r.Status = timeoff.RequestStatus(status)
	if !r.Status.Valid() {
		return nil, fmt.Errorf("request %s: unknown status %q", r.ID, status)
	}
	r.DecidedBy = generic.EntityID(decidedBy.String)
	if decidedAt.Valid {
		t, err := parseTime(decidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		r.DecidedAt = &t
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("request %s: %w", r.ID, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("request %s: %w", r.ID, err)
	}
	return &r, nil
}

// ===== Holidays =====

func (c *conn) ListHolidaysInRange(ctx context.Context, from, to generic.Date) ([]generic.Holiday, error) {
	return c.queryHolidays(ctx, `
		SELECT id, date, name FROM holidays
		WHERE date BETWEEN ? AND ?
		ORDER BY date`, from.String(), to.String())
}

func (c *conn) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	return c.queryHolidays(ctx, `SELECT id, date, name FROM holidays ORDER BY date`)
}

func (c *conn) AddHoliday(ctx context.Context, h generic.Holiday) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, created_at) VALUES (?, ?, ?, ?)`,
		h.ID, h.Date.String(), h.Name, formatTime(time.Now()),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateHoliday, h.Date)
	}
	return classify("holiday:"+h.Date.String(), err)
}

func (c *conn) UpdateHoliday(ctx context.Context, h generic.Holiday) error {
	res, err := c.q.ExecContext(ctx, `UPDATE holidays SET date = ?, name = ? WHERE id = ?`,
		h.Date.String(), h.Name, h.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateHoliday, h.Date)
	}
	if err != nil {
		return classify("holiday:"+h.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "holiday", ID: h.ID}
	}
	return nil
}

func (c *conn) DeleteHoliday(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return classify("holiday:"+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "holiday", ID: id}
	}
	return nil
}

func (c *conn) queryHolidays(ctx context.Context, query string, args ...any) ([]generic.Holiday, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("holidays", err)
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var h generic.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ===== Balance & ledger =====

func (c *conn) Balance(ctx context.Context, id generic.EntityID) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `SELECT remaining_days FROM employees WHERE id = ?`, string(id)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &generic.NotFoundError{Kind: "employee", ID: string(id)}
	}
	if err != nil {
		return 0, classify("employee:"+string(id), err)
	}
	return n, nil
}

func (c *conn) DebitBalance(ctx context.Context, id generic.EntityID, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d", generic.ErrInvalidAmount, amount)
	}

	res, err := c.q.ExecContext(ctx, `
		UPDATE employees SET remaining_days = remaining_days - ?
		WHERE id = ? AND remaining_days >= ?`,
		amount, string(id), amount,
	)
	if err != nil {
		return 0, classify("employee:"+string(id), err)
	}

	balance, err := c.Balance(ctx, id)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, &generic.InsufficientBalanceError{EmployeeID: id, Available: balance, Requested: amount}
	}
	return balance, nil
}

func (c *conn) AppendLedgerEntry(ctx context.Context, e generic.LedgerEntry) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, employee_id, request_id, entry_type, delta, balance_after, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.EmployeeID), nullString(e.RequestID), string(e.Type), e.Delta, e.BalanceAfter,
		e.Reason, e.CreatedBy, formatTime(e.CreatedAt),
	)
	return classify("employee:"+string(e.EmployeeID), err)
}

func (c *conn) LedgerEntries(ctx context.Context, id generic.EntityID) ([]generic.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, employee_id, request_id, entry_type, delta, balance_after, reason, created_by, created_at
		FROM ledger_entries
		WHERE employee_id = ?
		ORDER BY created_at, rowid`, string(id))
	if err != nil {
		return nil, classify("ledger", err)
	}
	defer rows.Close()

	var out []generic.LedgerEntry
	for rows.Next() {
		var e generic.LedgerEntry
		var employeeID, entryType, createdAt string
		var requestID, reason, createdBy sql.NullString
		if err := rows.Scan(&e.ID, &employeeID, &requestID, &entryType, &e.Delta, &e.BalanceAfter,
			&reason, &createdBy, &createdAt); err != nil {
			return nil, err
		}
		e.EmployeeID = generic.EntityID(employeeID)
		e.RequestID = requestID.String
		e.Type = generic.EntryType(entryType)
		e.Reason = reason.String
		e.CreatedBy = createdBy.String
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, err)
		}
		e.CreatedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// ===== Audit =====

func (c *conn) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	var payload []byte
	if e.Payload != nil {
		var err error
		if payload, err = json.Marshal(e.Payload); err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
	}

	_, err := c.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, employee_id, request_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.Timestamp), e.ActorID, string(e.Action),
		nullString(string(e.EmployeeID)), nullString(e.RequestID), nullString(string(payload)),
	)
	return classify("audit", err)
}

func (c *conn) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, action, employee_id, request_id, payload_json
		FROM audit_log ORDER BY seq`)
	if err != nil {
		return nil, classify("audit", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var e generic.AuditEntry
		var timestamp, action string
		var employeeID, requestID, payload sql.NullString
		if err := rows.Scan(&e.ID, &timestamp, &e.ActorID, &action, &employeeID, &requestID, &payload); err != nil {
			return nil, err
		}
		t, err := parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", e.ID, err)
		}
		e.Timestamp = t
		e.Action = generic.AuditAction(action)
		e.EmployeeID = generic.EntityID(employeeID.String)
		e.RequestID = requestID.String
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit %s: %w", e.ID, err)
			}
		}
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// classify turns lock contention into *generic.TransientError. Other errors
// pass through unchanged; nil stays nil.
func classify(key string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return &generic.TransientError{Key: key, Err: err}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isCheckViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintCheck
}

func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// timeLayout is fixed width so that text order is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
