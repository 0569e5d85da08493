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
// DIRECTORY - Employees, roles and the holiday calendar
// =============================================================================

// Directory holds the administrative operations. Everything except
// EnsureAdmin, ResolveActor and ListHolidays requires an ADMIN actor.
type Directory struct {
	Store TxStore
	Now   func() time.Time

	logger *zap.Logger
}

func NewDirectory(store TxStore, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		Store:  store,
		Now:    time.Now,
		logger: logger.Named("timeoff.directory"),
	}
}

type NewEmployee struct {
	ID    generic.EntityID
	Name  string
	Email string

	// RemainingDays defaults to DefaultRemainingDays when nil.
	RemainingDays *int
}

// ResolveActor turns an identity into an Actor. Unknown IDs are
// unauthenticated rather than not found.
func (d *Directory) ResolveActor(ctx context.Context, id generic.EntityID) (Actor, error) {
	if strings.TrimSpace(string(id)) == "" {
		return Actor{}, fmt.Errorf("%w: missing actor identity", generic.ErrUnauthenticated)
	}
	e, err := d.Store.GetEmployee(ctx, id)
	if err != nil {
		if generic.IsNotFound(err) {
			return Actor{}, fmt.Errorf("%w: unknown actor %q", generic.ErrUnauthenticated, id)
		}
		return Actor{}, err
	}
	return e.AsActor(), nil
}

// GetEmployee returns an employee the actor may see.
func (d *Directory) GetEmployee(ctx context.Context, actor Actor, id generic.EntityID) (*Employee, error) {
	e, err := d.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, *e) {
		return nil, &generic.ForbiddenError{
			ActorID: string(actor.ID),
			Action:  "view",
			Reason:  generic.ReasonRolePair,
			Detail:  fmt.Sprintf("role %s may not view employee %s", actor.Role, id),
		}
	}
	return e, nil
}

func (d *Directory) ListEmployees(ctx context.Context, actor Actor) ([]Employee, error) {
	if err := RequireAdmin(actor, "list_employees"); err != nil {
		return nil, err
	}
	return d.Store.ListEmployees(ctx)
}

// CreateEmployee adds an employee with role UNASSIGNED.
func (d *Directory) CreateEmployee(ctx context.Context, actor Actor, in NewEmployee) (*Employee, error) {
	log := d.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.String("employee_id", string(in.ID)),
	)
	log.Debug("create employee requested")

	if err := RequireAdmin(actor, "create_employee"); err != nil {
		log.Warn("create employee denied", zap.Error(err))
		return nil, err
	}

	e, err := d.newEmployee(in, RoleUnassigned)
	if err != nil {
		return nil, err
	}

	err = d.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateEmployee(ctx, *e); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  e.CreatedAt,
			ActorID:    string(actor.ID),
			Action:     generic.AuditEmployeeCreated,
			EmployeeID: e.ID,
			Payload:    map[string]any{"remaining_days": e.RemainingDays},
		})
	})
	if err != nil {
		log.Warn("create employee failed", zap.Error(err))
		return nil, err
	}

	log.Info("create employee success", zap.Int("remaining_days", e.RemainingDays))
	return e, nil
}

// AssignRole changes an employee's role.
func (d *Directory) AssignRole(ctx context.Context, actor Actor, id generic.EntityID, role Role) (*Employee, error) {
	log := d.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.String("employee_id", string(id)),
		zap.String("role", string(role)),
	)
	log.Debug("assign role requested")

	if err := RequireAdmin(actor, "assign_role"); err != nil {
		log.Warn("assign role denied", zap.Error(err))
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", generic.ErrInvalidRole, role)
	}

	var updated *Employee
	err := d.Store.WithTx(ctx, func(s Store) error {
		current, err := s.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := s.SetRole(ctx, id, role); err != nil {
			return err
		}
		next := *current
		next.Role = role
		updated = &next

		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  d.now(),
			ActorID:    string(actor.ID),
			Action:     generic.AuditRoleAssigned,
			EmployeeID: id,
			Payload: map[string]any{
				"from": string(current.Role),
				"to":   string(role),
			},
		})
	})
	if err != nil {
		log.Warn("assign role failed", zap.Error(err))
		return nil, err
	}

	log.Info("assign role success")
	return updated, nil
}

// EnsureAdmin creates the bootstrap administrator if it does not exist yet.
// An existing employee with that ID is left alone.
func (d *Directory) EnsureAdmin(ctx context.Context, id generic.EntityID, name string) (*Employee, error) {
	existing, err := d.Store.GetEmployee(ctx, id)
	if err == nil {
		if existing.Role != RoleAdmin {
			d.logger.Warn("seed admin exists without ADMIN role",
				zap.String("employee_id", string(id)),
				zap.String("role", string(existing.Role)),
			)
		}
		return existing, nil
	}
	if !generic.IsNotFound(err) {
		return nil, err
	}

	e, err := d.newEmployee(NewEmployee{ID: id, Name: name}, RoleAdmin)
	if err != nil {
		return nil, err
	}
	err = d.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateEmployee(ctx, *e); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  e.CreatedAt,
			ActorID:    "system",
			Action:     generic.AuditEmployeeCreated,
			EmployeeID: e.ID,
			Payload:    map[string]any{"role": string(RoleAdmin), "seeded": true},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin: %w", err)
	}

	d.logger.Info("seeded admin", zap.String("employee_id", string(id)))
	return e, nil
}

func (d *Directory) newEmployee(in NewEmployee, role Role) (*Employee, error) {
	id := generic.EntityID(strings.TrimSpace(string(in.ID)))
	if id == "" {
		id = generic.EntityID(uuid.NewString())
	}

	days := DefaultRemainingDays
	if in.RemainingDays != nil {
		days = *in.RemainingDays
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: remaining days %d", generic.ErrInvalidAmount, days)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = string(id)
	}

	return &Employee{
		ID:            id,
		Name:          name,
		Email:         strings.TrimSpace(in.Email),
		Role:          role,
		RemainingDays: days,
		CreatedAt:     d.now(),
	}, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ListHolidays is open to every authenticated actor.
func (d *Directory) ListHolidays(ctx context.Context) ([]generic.Holiday, error) {
	return d.Store.ListHolidays(ctx)
}

func (d *Directory) AddHoliday(ctx context.Context, actor Actor, date generic.Date, name string) (*generic.Holiday, error) {
	log := d.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.Stringer("date", date),
	)

	if err := RequireAdmin(actor, "add_holiday"); err != nil {
		log.Warn("add holiday denied", zap.Error(err))
		return nil, err
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: holiday date is required", generic.ErrInvalidRange)
	}

	h := generic.Holiday{ID: uuid.NewString(), Date: date, Name: strings.TrimSpace(name)}
	err := d.Store.WithTx(ctx, func(s Store) error {
		if err := s.AddHoliday(ctx, h); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: d.now(),
			ActorID:   string(actor.ID),
			Action:    generic.AuditHolidayAdded,
			Payload:   map[string]any{"holiday_id": h.ID, "date": date.String(), "name": h.Name},
		})
	})
	if err != nil {
		log.Warn("add holiday failed", zap.Error(err))
		return nil, err
	}

	log.Info("add holiday success", zap.String("holiday_id", h.ID))
	return &h, nil
}

// UpdateHoliday moves or renames a holiday. Requests already submitted keep
// the chargeable days computed at submission.
func (d *Directory) UpdateHoliday(ctx context.Context, actor Actor, id string, date generic.Date, name string) (*generic.Holiday, error) {
	log := d.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.String("holiday_id", id),
		zap.Stringer("date", date),
	)

	if err := RequireAdmin(actor, "update_holiday"); err != nil {
		log.Warn("update holiday denied", zap.Error(err))
		return nil, err
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: holiday date is required", generic.ErrInvalidRange)
	}

	h := generic.Holiday{ID: id, Date: date, Name: strings.TrimSpace(name)}
	err := d.Store.WithTx(ctx, func(s Store) error {
		if err := s.UpdateHoliday(ctx, h); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: d.now(),
			ActorID:   string(actor.ID),
			Action:    generic.AuditHolidayUpdated,
			Payload:   map[string]any{"holiday_id": id, "date": date.String(), "name": h.Name},
		})
	})
	if err != nil {
		log.Warn("update holiday failed", zap.Error(err))
		return nil, err
	}

	log.Info("update holiday success")
	return &h, nil
}

func (d *Directory) DeleteHoliday(ctx context.Context, actor Actor, id string) error {
	log := d.logger.With(
		zap.String("actor_id", string(actor.ID)),
		zap.String("holiday_id", id),
	)

	if err := RequireAdmin(actor, "delete_holiday"); err != nil {
		log.Warn("delete holiday denied", zap.Error(err))
		return err
	}

	err := d.Store.WithTx(ctx, func(s Store) error {
		if err := s.DeleteHoliday(ctx, id); err != nil {
			return err
		}
		return s.AppendAudit(ctx, generic.AuditEntry{
			ID:        uuid.NewString(),
			Timestamp: d.now(),
			ActorID:   string(actor.ID),
			Action:    generic.AuditHolidayDeleted,
			Payload:   map[string]any{"holiday_id": id},
		})
	})
	if err != nil {
		log.Warn("delete holiday failed", zap.Error(err))
		return err
	}

	log.Info("delete holiday success")
	return nil
}

func (d *Directory) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}
