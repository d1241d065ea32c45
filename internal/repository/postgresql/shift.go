package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `
	s.id, s.company_id, s.name, s.start_time, s.end_time,
	s.late_tolerance_minutes, s.early_exit_tolerance_minutes, s.break_duration_minutes,
	s.working_days, s.is_default, s.created_at, s.updated_at`

type shiftRepository struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) shift.ShiftRepository {
	return &shiftRepository{db: db}
}

func toTimeOfDay(t pgtype.Time) clock.TimeOfDay {
	return clock.TimeOfDay(t.Microseconds / int64(60*1e6))
}

func fromTimeOfDay(t clock.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1e6, Valid: true}
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var s shift.Shift
	var start, end pgtype.Time
	var days int16

	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Name, &start, &end,
		&s.LateToleranceMinutes, &s.EarlyExitToleranceMinutes, &s.BreakDurationMinutes,
		&days, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return shift.Shift{}, err
	}
	s.StartTime = toTimeOfDay(start)
	s.EndTime = toTimeOfDay(end)
	s.WorkingDays = shift.WeekdaySet(days)
	return s, nil
}

func (r *shiftRepository) getOne(ctx context.Context, query string, args ...interface{}) (*shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanShift(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetAssigned implements shift.ShiftRepository.
func (r *shiftRepository) GetAssigned(ctx context.Context, companyID, employeeID string) (*shift.Shift, error) {
	s, err := r.getOne(ctx, `SELECT`+shiftColumns+`
		FROM employee_shifts es
		JOIN shifts s ON s.id = es.shift_id AND s.company_id = es.company_id
		WHERE es.company_id = $1 AND es.employee_id = $2`, companyID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned shift: %w", err)
	}
	return s, nil
}

// GetDefault implements shift.ShiftRepository.
func (r *shiftRepository) GetDefault(ctx context.Context, companyID string) (*shift.Shift, error) {
	s, err := r.getOne(ctx, `SELECT`+shiftColumns+`
		FROM shifts s
		WHERE s.company_id = $1 AND s.is_default`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default shift: %w", err)
	}
	return s, nil
}

// GetByID implements shift.ShiftRepository.
func (r *shiftRepository) GetByID(ctx context.Context, id, companyID string) (shift.Shift, error) {
	s, err := r.getOne(ctx, `SELECT`+shiftColumns+`
		FROM shifts s
		WHERE s.id = $1 AND s.company_id = $2`, id, companyID)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("failed to get shift %s: %w", id, err)
	}
	if s == nil {
		return shift.Shift{}, shift.ErrShiftNotFound
	}
	return *s, nil
}

func (r *shiftRepository) clearDefault(ctx context.Context, companyID, keepID string) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `
		UPDATE shifts SET is_default = FALSE, updated_at = NOW()
		WHERE company_id = $1 AND is_default AND id <> $2`, companyID, keepID)
	if err != nil {
		return fmt.Errorf("failed to clear default shift: %w", err)
	}
	return nil
}

// Create implements shift.ShiftRepository.
func (r *shiftRepository) Create(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	s.ID = uuid.Must(uuid.NewV7()).String()
	if s.IsDefault {
		if err := r.clearDefault(ctx, s.CompanyID, s.ID); err != nil {
			return shift.Shift{}, err
		}
	}

	err := q.QueryRow(ctx, `
		INSERT INTO shifts (
			id, company_id, name, start_time, end_time,
			late_tolerance_minutes, early_exit_tolerance_minutes, break_duration_minutes,
			working_days, is_default
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		s.ID, s.CompanyID, s.Name, fromTimeOfDay(s.StartTime), fromTimeOfDay(s.EndTime),
		s.LateToleranceMinutes, s.EarlyExitToleranceMinutes, s.BreakDurationMinutes,
		int16(s.WorkingDays), s.IsDefault,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("failed to create shift: %w", err)
	}
	return s, nil
}

// Update implements shift.ShiftRepository.
func (r *shiftRepository) Update(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	if s.IsDefault {
		if err := r.clearDefault(ctx, s.CompanyID, s.ID); err != nil {
			return shift.Shift{}, err
		}
	}

	err := q.QueryRow(ctx, `
		UPDATE shifts
		SET name = $1, start_time = $2, end_time = $3,
			late_tolerance_minutes = $4, early_exit_tolerance_minutes = $5, break_duration_minutes = $6,
			working_days = $7, is_default = $8, updated_at = NOW()
		WHERE id = $9 AND company_id = $10
		RETURNING created_at, updated_at`,
		s.Name, fromTimeOfDay(s.StartTime), fromTimeOfDay(s.EndTime),
		s.LateToleranceMinutes, s.EarlyExitToleranceMinutes, s.BreakDurationMinutes,
		int16(s.WorkingDays), s.IsDefault,
		s.ID, s.CompanyID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrShiftNotFound
		}
		return shift.Shift{}, fmt.Errorf("failed to update shift %s: %w", s.ID, err)
	}
	return s, nil
}

// Assign implements shift.ShiftRepository.
func (r *shiftRepository) Assign(ctx context.Context, companyID, employeeID, shiftID string) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO employee_shifts (company_id, employee_id, shift_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (employee_id) DO UPDATE SET shift_id = EXCLUDED.shift_id, assigned_at = NOW()`,
		companyID, employeeID, shiftID)
	if err != nil {
		return fmt.Errorf("failed to assign shift %s to employee %s: %w", shiftID, employeeID, err)
	}
	return nil
}

// EmployeesOnShift implements shift.ShiftRepository. Employees without an
// explicit assignment follow the default shift.
func (r *shiftRepository) EmployeesOnShift(ctx context.Context, companyID, shiftID string) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT e.id
		FROM employees e
		LEFT JOIN employee_shifts es ON es.employee_id = e.id
		WHERE e.company_id = $1 AND e.deleted_at IS NULL
		  AND (es.shift_id = $2
		       OR (es.shift_id IS NULL AND EXISTS (
		           SELECT 1 FROM shifts s WHERE s.id = $2 AND s.company_id = $1 AND s.is_default)))`,
		companyID, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees on shift %s: %w", shiftID, err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan employees on shift: %w", err)
	}
	return ids, nil
}
