package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
)

// attendanceDayRepository is the materialized day cache. Dates travel as
// YYYY-MM-DD strings so the session timezone never shifts them.
type attendanceDayRepository struct {
	db *database.DB
}

func NewAttendanceDayRepository(db *database.DB) day.CacheRepository {
	return &attendanceDayRepository{db: db}
}

// List implements day.CacheRepository.
func (r *attendanceDayRepository) List(ctx context.Context, companyID, employeeID string, from, to time.Time) (map[string]day.AttendanceDay, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), status, tags, in_time, out_time,
			worked_minutes, late_minutes, early_leave_minutes, overtime_minutes, open,
			shift_id, leave_day_part, holiday_name, reason
		FROM attendance_days
		WHERE company_id = $1 AND employee_id = $2 AND date BETWEEN $3::date AND $4::date`,
		companyID, employeeID, from.Format(clock.DateLayout), to.Format(clock.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list cached days: %w", err)
	}
	defer rows.Close()

	loc := from.Location()
	out := make(map[string]day.AttendanceDay)
	for rows.Next() {
		d := day.AttendanceDay{CompanyID: companyID, EmployeeID: employeeID}
		var date string
		var dayPart *string
		if err := rows.Scan(
			&date, &d.Status, &d.Tags, &d.InTime, &d.OutTime,
			&d.WorkedMinutes, &d.LateMinutes, &d.EarlyLeaveMinutes, &d.OvertimeMinutes, &d.Open,
			&d.ShiftID, &dayPart, &d.HolidayName, &d.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cached day: %w", err)
		}
		if d.Date, err = clock.ParseDate(date, loc); err != nil {
			return nil, fmt.Errorf("failed to parse cached date %q: %w", date, err)
		}
		if dayPart != nil {
			p := leave.DayPart(*dayPart)
			d.LeaveDayPart = &p
		}
		if len(d.Tags) == 0 {
			d.Tags = nil
		}
		if d.InTime != nil {
			t := d.InTime.In(loc)
			d.InTime = &t
		}
		if d.OutTime != nil {
			t := d.OutTime.In(loc)
			d.OutTime = &t
		}
		out[date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached days: %w", err)
	}
	return out, nil
}

// Upsert implements day.CacheRepository.
func (r *attendanceDayRepository) Upsert(ctx context.Context, d day.AttendanceDay) error {
	q := GetQuerier(ctx, r.db)

	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := q.Exec(ctx, `
		INSERT INTO attendance_days (
			company_id, employee_id, date, status, tags, in_time, out_time,
			worked_minutes, late_minutes, early_leave_minutes, overtime_minutes, open,
			shift_id, leave_day_part, holiday_name, reason, computed_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (company_id, employee_id, date) DO UPDATE SET
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			in_time = EXCLUDED.in_time,
			out_time = EXCLUDED.out_time,
			worked_minutes = EXCLUDED.worked_minutes,
			late_minutes = EXCLUDED.late_minutes,
			early_leave_minutes = EXCLUDED.early_leave_minutes,
			overtime_minutes = EXCLUDED.overtime_minutes,
			open = EXCLUDED.open,
			shift_id = EXCLUDED.shift_id,
			leave_day_part = EXCLUDED.leave_day_part,
			holiday_name = EXCLUDED.holiday_name,
			reason = EXCLUDED.reason,
			computed_at = NOW()`,
		d.CompanyID, d.EmployeeID, d.Date.Format(clock.DateLayout), d.Status, tags, d.InTime, d.OutTime,
		d.WorkedMinutes, d.LateMinutes, d.EarlyLeaveMinutes, d.OvertimeMinutes, d.Open,
		d.ShiftID, d.LeaveDayPart, d.HolidayName, d.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to cache day %s for employee %s: %w", d.Date.Format(clock.DateLayout), d.EmployeeID, err)
	}
	return nil
}

// Invalidate implements attendance.DayInvalidator and day.CacheRepository.
func (r *attendanceDayRepository) Invalidate(ctx context.Context, companyID, employeeID string, date time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		DELETE FROM attendance_days
		WHERE company_id = $1 AND employee_id = $2 AND date = $3::date`,
		companyID, employeeID, date.Format(clock.DateLayout))
	if err != nil {
		return fmt.Errorf("failed to invalidate cached day: %w", err)
	}
	return nil
}

// LockEmployee implements day.CacheRepository. The key matches the one the
// leave_records trigger locks on.
func (r *attendanceDayRepository) LockEmployee(ctx context.Context, companyID, employeeID string) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, EmployeeLockKey(companyID, employeeID))
	if err != nil {
		return fmt.Errorf("failed to lock days of employee %s: %w", employeeID, err)
	}
	return nil
}

// EmployeeLockKey is the advisory lock key of one employee's days.
func EmployeeLockKey(companyID, employeeID string) string {
	return "attendance_days/" + companyID + "/" + employeeID
}

// InvalidateFrom implements shift.DayCacheInvalidator and day.CacheRepository.
func (r *attendanceDayRepository) InvalidateFrom(ctx context.Context, companyID string, employeeIDs []string, from time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		DELETE FROM attendance_days
		WHERE company_id = $1 AND date >= $2::date
		  AND ($3::uuid[] IS NULL OR employee_id = ANY($3::uuid[]))`,
		companyID, from.Format(clock.DateLayout), nullableIDs(employeeIDs))
	if err != nil {
		return fmt.Errorf("failed to invalidate cached days: %w", err)
	}
	return nil
}

// InvalidateRange implements day.CacheRepository. Empty employeeIDs covers
// the whole company.
func (r *attendanceDayRepository) InvalidateRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		DELETE FROM attendance_days
		WHERE company_id = $1 AND date BETWEEN $2::date AND $3::date
		  AND ($4::uuid[] IS NULL OR employee_id = ANY($4::uuid[]))`,
		companyID, from.Format(clock.DateLayout), to.Format(clock.DateLayout), nullableIDs(employeeIDs))
	if err != nil {
		return fmt.Errorf("failed to invalidate cached days: %w", err)
	}
	return nil
}

func nullableIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
