package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type leaveRepository struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.Repository {
	return &leaveRepository{db: db}
}

// ListForEmployee implements leave.Repository.
func (r *leaveRepository) ListForEmployee(ctx context.Context, companyID, employeeID string, from, to time.Time) ([]leave.Record, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, company_id, employee_id, start_date, end_date, day_part, status
		FROM leave_records
		WHERE company_id = $1 AND employee_id = $2
			AND start_date <= $4::date AND end_date >= $3::date
		ORDER BY start_date, id`,
		companyID, employeeID, from.Format(clock.DateLayout), to.Format(clock.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list leave records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.Record, error) {
		var rec leave.Record
		err := row.Scan(&rec.ID, &rec.CompanyID, &rec.EmployeeID, &rec.StartDate, &rec.EndDate, &rec.DayPart, &rec.Status)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leave records: %w", err)
	}
	return records, nil
}

// ListHolidays implements leave.Repository.
func (r *leaveRepository) ListHolidays(ctx context.Context, companyID string, from, to time.Time) ([]leave.Holiday, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT company_id, date, name
		FROM holidays
		WHERE company_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date`,
		companyID, from.Format(clock.DateLayout), to.Format(clock.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}

	holidays, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leave.Holiday, error) {
		var h leave.Holiday
		err := row.Scan(&h.CompanyID, &h.Date, &h.Name)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan holidays: %w", err)
	}
	return holidays, nil
}
