package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const openRecordIndex = "attendance_records_one_open"

const recordColumns = `
	id, company_id, employee_id, clock_in, clock_out, duration_minutes,
	clock_in_method, clock_out_method, clock_in_device_id, clock_out_device_id,
	clock_in_lat, clock_in_lng, clock_in_accuracy_m,
	clock_out_lat, clock_out_lng, clock_out_accuracy_m,
	created_at, updated_at`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.RecordRepository {
	return &attendanceRepository{db: db}
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var r attendance.Record
	var outMethod *string
	var inLat, inLng, inAcc, outLat, outLng, outAcc *float64

	err := row.Scan(
		&r.ID, &r.CompanyID, &r.EmployeeID, &r.ClockIn, &r.ClockOut, &r.DurationMinutes,
		&r.ClockInMethod, &outMethod, &r.ClockInDeviceID, &r.ClockOutDeviceID,
		&inLat, &inLng, &inAcc,
		&outLat, &outLng, &outAcc,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}

	if outMethod != nil {
		m := attendance.Method(*outMethod)
		r.ClockOutMethod = &m
	}
	r.ClockInGeo = geoStamp(inLat, inLng, inAcc)
	r.ClockOutGeo = geoStamp(outLat, outLng, outAcc)
	return r, nil
}

func geoStamp(lat, lng, acc *float64) *attendance.GeoStamp {
	if lat == nil || lng == nil {
		return nil
	}
	return &attendance.GeoStamp{Latitude: *lat, Longitude: *lng, AccuracyM: acc}
}

func geoColumns(g *attendance.GeoStamp) (lat, lng, acc *float64) {
	if g == nil {
		return nil, nil, nil
	}
	return &g.Latitude, &g.Longitude, g.AccuracyM
}

// GetOpen implements attendance.RecordRepository.
func (a *attendanceRepository) GetOpen(ctx context.Context, companyID, employeeID string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE company_id = $1 AND employee_id = $2 AND clock_out IS NULL
		LIMIT 1`

	r, err := scanRecord(q.QueryRow(ctx, query, companyID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open record: %w", err)
	}
	return &r, nil
}

// Create implements attendance.RecordRepository.
func (a *attendanceRepository) Create(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	lat, lng, acc := geoColumns(r.ClockInGeo)

	query := `
		INSERT INTO attendance_records (
			id, company_id, employee_id, clock_in, clock_in_method, clock_in_device_id,
			clock_in_lat, clock_in_lng, clock_in_accuracy_m
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := q.QueryRow(ctx, query,
		r.ID, r.CompanyID, r.EmployeeID, r.ClockIn, r.ClockInMethod, r.ClockInDeviceID,
		lat, lng, acc,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, openRecordIndex) {
			return attendance.Record{}, attendance.ErrOpenShiftExists
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}
	return r, nil
}

// Close implements attendance.RecordRepository.
func (a *attendanceRepository) Close(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	lat, lng, acc := geoColumns(r.ClockOutGeo)
	query := `
		UPDATE attendance_records
		SET clock_out = $1, duration_minutes = $2, clock_out_method = $3, clock_out_device_id = $4,
			clock_out_lat = $5, clock_out_lng = $6, clock_out_accuracy_m = $7, updated_at = NOW()
		WHERE id = $8 AND company_id = $9 AND clock_out IS NULL
		RETURNING updated_at`

	err := q.QueryRow(ctx, query,
		r.ClockOut, r.DurationMinutes, r.ClockOutMethod, r.ClockOutDeviceID,
		lat, lng, acc,
		r.ID, r.CompanyID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNoOpenShift
		}
		return attendance.Record{}, fmt.Errorf("failed to close attendance record %s: %w", r.ID, err)
	}
	return r, nil
}

// GetByID implements attendance.RecordRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id, companyID string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE id = $1 AND company_id = $2`

	r, err := scanRecord(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get attendance record %s: %w", id, err)
	}
	return r, nil
}

// ListByClockIn implements attendance.RecordRepository.
func (a *attendanceRepository) ListByClockIn(ctx context.Context, companyID, employeeID string, from, to time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE company_id = $1 AND employee_id = $2 AND clock_in >= $3 AND clock_in < $4
		ORDER BY clock_in, id`

	rows, err := q.Query(ctx, query, companyID, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListStaleOpen implements attendance.RecordRepository.
func (a *attendanceRepository) ListStaleOpen(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE clock_out IS NULL AND clock_in < $1
		ORDER BY clock_in`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale open records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]attendance.Record, error) {
	var out []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}
	return out, nil
}
