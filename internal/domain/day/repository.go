package day

import (
	"context"
	"time"
)

// CacheRepository stores materialized days. Rows are only written for
// dates that have already ended in the tenant timezone.
type CacheRepository interface {
	// List returns cached days of the employee in [from, to], keyed by date.
	List(ctx context.Context, companyID, employeeID string, from, to time.Time) (map[string]AttendanceDay, error)
	Upsert(ctx context.Context, d AttendanceDay) error

	Invalidate(ctx context.Context, companyID, employeeID string, date time.Time) error
	InvalidateFrom(ctx context.Context, companyID string, employeeIDs []string, from time.Time) error
	InvalidateRange(ctx context.Context, companyID string, employeeIDs []string, from, to time.Time) error

	// LockEmployee holds the employee's day lock until the surrounding
	// transaction ends. Record writes take the same lock, so a day computed
	// under it cannot miss a record committed before its upsert.
	LockEmployee(ctx context.Context, companyID, employeeID string) error
}
