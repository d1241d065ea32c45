package day

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
)

type Aggregator interface {
	// Process aggregates every employee-day in the request range.
	Process(ctx context.Context, p auth.Principal, req ProcessRequest) ([]AttendanceDayResponse, error)

	// Invalidate drops cached days after an external leave or holiday write.
	Invalidate(ctx context.Context, p auth.Principal, req InvalidateRequest) error

	// Recompute refreshes one employee-day. Used by background workers.
	Recompute(ctx context.Context, companyID, employeeID string, date time.Time) (AttendanceDay, error)

	// ProcessCompany aggregates every active employee of a tenant over [from, to].
	ProcessCompany(ctx context.Context, companyID string, from, to time.Time) (int, error)
}
