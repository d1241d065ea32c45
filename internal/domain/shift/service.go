package shift

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
)

// Resolver picks the effective shift of an employee on a date.
type Resolver interface {
	Resolve(ctx context.Context, companyID, employeeID string, date time.Time) (Resolved, error)
}

type ShiftService interface {
	Resolver

	Save(ctx context.Context, p auth.Principal, req SaveShiftRequest) (ShiftResponse, error)
	Assign(ctx context.Context, p auth.Principal, req AssignShiftRequest) error
}
