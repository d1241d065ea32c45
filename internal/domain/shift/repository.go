package shift

import (
	"context"
	"time"
)

type ShiftRepository interface {
	// GetAssigned returns the shift explicitly assigned to the employee, or nil.
	GetAssigned(ctx context.Context, companyID, employeeID string) (*Shift, error)

	// GetDefault returns the tenant default shift, or nil.
	GetDefault(ctx context.Context, companyID string) (*Shift, error)

	GetByID(ctx context.Context, id, companyID string) (Shift, error)

	// Create and Update clear any other default when s.IsDefault is set.
	Create(ctx context.Context, s Shift) (Shift, error)
	Update(ctx context.Context, s Shift) (Shift, error)

	Assign(ctx context.Context, companyID, employeeID, shiftID string) error

	// EmployeesOnShift lists employees whose effective shift is shiftID.
	EmployeesOnShift(ctx context.Context, companyID, shiftID string) ([]string, error)
}

// DayCacheInvalidator drops cached aggregation rows for employees from a date onwards.
type DayCacheInvalidator interface {
	InvalidateFrom(ctx context.Context, companyID string, employeeIDs []string, from time.Time) error
}
