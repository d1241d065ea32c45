package leave

import (
	"context"
	"time"
)

// Repository is read-only: leaves and holidays are owned by other systems.
type Repository interface {
	// ListForEmployee returns leaves of any status overlapping [from, to].
	ListForEmployee(ctx context.Context, companyID, employeeID string, from, to time.Time) ([]Record, error)
	ListHolidays(ctx context.Context, companyID string, from, to time.Time) ([]Holiday, error)
}
