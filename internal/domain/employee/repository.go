package employee

import "context"

type EmployeeRepository interface {
	GetByID(ctx context.Context, id, companyID string) (Employee, error)

	// GetBySyncID resolves the employee a terminal knows as syncID.
	GetBySyncID(ctx context.Context, companyID, deviceID, syncID string) (Employee, error)

	// ListActiveIDs returns ids of every active employee of the company.
	ListActiveIDs(ctx context.Context, companyID string) ([]string, error)
}
