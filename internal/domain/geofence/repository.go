package geofence

import "context"

type FenceRepository interface {
	// GetAssigned returns the fence assigned to the employee, or nil.
	GetAssigned(ctx context.Context, companyID, employeeID string) (*Fence, error)

	// GetDefault returns the active tenant default fence, or nil.
	GetDefault(ctx context.Context, companyID string) (*Fence, error)
}

type SettingsRepository interface {
	// Get returns DefaultSettings when the tenant has none stored.
	Get(ctx context.Context, companyID string) (Settings, error)
	Upsert(ctx context.Context, s Settings) (Settings, error)
}
