package geofence

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
)

type GeofenceService interface {
	// Authorize decides whether a reading at time at may clock for the employee.
	// A nil reading means the client sent no location.
	Authorize(ctx context.Context, companyID, employeeID string, reading *Reading, at time.Time) (Decision, error)

	GetSettings(ctx context.Context, p auth.Principal) (SettingsResponse, error)
	UpdateSettings(ctx context.Context, p auth.Principal, req UpdateSettingsRequest) (SettingsResponse, error)
}
