package attendance

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
)

// Ingestor validates and records clock events from every channel.
type Ingestor interface {
	IngestDevice(ctx context.Context, e DeviceEvent) (IngestResult, error)
	ClockUser(ctx context.Context, p auth.Principal, e UserEvent) (IngestResult, error)
	ClockBiometric(ctx context.Context, p auth.Principal, e BiometricEvent) (IngestResult, error)
}

// Tracker answers whether an employee currently has an open shift.
type Tracker interface {
	OpenShift(ctx context.Context, p auth.Principal, employeeID string) (OpenShiftResponse, error)
}

// Shift minutes are nil when no shift could be resolved.
type IngestResult struct {
	Record            Record
	Duplicate         bool
	LateMinutes       *int
	EarlyLeaveMinutes *int
}
