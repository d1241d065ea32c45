package device

import "context"

type DeviceRepository interface {
	// GetByID looks a device up across tenants; the device id is globally unique.
	GetByID(ctx context.Context, id string) (Device, error)
	ListActiveByKind(ctx context.Context, kind Kind) ([]Device, error)
	TouchLastSeen(ctx context.Context, id string) error
}
