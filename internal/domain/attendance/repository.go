package attendance

import (
	"context"
	"time"
)

// RecordRepository persists attendance records.
// All methods include companyID to prevent cross-company data access.
type RecordRepository interface {
	// GetOpen returns the employee's open record, or nil.
	GetOpen(ctx context.Context, companyID, employeeID string) (*Record, error)

	// Create inserts an open record. It returns ErrOpenShiftExists when the
	// one-open-record-per-employee constraint rejects it.
	Create(ctx context.Context, r Record) (Record, error)

	// Close fills the clock-out side of an open record.
	Close(ctx context.Context, r Record) (Record, error)

	GetByID(ctx context.Context, id, companyID string) (Record, error)

	// ListByClockIn returns records whose clock_in is in [from, to), ordered by clock_in.
	ListByClockIn(ctx context.Context, companyID, employeeID string, from, to time.Time) ([]Record, error)

	// ListStaleOpen returns open records whose clock_in is before cutoff.
	ListStaleOpen(ctx context.Context, cutoff time.Time) ([]Record, error)
}

type RawEventRepository interface {
	// Insert records e unless an identical event exists. It returns
	// inserted=false and the prior event on conflict.
	Insert(ctx context.Context, e RawEvent) (inserted bool, prior RawEvent, err error)
	AttachRecord(ctx context.Context, id, recordID string) error

	// Seen reports whether a punch from sourceKey at occurredAt was already
	// ingested for the employee, in either direction.
	Seen(ctx context.Context, companyID, employeeID, sourceKey string, occurredAt time.Time) (bool, error)
}

// DayInvalidator drops the cached aggregation row of an employee-day.
type DayInvalidator interface {
	Invalidate(ctx context.Context, companyID, employeeID string, date time.Time) error
	// LockEmployee is held until the transaction ends; see day.CacheRepository.
	LockEmployee(ctx context.Context, companyID, employeeID string) error
}

// DirtyNotifier announces employee-days that need recomputation.
type DirtyNotifier interface {
	NotifyDirty(ctx context.Context, companyID, employeeID string, date time.Time)
}

// OpenShiftBroadcaster pushes open-shift transitions to live subscribers.
type OpenShiftBroadcaster interface {
	BroadcastOpenShift(companyID, employeeID string, open bool, record *Record)
}
