package attendance

import "errors"

// Attendance domain errors
var (
	ErrInvalidDeviceCredential = errors.New("invalid device credential")
	ErrUnknownEmployee         = errors.New("unknown employee")
	ErrOpenShiftExists         = errors.New("open shift exists")
	ErrNoOpenShift             = errors.New("no open shift")
	ErrRecordNotFound          = errors.New("attendance record not found")
	ErrClockOutBeforeClockIn   = errors.New("clock-out precedes the open clock-in")

	// ErrDuplicateEvent marks a replayed event. Ingest reports it as an
	// idempotent success, never as a failure.
	ErrDuplicateEvent = errors.New("duplicate event")
)
