package shift

import "errors"

var (
	ErrNoShiftConfigured  = errors.New("no shift configured for employee")
	ErrShiftNotFound      = errors.New("shift not found")
	ErrInvalidWorkingDays = errors.New("invalid working days")
	// ErrWorkingDaysUnset is returned when a shift has no working days and
	// no fallback policy is configured.
	ErrWorkingDaysUnset = errors.New("shift has no working days and no fallback is configured")
)
