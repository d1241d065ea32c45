package geofence

import (
	"errors"
	"fmt"
)

var (
	ErrFenceRequired        = errors.New("a geofence is required but none is configured")
	ErrOutsideGeofence      = errors.New("location is outside the allowed geofence")
	ErrLocationTooImprecise = errors.New("location accuracy is too low, please retry")
	ErrLocationRequired     = errors.New("location is required, please retry")
	ErrFenceNotFound        = errors.New("geofence not found")
)

// OutsideError carries how far outside the fence the reading was.
type OutsideError struct {
	FenceID          string
	DistanceOutsideM *float64
}

func (e *OutsideError) Error() string {
	if e.DistanceOutsideM == nil {
		return ErrOutsideGeofence.Error()
	}
	return fmt.Sprintf("%s (%.0f m outside)", ErrOutsideGeofence.Error(), *e.DistanceOutsideM)
}

func (e *OutsideError) Unwrap() error {
	return ErrOutsideGeofence
}

// ImpreciseError carries the rejected and required accuracy.
type ImpreciseError struct {
	AccuracyM    float64
	MinAccuracyM int
}

func (e *ImpreciseError) Error() string {
	return fmt.Sprintf("%s (accuracy %.0f m, need %d m)", ErrLocationTooImprecise.Error(), e.AccuracyM, e.MinAccuracyM)
}

func (e *ImpreciseError) Unwrap() error {
	return ErrLocationTooImprecise
}
