package attendance

import (
	"time"
)

type Method string

const (
	MethodMachine Method = "machine"
	MethodThumb   Method = "thumb"
	MethodFace    Method = "face"
	MethodUnknown Method = "unknown"
)

type EventType string

const (
	EventClockIn  EventType = "clockin"
	EventClockOut EventType = "clockout"
)

func (e EventType) IsValid() bool {
	return e == EventClockIn || e == EventClockOut
}

type GeoStamp struct {
	Latitude  float64
	Longitude float64
	AccuracyM *float64
}

// Record is one clock-in/out pair. ClockOut is nil while the shift is open.
type Record struct {
	ID               string
	CompanyID        string
	EmployeeID       string
	ClockIn          time.Time
	ClockOut         *time.Time
	DurationMinutes  int
	ClockInMethod    Method
	ClockOutMethod   *Method
	ClockInDeviceID  *string
	ClockOutDeviceID *string
	ClockInGeo       *GeoStamp
	ClockOutGeo      *GeoStamp
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r Record) IsOpen() bool {
	return r.ClockOut == nil
}

// DurationBetween returns whole minutes between in and out, never negative.
func DurationBetween(in, out time.Time) int {
	d := int(out.Sub(in) / time.Minute)
	if d < 0 {
		return 0
	}
	return d
}

// RawEvent is the dedup ledger entry of an ingested clock event.
type RawEvent struct {
	ID         string
	CompanyID  string
	EmployeeID string
	EventType  EventType
	OccurredAt time.Time
	SourceKey  string
	Channel    Channel
	DeviceID   *string
	RecordID   *string
	Payload    []byte
	CreatedAt  time.Time
}
