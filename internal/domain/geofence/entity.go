package geofence

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

type FenceType string

const (
	FenceCircle  FenceType = "circle"
	FencePolygon FenceType = "polygon"
)

type Fence struct {
	ID        string
	CompanyID string
	Name      string
	Type      FenceType
	Active    bool
	IsDefault bool

	// Circle
	CenterLat *float64
	CenterLng *float64
	RadiusM   *float64

	// Polygon, ordered by Seq when evaluated
	Vertices []geo.Vertex

	// Window limits the fence to a daily interval in the tenant timezone.
	Window *clock.Window

	UpdatedAt time.Time
}

// Evaluable reports whether the fence carries enough geometry to test against.
func (f Fence) Evaluable() bool {
	switch f.Type {
	case FenceCircle:
		return f.CenterLat != nil && f.CenterLng != nil && f.RadiusM != nil
	case FencePolygon:
		return len(f.Vertices) >= 3
	}
	return false
}

// Shape converts the fence to evaluable geometry.
func (f Fence) Shape() geo.Shape {
	if f.Type == FenceCircle && f.CenterLat != nil && f.CenterLng != nil && f.RadiusM != nil {
		return geo.Shape{
			Center:  &geo.Point{Lat: *f.CenterLat, Lng: *f.CenterLng},
			RadiusM: *f.RadiusM,
		}
	}
	return geo.Shape{Ring: geo.Ring(f.Vertices)}
}

// AppliesAt reports whether the fence is enforced at local time t.
func (f Fence) AppliesAt(t time.Time) bool {
	if f.Window == nil {
		return true
	}
	return f.Window.Contains(clock.Of(t))
}

// Settings are the tenant geofencing policy.
type Settings struct {
	CompanyID         string
	Enabled           bool
	UpdateIntervalSec int
	// MinAccuracyM is the worst accepted accuracy radius. Nil disables the gate.
	MinAccuracyM    *int
	OfflineAfterSec int
	RequireFence    bool
	UpdatedAt       time.Time
}

// DefaultSettings applies to tenants that never saved settings.
func DefaultSettings(companyID string) Settings {
	return Settings{
		CompanyID:         companyID,
		Enabled:           false,
		UpdateIntervalSec: 30,
		OfflineAfterSec:   180,
		RequireFence:      false,
	}
}

// Reading is a reported device location.
type Reading struct {
	Latitude  float64
	Longitude float64
	AccuracyM *float64
}

func (r Reading) Point() geo.Point {
	return geo.Point{Lat: r.Latitude, Lng: r.Longitude}
}

// Decision is the outcome of an authorization that passed.
type Decision struct {
	// Required is false when no fence applied at the time of the event.
	Required bool
	FenceID  *string
	Inside   bool
}
