package geo

import "math"

// Shape is a fence geometry: either a circle or a polygon ring.
type Shape struct {
	Center  *Point
	RadiusM float64
	Ring    []Point
}

type Result struct {
	Inside bool
	// DistanceOutsideM is nil when inside.
	DistanceOutsideM *float64
}

// Contains evaluates p against the shape. A circle takes precedence when a
// center is present.
func (s Shape) Contains(p Point) Result {
	if s.Center != nil {
		d := HaversineMeters(*s.Center, p)
		if d <= s.RadiusM {
			return Result{Inside: true}
		}
		out := math.Max(0, d-s.RadiusM)
		return Result{DistanceOutsideM: &out}
	}

	if InPolygon(p, s.Ring) {
		return Result{Inside: true}
	}
	out := DistanceToRingMeters(p, s.Ring)
	if math.IsInf(out, 1) {
		return Result{}
	}
	return Result{DistanceOutsideM: &out}
}
