package geo

import (
	"math"
	"sort"
)

const earthRadiusMeters = 6371000

type Point struct {
	Lat float64
	Lng float64
}

// Vertex is a polygon corner. Seq defines the edge order.
type Vertex struct {
	Seq int
	Point
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Ring returns the vertices ordered by Seq.
func Ring(vertices []Vertex) []Point {
	sorted := make([]Vertex, len(vertices))
	copy(sorted, vertices)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	ring := make([]Point, len(sorted))
	for i, v := range sorted {
		ring[i] = v.Point
	}
	return ring
}

// InPolygon applies the even-odd rule. Longitude is x, latitude is y.
func InPolygon(p Point, ring []Point) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat

		if (yi > p.Lat) != (yj > p.Lat) {
			xCross := (xj-xi)*(p.Lat-yi)/(yj-yi) + xi
			if p.Lng < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// DistanceToRingMeters returns the distance from p to the nearest polygon edge.
// Edges are projected onto a local plane scaled by meters-per-degree at p's latitude.
func DistanceToRingMeters(p Point, ring []Point) float64 {
	if len(ring) == 0 {
		return math.Inf(1)
	}
	if len(ring) == 1 {
		return HaversineMeters(p, ring[0])
	}

	mLat, mLng := metersPerDegree(p.Lat)
	project := func(q Point) (float64, float64) {
		return (q.Lng - p.Lng) * mLng, (q.Lat - p.Lat) * mLat
	}

	best := math.Inf(1)
	for i := range ring {
		ax, ay := project(ring[i])
		bx, by := project(ring[(i+1)%len(ring)])
		if d := segmentDistanceToOrigin(ax, ay, bx, by); d < best {
			best = d
		}
	}
	return best
}

func segmentDistanceToOrigin(ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(ax, ay)
	}

	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(ax+t*dx, ay+t*dy)
}

func metersPerDegree(lat float64) (float64, float64) {
	phi := toRad(lat)
	mLat := 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi)
	mLng := 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi)
	return mLat, mLng
}

func toRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
