package latlon

import (
	"math"

	"github.com/paulmach/orb"
)

type LatLonHaversine struct{}

func (LatLonHaversine) initialBearingTo(from, to LatLon) float64 {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)

	Δλ := toRadians(to.Lon - from.Lon)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)
	y := math.Sin(Δλ) * math.Cos(φ2)
	θ := math.Atan2(y, x)

	b := toDegrees(θ)

	return wrap360(b)
}

// DistanceTo returns the great-circle distance in nautical miles.
func (LatLonHaversine) DistanceTo(from, to LatLon) float64 {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)
	Δφ := φ2 - φ1

	Δλ := toRadians(to.Lon - from.Lon)

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	δ := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	d := R * δ

	return d
}

// BearingTo returns the initial great-circle course in degrees [0, 360).
func (hav LatLonHaversine) BearingTo(from, to LatLon) float64 {
	return hav.initialBearingTo(from, to)
}

// Distance is DistanceTo for two (lon, lat) points.
func Distance(p1, p2 orb.Point) float64 {
	return LatLonHaversine{}.DistanceTo(FromPoint(p1), FromPoint(p2))
}

// Length sums the leg distances of a polyline.
func Length(line orb.LineString) float64 {
	d := 0.0
	for i := 1; i < len(line); i++ {
		d += Distance(line[i-1], line[i])
	}
	return d
}
