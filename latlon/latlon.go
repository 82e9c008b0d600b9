package latlon

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const π = math.Pi

// R is the mean Earth radius in nautical miles.
const R = 3440.065

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// FromPoint converts a (lon, lat) wire point.
func FromPoint(p orb.Point) LatLon {
	return LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

func (l LatLon) Point() orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// Valid reports whether l is finite and inside lat [-90,90], lon [-180,180].
func (l LatLon) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lon, 0) {
		return false
	}
	return -90 <= l.Lat && l.Lat <= 90 && -180 <= l.Lon && l.Lon <= 180
}

func (l LatLon) String() string {
	ns := "N"
	if l.Lat < 0 {
		ns = "S"
	}
	ew := "E"
	if l.Lon < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.4f° %s, %.4f° %s", math.Abs(l.Lat), ns, math.Abs(l.Lon), ew)
}

// Lerp interpolates linearly in each coordinate. It is not a geodesic
// interpolation and is only meant for short legs.
func Lerp(from, to orb.Point, f float64) orb.Point {
	return orb.Point{
		from[0] + (to[0]-from[0])*f,
		from[1] + (to[1]-from[1])*f,
	}
}

func toRadians(a float64) float64 {
	return a * π / 180.0
}

func toDegrees(a float64) float64 {
	return a * 180.0 / π
}

func wrap360(d float64) float64 {
	if 0.0 <= d && d < 360.0 {
		return d
	}
	d1 := d + 360.0
	d2 := d1 - float64(int(d1/360.0)*360)
	return d2
}
