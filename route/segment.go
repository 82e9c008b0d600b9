package route

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/a-bouts/voyage-planner/latlon"
)

var (
	ErrTooShort     = errors.New("route needs at least two points")
	ErrInvalidSpeed = errors.New("speed must be a positive number of knots")
	ErrTooManyDays  = errors.New("voyage exceeds the maximum number of days")
)

// MaxDays bounds the number of day segments of one voyage.
const MaxDays = 366

// Palette colours day segments by day index modulo its length.
var Palette = []string{"#bfdbfe", "#93c5fd", "#60a5fa", "#3b82f6", "#2563eb", "#1d4ed8"}

// Geometry is a route as returned by the routing service.
type Geometry struct {
	Line   orb.LineString `json:"line"`
	Length float64        `json:"length"`
}

// Segment covers one nominal travel day, except the last one which may be
// shorter.
type Segment struct {
	Day        int            `json:"day"`
	Line       orb.LineString `json:"line"`
	ColorIndex int            `json:"colorIndex"`
	Color      string         `json:"color"`
	Distance   float64        `json:"distance"`
}

// Split cuts line into one segment per day travelled at speed knots.
// Boundary points are interpolated linearly inside the leg they fall in.
func Split(line orb.LineString, speed float64) ([]Segment, error) {
	if len(line) < 2 {
		return nil, ErrTooShort
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		return nil, ErrInvalidSpeed
	}

	perDay := speed * 24.0
	if latlon.Length(line)/perDay > MaxDays {
		return nil, ErrTooManyDays
	}

	var segments []Segment
	current := orb.LineString{line[0]}
	accumulated := 0.0

	closeSegment := func() {
		idx := len(segments)
		segments = append(segments, Segment{
			Day:        idx + 1,
			Line:       current,
			ColorIndex: idx % len(Palette),
			Color:      Palette[idx%len(Palette)],
			Distance:   latlon.Length(current),
		})
	}

	for i := 0; i < len(line)-1; i++ {
		p1 := line[i]
		p2 := line[i+1]
		leg := latlon.Distance(p1, p2)
		consumed := false

		// leg > 0 keeps zero-length legs out of the loop
		for leg > 0 && accumulated+leg >= perDay {
			needed := perDay - accumulated
			ratio := needed / leg

			cut := p2
			if ratio < 1 {
				cut = latlon.Lerp(p1, p2, ratio)
			}

			current = append(current, cut)
			closeSegment()

			current = orb.LineString{cut}
			p1 = cut
			leg -= needed
			accumulated = 0

			if cut == p2 {
				leg = 0
				consumed = true
			}
		}

		if !consumed {
			current = append(current, p2)
		}
		accumulated += leg
	}

	if len(current) > 1 {
		closeSegment()
	}

	return segments, nil
}

// FeatureCollection renders segments as day tagged line strings.
func FeatureCollection(segments []Segment) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range segments {
		f := geojson.NewFeature(s.Line)
		f.Properties["day"] = s.Day
		f.Properties["color"] = s.Color
		f.Properties["distance_nm"] = s.Distance
		fc.Append(f)
	}
	return fc
}

// Bound covers all segments.
func Bound(segments []Segment) orb.Bound {
	var b orb.Bound
	for i, s := range segments {
		if i == 0 {
			b = s.Line.Bound()
			continue
		}
		b = b.Union(s.Line.Bound())
	}
	return b
}
