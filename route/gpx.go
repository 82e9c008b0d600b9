package route

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
)

// GPX exports segments as a single track with one track segment per day and
// a waypoint at the start of every day.
func GPX(name string, segments []Segment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrTooShort
	}

	g := &gpx.GPX{
		Version: "1.1",
		Creator: "voyage-planner",
		Name:    name,
	}

	track := gpx.GPXTrack{Name: name}
	for _, s := range segments {
		var seg gpx.GPXTrackSegment
		for _, p := range s.Line {
			seg.Points = append(seg.Points, gpx.GPXPoint{
				Point: gpx.Point{Latitude: p.Lat(), Longitude: p.Lon()},
			})
		}
		track.Segments = append(track.Segments, seg)

		start := s.Line[0]
		g.Waypoints = append(g.Waypoints, gpx.GPXPoint{
			Point:       gpx.Point{Latitude: start.Lat(), Longitude: start.Lon()},
			Name:        fmt.Sprintf("Day %d", s.Day),
			Description: fmt.Sprintf("%.0f NM", s.Distance),
		})
	}
	g.Tracks = []gpx.GPXTrack{track}

	return g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
