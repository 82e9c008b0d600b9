package reach

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrMalformedFeature = errors.New("reach feature has no valid day")

// MaxDay is the last day a reach feature may carry.
const MaxDay = 366

var (
	colors    = [...]string{"#2563eb", "#3b82f6", "#60a5fa", "#93c5fd", "#bfdbfe"}
	weights   = [...]float64{4, 3, 2, 2, 1}
	opacities = [...]float64{1.0, 0.8, 0.6, 0.5, 0.4}
)

type Style struct {
	Color   string  `json:"color"`
	Weight  float64 `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// Layer is one day of a reach envelope ready to be drawn.
type Layer struct {
	Day        int               `json:"day"`
	DistanceNm float64           `json:"distanceNm"`
	Style      Style             `json:"style"`
	Tooltip    string            `json:"tooltip"`
	Geometry   *geojson.Geometry `json:"geometry"`
}

// RampIndex maps a 1-based day to its entry in the style ramps. Days past the
// end of the ramp reuse the last entry.
func RampIndex(day int) int {
	idx := day - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(colors)-1 {
		idx = len(colors) - 1
	}
	return idx
}

func StyleForDay(day int) Style {
	idx := RampIndex(day)
	return Style{
		Color:   colors[idx],
		Weight:  weights[idx],
		Opacity: opacities[idx],
	}
}

func Tooltip(day int, distanceNm float64) string {
	return fmt.Sprintf("Day %d Reach<br>%.0f NM", day, distanceNm)
}

// Render styles every feature of a day tagged collection. Live reachability
// results and precalculated files share the same shape.
func Render(fc *geojson.FeatureCollection) ([]Layer, orb.Bound, error) {
	var bound orb.Bound
	if fc == nil {
		return nil, bound, ErrMalformedFeature
	}

	layers := make([]Layer, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			return nil, orb.Bound{}, fmt.Errorf("feature %d: %w", i, ErrMalformedFeature)
		}
		day, ok := number(f.Properties, "day")
		if !ok || day < 1 || day > MaxDay || day != math.Trunc(day) {
			return nil, orb.Bound{}, fmt.Errorf("feature %d: %w", i, ErrMalformedFeature)
		}
		dist, _ := number(f.Properties, "distance_nm")

		d := int(day)
		layers = append(layers, Layer{
			Day:        d,
			DistanceNm: dist,
			Style:      StyleForDay(d),
			Tooltip:    Tooltip(d, dist),
			Geometry:   geojson.NewGeometry(f.Geometry),
		})

		if i == 0 {
			bound = f.Geometry.Bound()
		} else {
			bound = bound.Union(f.Geometry.Bound())
		}
	}

	return layers, bound, nil
}

func number(p geojson.Properties, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
