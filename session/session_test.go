package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/latlon"
	"github.com/a-bouts/voyage-planner/reach"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/a-bouts/voyage-planner/waypoint"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find[T Instruction](out []Instruction) (T, bool) {
	for _, i := range out {
		if v, ok := i.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func all[T Instruction](out []Instruction) []T {
	var found []T
	for _, i := range out {
		if v, ok := i.(T); ok {
			found = append(found, v)
		}
	}
	return found
}

func command[T Command](cmds []Command) (T, bool) {
	for _, c := range cmds {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func button(t *testing.T, out []Instruction) SetButton {
	require.NotEmpty(t, out)
	b, ok := out[len(out)-1].(SetButton)
	require.True(t, ok, "last instruction is %T", out[len(out)-1])
	return b
}

type harness struct {
	t   *testing.T
	ctx context.Context
	s   *Session
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, ctx: context.Background(), s: New("test", nil)}
}

func (h *harness) do(in Intent) ([]Instruction, []Command) {
	return h.s.Update(h.ctx, in)
}

func (h *harness) set(role waypoint.Role, lat, lng float64) {
	out, _ := h.do(EnterCoordinates{Role: role, Lat: lat, Lng: lng})
	_, failed := find[Alert](out)
	require.False(h.t, failed)
}

// meridian is a polyline of n points along longitude lon totalling nm.
func meridian(lon float64, nm float64, n int) orb.LineString {
	span := nm / (latlon.R * math.Pi / 180)
	line := make(orb.LineString, n)
	for i := range line {
		line[i] = orb.Point{lon, span * float64(i) / float64(n-1)}
	}
	return line
}

func (h *harness) loadRoute(nm float64) []Instruction {
	_, cmds := h.do(Calculate{})
	fetch, ok := command[FetchRoute](cmds)
	require.True(h.t, ok)
	out, _ := h.do(RouteLoaded{Token: fetch.Token, Geometry: route.Geometry{Line: meridian(1, nm, 10), Length: nm}})
	return out
}

func TestStartRendersInitialState(t *testing.T) {
	h := newHarness(t)
	out, cmds := h.do(Start{})
	assert.Empty(t, cmds)

	mode, ok := find[SetMode](out)
	require.True(t, ok)
	assert.Equal(t, ModeRoute, mode.Mode)
	assert.True(t, mode.Panels.Destination)

	v, ok := find[SetVessel](out)
	require.True(t, ok)
	assert.Equal(t, 10.0, v.Speed)
	assert.Equal(t, "selected", v.Kind)

	r, ok := find[SetReachInputs](out)
	require.True(t, ok)
	assert.Equal(t, SetReachInputs{Days: 3, Speed: 10}, r)

	assert.Equal(t, SetButton{Enabled: false, Label: "Calculate Route"}, button(t, out))
}

func TestButtonMatchesModeTable(t *testing.T) {
	roles := []waypoint.Role{waypoint.Origin, waypoint.Mid, waypoint.Destination}
	for _, mode := range []Mode{ModeRoute, ModeReach} {
		for mask := 0; mask < 8; mask++ {
			t.Run(fmt.Sprintf("%s/%03b", mode, mask), func(t *testing.T) {
				h := newHarness(t)
				h.do(SwitchMode{Mode: mode})
				present := map[waypoint.Role]bool{}
				for i, role := range roles {
					if mask&(1<<i) != 0 {
						h.set(role, float64(i), float64(i))
						present[role] = true
					}
				}
				out, _ := h.do(Focus{Role: waypoint.Origin})

				want := present[waypoint.Origin]
				if mode == ModeRoute {
					want = want && present[waypoint.Destination]
				}
				assert.Equal(t, want, button(t, out).Enabled)
				assert.Equal(t, want, h.s.Ready())
			})
		}
	}
}

func TestButtonInSavedMode(t *testing.T) {
	h := newHarness(t)
	_, cmds := h.do(SwitchMode{Mode: ModeSaved})
	index, ok := command[FetchPrecalcIndex](cmds)
	require.True(t, ok)

	out, _ := h.do(PrecalcIndexLoaded{Token: index.Token, Ports: []client.PrecalcPort{
		{Name: "Gijon", Lat: 43.56, Lng: -5.69, Speeds: []float64{10, 12}},
	}})
	assert.False(t, button(t, out).Enabled)

	out, _ = h.do(SelectSavedPort{Name: "Gijon"})
	assert.False(t, button(t, out).Enabled)
	fly, ok := find[FlyTo](out)
	require.True(t, ok)
	assert.Equal(t, 6, fly.Zoom)

	out, _ = h.do(SelectSavedSpeed{Speed: 11})
	assert.False(t, button(t, out).Enabled)
	_, alerted := find[Alert](out)
	assert.True(t, alerted)

	out, _ = h.do(SelectSavedSpeed{Speed: 12})
	assert.Equal(t, SetButton{Enabled: true, Label: "Load Distance"}, button(t, out))

	out, _ = h.do(SelectSavedPort{Name: ""})
	assert.False(t, button(t, out).Enabled)

	_, cmds = h.do(SwitchMode{Mode: ModeSaved})
	_, refetch := command[FetchPrecalcIndex](cmds)
	assert.False(t, refetch, "index is loaded once")
}

func TestFourDayScenario(t *testing.T) {
	h := newHarness(t)
	h.do(SelectVesselClass{Index: 5})
	require.Equal(t, 12.0, h.s.Vessel().Speed())

	h.set(waypoint.Origin, 51.0, 1.0)
	h.set(waypoint.Destination, 51.0, 2.0)

	_, cmds := h.do(Calculate{})
	fetch, ok := command[FetchRoute](cmds)
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 51}, fetch.Request.Origin)
	assert.Equal(t, orb.Point{2, 51}, fetch.Request.Destination)
	assert.Nil(t, fetch.Request.Midpoint)

	out, _ := h.do(RouteLoaded{Token: fetch.Token, Geometry: route.Geometry{Line: meridian(1, 1000, 10), Length: 1000}})
	draw, ok := find[DrawRoute](out)
	require.True(t, ok)
	assert.Equal(t, 4, draw.Days)
	assert.Equal(t, 4.0, draw.Weight)
	assert.Equal(t, "5, 5", draw.Dash)
	assert.Len(t, draw.Features.Features, 4)

	segs := h.s.Segments()
	require.Len(t, segs, 4)
	assert.Less(t, segs[3].Distance, segs[0].Distance)

	summary, ok := find[ShowSummary](out)
	require.True(t, ok)
	assert.Equal(t, "1000 NM", summary.Distance)
	assert.Equal(t, "000°", summary.Course)

	est, ok := find[SetEstimate](out)
	require.True(t, ok)
	assert.Equal(t, "3d 11h", est.Time)
	assert.Equal(t, "39.9 MT", est.Fuel)

	wb, ok := find[SetWeatherButton](out)
	require.True(t, ok)
	assert.True(t, wb.Visible)
	assert.Equal(t, SetButton{Enabled: true, Label: "Calculate Route"}, button(t, out))
}

func TestMidpointIsSent(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Mid, 50, 0)
	h.set(waypoint.Destination, 49, -2)
	_, cmds := h.do(Calculate{})
	fetch, ok := command[FetchRoute](cmds)
	require.True(t, ok)
	require.NotNil(t, fetch.Request.Midpoint)
	assert.Equal(t, orb.Point{0, 50}, *fetch.Request.Midpoint)
}

func TestEnterCoordinatesRejectsLat95(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 10, 10)

	out, cmds := h.do(EnterCoordinates{Role: waypoint.Origin, Lat: 95, Lng: 10})
	assert.Empty(t, cmds)
	alert, ok := find[Alert](out)
	require.True(t, ok)
	assert.Equal(t, AlertValidation, alert.Kind)
	assert.Equal(t, invalidCoordinates, alert.Message)
	assert.Empty(t, all[PlaceMarker](out))
	assert.Empty(t, all[RemoveMarker](out))

	wp, ok := h.s.Waypoint(waypoint.Origin)
	require.True(t, ok)
	assert.Equal(t, 10.0, wp.Position.Lat)
	assert.Equal(t, "Lat: 10.0000, Lng: 10.0000", wp.Label)

	out, _ = h.do(EnterCoordinates{Role: waypoint.Destination, Lat: 95, Lng: 0})
	_, ok = find[Alert](out)
	assert.True(t, ok)
	_, ok = h.s.Waypoint(waypoint.Destination)
	assert.False(t, ok)
}

func TestMapClicksFillRolesInOrder(t *testing.T) {
	h := newHarness(t)

	out, _ := h.do(MapClick{Lat: 51, Lng: 1})
	m, ok := find[PlaceMarker](out)
	require.True(t, ok)
	assert.Equal(t, waypoint.Origin, m.Role)
	assert.Equal(t, waypoint.MapLabel, m.Label)
	assert.Equal(t, "51.0000° N, 1.0000° E", m.Coords)

	out, _ = h.do(MapClick{Lat: 51, Lng: 2})
	m, _ = find[PlaceMarker](out)
	assert.Equal(t, waypoint.Destination, m.Role)
	assert.True(t, button(t, out).Enabled)

	out, _ = h.do(MapClick{Lat: 52, Lng: 3})
	m, _ = find[PlaceMarker](out)
	assert.Equal(t, waypoint.Origin, m.Role, "overwrites the active role")
	rm, ok := find[RemoveMarker](out)
	require.True(t, ok)
	assert.Equal(t, waypoint.Origin, rm.Role)

	h.do(SetInputKind{Role: waypoint.Mid, Kind: waypoint.InputMap})
	out, _ = h.do(MapClick{Lat: 50, Lng: 0})
	m, _ = find[PlaceMarker](out)
	assert.Equal(t, waypoint.Mid, m.Role)
	out, _ = h.do(MapClick{Lat: 50.5, Lng: 0.5})
	m, _ = find[PlaceMarker](out)
	assert.Equal(t, waypoint.Mid, m.Role, "mid stays locked")
}

func TestReachDayThreeUsesThirdRampEntry(t *testing.T) {
	h := newHarness(t)
	out, _ := h.do(SwitchMode{Mode: ModeReach})
	assert.Equal(t, SetButton{Enabled: false, Label: "Generate Reachability"}, button(t, out))

	h.set(waypoint.Origin, 43.5, -5.7)
	h.do(SetReachParams{Days: 0, Speed: 11})

	_, cmds := h.do(Calculate{})
	fetch, ok := command[FetchReach](cmds)
	require.True(t, ok)
	assert.Equal(t, client.ReachRequest{Lat: 43.5, Lng: -5.7, Speed: 11, Days: 3}, fetch.Request)

	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.LineString{{-5.7, 43.5}, {-4, 45}})
	f.Properties["day"] = 3.0
	f.Properties["distance_nm"] = 792.4
	fc.Append(f)

	out, _ = h.do(ReachLoaded{Token: fetch.Token, Features: fc})
	draw, ok := find[DrawReach](out)
	require.True(t, ok)
	require.Len(t, draw.Layers, 1)
	assert.Equal(t, reach.StyleForDay(3), draw.Layers[0].Style)
	assert.Equal(t, "#60a5fa", draw.Layers[0].Style.Color)
	assert.Equal(t, "Day 3 Reach<br>792 NM", draw.Layers[0].Tooltip)

	summary, ok := find[ShowSummary](out)
	require.True(t, ok)
	assert.Equal(t, "Reachability Area", summary.Title)
	assert.False(t, summary.Rows)
}

func TestModeSwitchDropsPendingResult(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)

	out, cmds := h.do(Calculate{})
	assert.Equal(t, SetButton{Enabled: false, Label: "Calculating..."}, button(t, out))
	fetch, _ := command[FetchRoute](cmds)

	_, again := h.do(Calculate{})
	assert.Empty(t, again, "busy button does not issue twice")

	out, _ = h.do(SwitchMode{Mode: ModeReach})
	_, cleared := find[ClearLayers](out)
	assert.True(t, cleared)
	assert.Equal(t, SetButton{Enabled: true, Label: "Generate Reachability"}, button(t, out))

	out, _ = h.do(RouteLoaded{Token: fetch.Token, Geometry: route.Geometry{Line: meridian(1, 100, 3), Length: 100}})
	_, drawn := find[DrawRoute](out)
	assert.False(t, drawn)
	assert.Nil(t, h.s.Segments())

	out, _ = h.do(RequestFailed{Token: fetch.Token, Err: errors.New("late")})
	_, alerted := find[Alert](out)
	assert.False(t, alerted)
}

func TestFailedRouteKeepsPreviousRoute(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(500)
	before := h.s.Segments()
	require.NotEmpty(t, before)

	_, cmds := h.do(Calculate{})
	fetch, _ := command[FetchRoute](cmds)
	out, _ := h.do(RequestFailed{Token: fetch.Token, Err: &client.Error{Op: "route", Status: http.StatusInternalServerError}})

	alert, ok := find[Alert](out)
	require.True(t, ok)
	assert.Equal(t, AlertNetwork, alert.Kind)
	assert.Equal(t, "Routing failed: route: HTTP 500", alert.Message)
	_, cleared := find[ClearLayers](out)
	assert.False(t, cleared)
	assert.Equal(t, before, h.s.Segments())
	assert.Equal(t, 500.0, h.s.Distance())
	assert.Equal(t, SetButton{Enabled: true, Label: "Calculate Route"}, button(t, out))
}

func TestNearZeroSpeedIsRejected(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(600)
	before := h.s.Segments()
	require.NotEmpty(t, before)

	h.do(SetVesselSpeed{Knots: 1e-9})
	require.Equal(t, 1e-9, h.s.Vessel().Speed())

	out := h.loadRoute(600)
	_, drawn := find[DrawRoute](out)
	assert.False(t, drawn)
	alert, ok := find[Alert](out)
	require.True(t, ok)
	assert.Equal(t, AlertNetwork, alert.Kind)
	assert.Equal(t, "Routing failed: "+route.ErrTooManyDays.Error(), alert.Message)
	assert.Equal(t, before, h.s.Segments())
	assert.True(t, button(t, out).Enabled)
}

func TestCourse(t *testing.T) {
	assert.Equal(t, "090°", course(orb.LineString{{0, 0}, {10, 0}}))
	assert.Equal(t, "270°", course(orb.LineString{{0, 0}, {-10, 0}, {-10, 5}}))
	assert.Equal(t, "", course(orb.LineString{{0, 0}}))
}

func TestTimeoutIsReported(t *testing.T) {
	h := newHarness(t)
	h.do(SwitchMode{Mode: ModeReach})
	h.set(waypoint.Origin, 1, 1)
	_, cmds := h.do(Calculate{})
	fetch, _ := command[FetchReach](cmds)

	out, _ := h.do(RequestFailed{Token: fetch.Token, Err: fmt.Errorf("reachability: %w", context.DeadlineExceeded)})
	alert, ok := find[Alert](out)
	require.True(t, ok)
	assert.Equal(t, "Reachability failed: request timed out", alert.Message)
}

func TestPrecalcNotProcessed(t *testing.T) {
	h := newHarness(t)
	_, cmds := h.do(SwitchMode{Mode: ModeSaved})
	index, _ := command[FetchPrecalcIndex](cmds)
	h.do(PrecalcIndexLoaded{Token: index.Token, Ports: []client.PrecalcPort{{Name: "Le Havre", Speeds: []float64{12}}}})
	h.do(SelectSavedPort{Name: "Le Havre"})
	h.do(SelectSavedSpeed{Speed: 12})

	out, cmds := h.do(Calculate{})
	assert.Equal(t, "Loading...", button(t, out).Label)
	fetch, ok := command[FetchPrecalc](cmds)
	require.True(t, ok)
	assert.Equal(t, "Le Havre", fetch.Port)

	out, _ = h.do(RequestFailed{Token: fetch.Token, Err: &client.Error{Op: "precalc", Status: 404, Err: client.ErrNotProcessed}})
	alert, ok := find[Alert](out)
	require.True(t, ok)
	assert.Equal(t, AlertNotProcessed, alert.Kind)
	assert.Equal(t, "Failed to load precalculated data: "+notProcessed, alert.Message)
	assert.Equal(t, SetButton{Enabled: true, Label: "Load Distance"}, button(t, out))
}

func TestPrecalcIndexFailure(t *testing.T) {
	h := newHarness(t)
	_, cmds := h.do(SwitchMode{Mode: ModeSaved})
	index, _ := command[FetchPrecalcIndex](cmds)
	out, _ := h.do(RequestFailed{Token: index.Token, Err: errors.New("boom")})
	ports, ok := find[SetPrecalcPorts](out)
	require.True(t, ok)
	assert.True(t, ports.Failed)

	h.do(SwitchMode{Mode: ModeRoute})
	_, cmds = h.do(SwitchMode{Mode: ModeSaved})
	_, ok = command[FetchPrecalcIndex](cmds)
	assert.True(t, ok, "failed index is fetched again")
}

func TestStaleSearchIsDropped(t *testing.T) {
	h := newHarness(t)
	h.do(SetInputKind{Role: waypoint.Origin, Kind: waypoint.InputPort})

	_, cmds := h.do(SearchInput{Role: waypoint.Origin, Query: "ro"})
	first, ok := command[ScheduleSearch](cmds)
	require.True(t, ok)
	_, cmds = h.do(SearchInput{Role: waypoint.Origin, Query: "rot"})
	second, _ := command[ScheduleSearch](cmds)
	require.Greater(t, second.Gen, first.Gen)

	_, cmds = h.do(SearchSettled{Role: waypoint.Origin, Gen: first.Gen})
	assert.Empty(t, cmds)
	_, cmds = h.do(SearchSettled{Role: waypoint.Origin, Gen: second.Gen})
	fetch, ok := command[FetchSearch](cmds)
	require.True(t, ok)
	assert.Equal(t, "rot", fetch.Query)
	assert.Equal(t, "port", fetch.Filter)

	out, _ := h.do(SearchLoaded{Role: waypoint.Origin, Gen: first.Gen, Results: []client.Location{{Name: "Rouen"}}})
	_, shown := find[ShowSearchResults](out)
	assert.False(t, shown)

	out, _ = h.do(SearchLoaded{Role: waypoint.Origin, Gen: second.Gen, Results: []client.Location{{Name: "Rotterdam", Lat: 51.9, Lng: 4.5, Type: "port"}}})
	res, ok := find[ShowSearchResults](out)
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", res.Results[0].Name)

	out, _ = h.do(SearchInput{Role: waypoint.Origin, Query: "r"})
	_, hidden := find[HideSearchResults](out)
	assert.True(t, hidden)
}

func TestPickVesselResult(t *testing.T) {
	h := newHarness(t)
	h.do(SetInputKind{Role: waypoint.Destination, Kind: waypoint.InputVessel})
	_, cmds := h.do(SearchInput{Role: waypoint.Destination, Query: "sea"})
	sched, _ := command[ScheduleSearch](cmds)
	h.do(SearchLoaded{Role: waypoint.Destination, Gen: sched.Gen, Results: []client.Location{
		{Name: "Sea Voyager", Lat: 40, Lng: 5, Type: "vessel", IMO: "9321483", Dwt: 25000},
	}})

	out, _ := h.do(PickSearchResult{Role: waypoint.Destination, Index: 0})
	m, ok := find[PlaceMarker](out)
	require.True(t, ok)
	assert.Equal(t, "Sea Voyager", m.Label)

	v, ok := find[SetVessel](out)
	require.True(t, ok)
	assert.Equal(t, 11, v.Class)
	assert.Equal(t, 13.5, v.Speed)

	hist, ok := find[ShowHistory](out)
	require.True(t, ok)
	assert.Equal(t, history.Vessels, hist.Category)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "9321483", hist.Entries[0].IMO)

	out, _ = h.do(PickSearchResult{Role: waypoint.Destination, Index: 0})
	_, alerted := find[Alert](out)
	assert.True(t, alerted, "results are consumed")

	out, _ = h.do(PickHistory{Role: waypoint.Destination, Category: history.Vessels, Index: 0})
	_, placed := find[PlaceMarker](out)
	assert.True(t, placed)
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(300)
	require.Equal(t, 300.0, h.s.Distance())

	out, _ := h.do(Clear{})
	assert.Len(t, all[RemoveMarker](out), 2)
	_, cleared := find[ClearLayers](out)
	assert.True(t, cleared)
	assert.Equal(t, 0.0, h.s.Distance())
	assert.Nil(t, h.s.Segments())
	assert.Equal(t, waypoint.Origin, h.s.waypoints.Active())
	assert.False(t, button(t, out).Enabled)
}

func TestNewWaypointDiscardsResults(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(300)

	out, _ := h.do(MapClick{Lat: 52, Lng: 1})
	_, cleared := find[ClearLayers](out)
	assert.True(t, cleared)
	_, hidden := find[HideWeather](out)
	assert.True(t, hidden)
	assert.Nil(t, h.s.Segments())
}

func TestVesselChangeKeepsSegments(t *testing.T) {
	h := newHarness(t)
	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(480)
	segs := h.s.Segments()

	out, _ := h.do(SetVesselSpeed{Knots: 20})
	est, ok := find[SetEstimate](out)
	require.True(t, ok)
	assert.Equal(t, "1d 0h", est.Time)
	v, _ := find[SetVessel](out)
	assert.Equal(t, "manual", v.Kind)
	assert.Equal(t, segs, h.s.Segments())
	_, drawn := find[DrawRoute](out)
	assert.False(t, drawn)
}

func TestWeather(t *testing.T) {
	h := newHarness(t)
	_, cmds := h.do(CheckWeather{})
	assert.Empty(t, cmds, "no route yet")

	h.set(waypoint.Origin, 51, 1)
	h.set(waypoint.Destination, 51, 2)
	h.loadRoute(288)

	out, cmds := h.do(CheckWeather{})
	fetch, ok := command[FetchWeather](cmds)
	require.True(t, ok)
	assert.Equal(t, 288.0, fetch.Request.TotalDistance)
	assert.Equal(t, 10.0, fetch.Request.Speed)
	assert.Equal(t, 3.5, fetch.Request.BaseFuel)
	wb, _ := find[SetWeatherButton](out)
	assert.Equal(t, "Checking...", wb.Label)

	out, _ = h.do(WeatherLoaded{Token: fetch.Token, Report: client.WeatherReport{
		HTML: "<p>rough</p>", AvgWaveMeters: 3.2, ImpactLevel: 3, TotalDays: 1.5, TotalFuel: 6.31,
	}})
	w, ok := find[ShowWeather](out)
	require.True(t, ok)
	assert.Equal(t, "Dynamic Routing (15% Max Penalty)", w.Adjustment)
	assert.Equal(t, "3.2 m", w.Wave)
	assert.Equal(t, "1d 12h", w.Time)
	assert.Equal(t, "6.3 MT", w.Fuel)

	_, cmds = h.do(CheckWeather{})
	fetch, _ = command[FetchWeather](cmds)
	out, _ = h.do(WeatherLoaded{Token: fetch.Token, Report: client.WeatherReport{ImpactLevel: 1}})
	w, _ = find[ShowWeather](out)
	assert.Equal(t, "Calm seas expected", w.Adjustment)
}

func TestSaveAndReplayRoute(t *testing.T) {
	h := newHarness(t)
	h.do(MapClick{Lat: 51, Lng: 1})
	h.do(MapClick{Lat: 51, Lng: 2})
	h.loadRoute(42.4)

	out, _ := h.do(SaveSearch{})
	saved, ok := find[ShowSavedSearches](out)
	require.True(t, ok)
	require.Len(t, saved.Entries, 1)
	entry := saved.Entries[0]
	assert.Equal(t, "Map Origin ➔ Map Dest", entry.Name)
	assert.Equal(t, "42", entry.Distance)
	assert.NotEmpty(t, entry.ID)
	assert.Nil(t, entry.Mid)

	h.do(SwitchMode{Mode: ModeReach})
	h.do(Clear{})

	out, cmds := h.do(ReplaySaved{ID: entry.ID})
	assert.Equal(t, ModeRoute, h.s.Mode())
	assert.Len(t, all[PlaceMarker](out), 2)
	fetch, ok := command[FetchRoute](cmds)
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 51}, fetch.Request.Origin)
	assert.Equal(t, orb.Point{2, 51}, fetch.Request.Destination)
	assert.Equal(t, "Calculating...", button(t, out).Label)
}

func TestSaveAndReplayReach(t *testing.T) {
	h := newHarness(t)
	h.do(SwitchMode{Mode: ModeReach})
	h.do(MapClick{Lat: 43.5612, Lng: -5.6987})
	h.do(SetReachParams{Days: 5, Speed: 12.5})

	out, _ := h.do(SaveSearch{})
	saved, _ := find[ShowSavedSearches](out)
	require.Len(t, saved.Entries, 1)
	assert.Equal(t, "Map Point (43.56, -5.70)", saved.Entries[0].Name)

	h.do(Clear{})
	h.do(SetReachParams{Days: 1, Speed: 8})
	_, cmds := h.do(ReplaySaved{ID: saved.Entries[0].ID})
	fetch, ok := command[FetchReach](cmds)
	require.True(t, ok)
	assert.Equal(t, 5, fetch.Request.Days)
	assert.Equal(t, 12.5, fetch.Request.Speed)

	out, _ = h.do(ReplaySaved{ID: "missing"})
	_, alerted := find[Alert](out)
	assert.True(t, alerted)
}

func TestCustomPortFlow(t *testing.T) {
	h := newHarness(t)
	out, _ := h.do(ToggleCustomPortSelect{})
	cp, ok := find[CustomPort](out)
	require.True(t, ok)
	assert.True(t, cp.Selecting)
	assert.Equal(t, "None", cp.Coords)

	out, _ = h.do(MapClick{Lat: 51.85, Lng: -8.29})
	assert.Empty(t, all[PlaceMarker](out), "map click goes to the custom port")
	cp, _ = find[CustomPort](out)
	require.NotNil(t, cp.Position)
	assert.False(t, cp.CanSubmit)

	out, _ = h.do(SetCustomPort{Name: " Cobh ", Country: "IE"})
	cp, _ = find[CustomPort](out)
	assert.True(t, cp.CanSubmit)
	assert.Equal(t, "Cobh", cp.Name)

	_, cmds := h.do(SubmitCustomPort{})
	submit, ok := command[SubmitPort](cmds)
	require.True(t, ok)
	assert.Equal(t, client.NewPort{Name: "Cobh", Country: "IE", Lat: 51.85, Lng: -8.29}, submit.Port)

	_, again := h.do(SubmitCustomPort{})
	assert.Empty(t, again)

	out, cmds = h.do(PortAdded{Token: submit.Token, Port: submit.Port})
	cp, _ = find[CustomPort](out)
	assert.Equal(t, portAddedMessage, cp.Message)
	assert.False(t, cp.Selecting)
	assert.Nil(t, cp.Position)
	notify, ok := command[Notify](cmds)
	require.True(t, ok)
	assert.Contains(t, notify.Message, "Cobh")
}

func TestOverlayFailureUnchecks(t *testing.T) {
	h := newHarness(t)
	_, cmds := h.do(ToggleOverlay{Layer: OverlayVessels, On: true})
	fetch, ok := command[FetchOverlay](cmds)
	require.True(t, ok)

	out, _ := h.do(RequestFailed{Token: fetch.Token, Err: errors.New("down")})
	ov, ok := find[SetOverlay](out)
	require.True(t, ok)
	assert.Equal(t, SetOverlay{Layer: OverlayVessels, Checked: false}, ov)

	_, cmds = h.do(ToggleOverlay{Layer: OverlayPorts, On: true})
	fetch, _ = command[FetchOverlay](cmds)
	out, _ = h.do(OverlayLoaded{Token: fetch.Token, Layer: OverlayPorts, Points: []client.Location{{Name: "Gijon"}}})
	show, ok := find[ShowOverlay](out)
	require.True(t, ok)
	assert.Len(t, show.Points, 1)
}
