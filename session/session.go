package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/latlon"
	"github.com/a-bouts/voyage-planner/reach"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/a-bouts/voyage-planner/vessel"
	"github.com/a-bouts/voyage-planner/waypoint"
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

type Mode string

const (
	ModeRoute Mode = "route"
	ModeReach Mode = "reach"
	ModeSaved Mode = "saved"
)

func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

type Overlay string

const (
	OverlayPorts   Overlay = "ports"
	OverlayVessels Overlay = "vessels"
)

const (
	DefaultReachDays  = 3
	DefaultReachSpeed = 10.0

	flyToZoom   = 6
	routeWeight = 4
	routeDash   = "5, 5"
)

type modeTexts struct {
	panels      Panels
	instruction string
	label       string
	loading     string
	failure     string
}

var modes = map[Mode]modeTexts{
	ModeRoute: {
		panels:      Panels{Origin: true, Mid: true, Destination: true, Vessel: true},
		instruction: `Search for a Port/Vessel (e.g. "Rotterdam", "Sea Voyager") or click the map to set waypoints.`,
		label:       "Calculate Route",
		loading:     "Calculating...",
		failure:     "Routing failed: ",
	},
	ModeReach: {
		panels:      Panels{Origin: true, ReachParams: true},
		instruction: "Select an origin and specify navigation parameters to calculate maximum reach boundaries.",
		label:       "Generate Reachability",
		loading:     "Generating...",
		failure:     "Reachability failed: ",
	},
	ModeSaved: {
		panels:      Panels{Saved: true},
		instruction: "Select a precalculated port and speed to instantly view maximum navigation reach (up to 5 days).",
		label:       "Load Distance",
		loading:     "Loading...",
		failure:     "Failed to load precalculated data: ",
	},
}

const (
	invalidCoordinates = "Please enter valid coordinates (Lat: -90 to 90, Lng: -180 to 180)."
	notProcessed       = "Could not find precalculated file for this configuration. Ensure the background processing has finished."
	weatherLabel       = "Check Weather"
	weatherLoading     = "Checking..."
	weatherFailure     = "Failed to fetch weather: "
	addPortFailure     = "Error adding port: "
	portAddedMessage   = "Port added successfully!"
	noCoords           = "None"
)

type request int

const (
	reqCalculate request = iota
	reqWeather
	reqIndex
	reqAddPort
	reqPortsOverlay
	reqVesselsOverlay
)

func overlayRequest(o Overlay) (request, bool) {
	switch o {
	case OverlayPorts:
		return reqPortsOverlay, true
	case OverlayVessels:
		return reqVesselsOverlay, true
	}
	return 0, false
}

type customPort struct {
	selecting bool
	position  *latlon.LatLon
	name      string
	country   string
	message   string
}

// Session is the planner state of one user. It is not safe for concurrent
// use: a Loop owns it and feeds it intents one at a time.
type Session struct {
	ID string

	mode       Mode
	waypoints  *waypoint.Registry
	vessel     vessel.Profile
	reachDays  int
	reachSpeed float64

	ports      []client.PrecalcPort
	savedPort  *client.PrecalcPort
	savedSpeed float64

	geometry *route.Geometry
	segments []route.Segment
	layers   []reach.Layer
	weather  *client.WeatherReport
	distance float64

	seq     uint64
	pending map[request]uint64

	searchGen     map[waypoint.Role]uint64
	searchQuery   map[waypoint.Role]string
	searchResults map[waypoint.Role][]client.Location

	overlays map[Overlay]bool
	custom   customPort

	history *history.Store

	out  []Instruction
	cmds []Command
}

// New creates a session in route mode with no waypoints. A nil store keeps
// history in memory.
func New(id string, store *history.Store) *Session {
	if store == nil {
		store = history.NewStore(history.NewMemoryBackend(), id)
	}
	s := &Session{
		ID:            id,
		mode:          ModeRoute,
		vessel:        vessel.Default(),
		reachDays:     DefaultReachDays,
		reachSpeed:    DefaultReachSpeed,
		pending:       make(map[request]uint64),
		searchGen:     make(map[waypoint.Role]uint64),
		searchQuery:   make(map[waypoint.Role]string),
		searchResults: make(map[waypoint.Role][]client.Location),
		overlays:      make(map[Overlay]bool),
		history:       store,
	}
	s.waypoints = waypoint.NewRegistry(s)
	return s
}

type marker struct {
	s    *Session
	role waypoint.Role
}

func (m marker) Remove() {
	m.s.emit(RemoveMarker{Role: m.role})
}

// Place draws the marker of a waypoint.
func (s *Session) Place(role waypoint.Role, pos latlon.LatLon, label string) waypoint.Marker {
	s.emit(PlaceMarker{Role: role, Position: pos, Label: label, Coords: pos.String()})
	return marker{s: s, role: role}
}

func (s *Session) Mode() Mode                     { return s.mode }
func (s *Session) Vessel() vessel.Profile         { return s.vessel }
func (s *Session) Distance() float64              { return s.distance }
func (s *Session) Segments() []route.Segment      { return s.segments }
func (s *Session) Layers() []reach.Layer          { return s.layers }
func (s *Session) Weather() *client.WeatherReport { return s.weather }

func (s *Session) Waypoint(role waypoint.Role) (waypoint.Waypoint, bool) {
	return s.waypoints.Get(role)
}

// Ready reports whether the current mode has everything it needs to be
// calculated.
func (s *Session) Ready() bool {
	switch s.mode {
	case ModeRoute:
		return s.waypoints.Has(waypoint.Origin) && s.waypoints.Has(waypoint.Destination)
	case ModeReach:
		return s.waypoints.Has(waypoint.Origin)
	case ModeSaved:
		return s.savedPort != nil && s.savedSpeed > 0
	}
	return false
}

func (s *Session) Busy() bool {
	return s.pending[reqCalculate] != 0
}

func (s *Session) button() SetButton {
	texts := modes[s.mode]
	if s.Busy() {
		return SetButton{Enabled: false, Label: texts.loading}
	}
	return SetButton{Enabled: s.Ready(), Label: texts.label}
}

func (s *Session) log() *log.Entry {
	return log.WithFields(log.Fields{"session": s.ID, "mode": s.mode})
}

func (s *Session) emit(in ...Instruction) {
	s.out = append(s.out, in...)
}

func (s *Session) command(c Command) {
	s.cmds = append(s.cmds, c)
}

func (s *Session) alert(kind AlertKind, msg string) {
	s.emit(Alert{Kind: kind, Message: msg})
}

func (s *Session) issue(r request) uint64 {
	s.seq++
	s.pending[r] = s.seq
	return s.seq
}

func (s *Session) settle(r request, token uint64) bool {
	if token == 0 || s.pending[r] != token {
		return false
	}
	delete(s.pending, r)
	return true
}

func (s *Session) cancel(r request) {
	delete(s.pending, r)
}

func (s *Session) pendingRequest(token uint64) (request, bool) {
	for r, t := range s.pending {
		if t == token {
			return r, true
		}
	}
	return 0, false
}

// Update applies one intent and returns what to render and what to run.
// The action button state is always the last instruction.
func (s *Session) Update(ctx context.Context, in Intent) ([]Instruction, []Command) {
	s.out, s.cmds = nil, nil

	switch in := in.(type) {
	case Start:
		s.start(ctx)
	case SwitchMode:
		s.switchMode(in.Mode)
	case MapClick:
		s.mapClick(in.Lat, in.Lng)
	case SetInputKind:
		s.setInputKind(ctx, in.Role, in.Kind)
	case Focus:
		if err := s.waypoints.SetActive(in.Role); err != nil {
			s.alert(AlertValidation, err.Error())
		}
	case EnterCoordinates:
		s.enterCoordinates(in.Role, in.Lat, in.Lng)
	case SearchInput:
		s.searchInput(in.Role, in.Query)
	case SearchSettled:
		s.searchSettled(in.Role, in.Gen)
	case SearchLoaded:
		s.searchLoaded(in)
	case PickSearchResult:
		s.pickSearchResult(ctx, in.Role, in.Index)
	case PickHistory:
		s.pickHistory(ctx, in.Role, in.Category, in.Index)
	case Clear:
		s.clear()
	case SelectVesselClass:
		p, err := vessel.Select(in.Index)
		if err != nil {
			s.alert(AlertValidation, err.Error())
			break
		}
		s.vessel = p
		s.vesselChanged()
	case SetVesselSpeed:
		s.vessel = s.vessel.WithSpeed(in.Knots)
		s.vesselChanged()
	case SetVesselFuel:
		s.vessel = s.vessel.WithFuel(in.PerDay)
		s.vesselChanged()
	case SetReachParams:
		s.setReachParams(in.Days, in.Speed)
	case SelectSavedPort:
		s.selectSavedPort(in.Name)
	case SelectSavedSpeed:
		s.selectSavedSpeed(in.Speed)
	case Calculate:
		s.calculate()
	case CheckWeather:
		s.checkWeather()
	case SaveSearch:
		s.saveSearch(ctx)
	case ReplaySaved:
		s.replaySaved(ctx, in.ID)
	case ToggleOverlay:
		s.toggleOverlay(in.Layer, in.On)
	case ToggleCustomPortSelect:
		s.custom.selecting = !s.custom.selecting
		if !s.custom.selecting {
			s.custom.position = nil
		}
		s.emitCustomPort()
	case SetCustomPort:
		s.custom.name = strings.TrimSpace(in.Name)
		s.custom.country = strings.TrimSpace(in.Country)
		s.emitCustomPort()
	case SubmitCustomPort:
		s.submitCustomPort()
	case RouteLoaded:
		s.routeLoaded(in.Token, in.Geometry)
	case ReachLoaded:
		s.reachLoaded(in)
	case WeatherLoaded:
		s.weatherLoaded(in.Token, in.Report)
	case PrecalcIndexLoaded:
		if s.settle(reqIndex, in.Token) {
			s.ports = in.Ports
			s.emit(SetPrecalcPorts{Ports: in.Ports})
		}
	case OverlayLoaded:
		if r, ok := overlayRequest(in.Layer); ok && s.settle(r, in.Token) {
			s.emit(ShowOverlay{Layer: in.Layer, Points: in.Points})
		}
	case PortAdded:
		s.portAdded(in.Token, in.Port)
	case RequestFailed:
		s.requestFailed(in.Token, in.Err)
	default:
		s.log().Warnf("Unhandled intent %T", in)
	}

	s.emit(s.button())
	out, cmds := s.out, s.cmds
	s.out, s.cmds = nil, nil
	return out, cmds
}

func (s *Session) start(ctx context.Context) {
	s.emitMode()
	s.emitVessel()
	s.emit(SetReachInputs{Days: s.reachDays, Speed: s.reachSpeed})
	s.emitCustomPort()
	if saved, err := s.history.List(ctx, history.SavedSearches); err != nil {
		s.log().WithError(err).Warn("Unable to load saved searches")
	} else {
		s.emit(ShowSavedSearches{Entries: saved})
	}
}

func (s *Session) emitMode() {
	texts := modes[s.mode]
	s.emit(SetMode{Mode: s.mode, Panels: texts.panels, Instruction: texts.instruction})
}

func (s *Session) switchMode(m Mode) {
	if !m.Valid() {
		s.alert(AlertValidation, fmt.Sprintf("unknown mode %q", m))
		return
	}
	s.mode = m
	s.cancel(reqCalculate)
	s.cancel(reqWeather)
	s.discardResults()
	s.emitMode()

	if m == ModeSaved && len(s.ports) == 0 && s.pending[reqIndex] == 0 {
		s.command(FetchPrecalcIndex{Token: s.issue(reqIndex)})
	}
}

// discardResults drops the drawn route or reach layer and everything
// derived from it.
func (s *Session) discardResults() {
	s.geometry = nil
	s.segments = nil
	s.layers = nil
	s.weather = nil
	s.emit(
		ClearLayers{},
		HideSummary{},
		HideWeather{},
		SetWeatherButton{Visible: false, Enabled: true, Label: weatherLabel},
		SetSaveButton{Visible: false},
	)
}

func (s *Session) setWaypoint(role waypoint.Role, lat, lng float64, label string) error {
	if _, err := s.waypoints.Set(role, lat, lng, label); err != nil {
		return err
	}
	s.emit(SetInput{Role: role, Kind: s.waypoints.Input(role)}, HideSearchResults{Role: role})
	s.cancel(reqCalculate)
	s.cancel(reqWeather)
	s.discardResults()
	return nil
}

func (s *Session) mapClick(lat, lng float64) {
	if s.custom.selecting {
		pos := latlon.LatLon{Lat: lat, Lon: lng}
		if !pos.Valid() {
			s.alert(AlertValidation, invalidCoordinates)
			return
		}
		s.custom.position = &pos
		s.emitCustomPort()
		return
	}

	if err := s.setWaypoint(s.waypoints.ClickTarget(), lat, lng, waypoint.MapLabel); err != nil {
		s.alert(AlertValidation, invalidCoordinates)
	}
}

func category(kind waypoint.InputKind) (history.Category, bool) {
	switch kind {
	case waypoint.InputPort:
		return history.Ports, true
	case waypoint.InputVessel:
		return history.Vessels, true
	}
	return "", false
}

func (s *Session) setInputKind(ctx context.Context, role waypoint.Role, kind waypoint.InputKind) {
	if err := s.waypoints.SetInput(role, kind); err != nil {
		s.alert(AlertValidation, err.Error())
		return
	}
	s.emit(SetInput{Role: role, Kind: kind})
	if c, ok := category(kind); ok {
		s.showHistory(ctx, role, c)
	}
}

func (s *Session) showHistory(ctx context.Context, role waypoint.Role, c history.Category) {
	entries, err := s.history.List(ctx, c)
	if err != nil {
		s.log().WithError(err).Warnf("Unable to load %s history", c)
		return
	}
	s.emit(ShowHistory{Role: role, Category: c, Entries: entries})
}

func (s *Session) enterCoordinates(role waypoint.Role, lat, lng float64) {
	if !role.Valid() {
		s.alert(AlertValidation, waypoint.ErrUnknownRole.Error())
		return
	}
	if !(latlon.LatLon{Lat: lat, Lon: lng}).Valid() {
		s.alert(AlertValidation, invalidCoordinates)
		return
	}
	s.waypoints.SetActive(role)
	if err := s.setWaypoint(role, lat, lng, waypoint.ManualLabel(lat, lng)); err != nil {
		s.alert(AlertValidation, invalidCoordinates)
	}
}

func (s *Session) searchInput(role waypoint.Role, q string) {
	if !role.Valid() {
		s.alert(AlertValidation, waypoint.ErrUnknownRole.Error())
		return
	}
	s.searchGen[role]++
	s.searchQuery[role] = q
	if utf8.RuneCountInString(q) < 2 {
		delete(s.searchResults, role)
		s.emit(HideSearchResults{Role: role})
		return
	}
	s.command(ScheduleSearch{Role: role, Gen: s.searchGen[role]})
}

func (s *Session) searchSettled(role waypoint.Role, gen uint64) {
	if gen != s.searchGen[role] {
		return
	}
	filter := ""
	if kind := s.waypoints.Input(role); kind.Searchable() {
		filter = string(kind)
	}
	s.command(FetchSearch{Role: role, Gen: gen, Query: s.searchQuery[role], Filter: filter})
}

func (s *Session) searchLoaded(in SearchLoaded) {
	if in.Gen != s.searchGen[in.Role] {
		s.log().WithField("role", in.Role).Debug("Dropping stale search results")
		return
	}
	if in.Err != nil {
		s.log().WithError(in.Err).Warn("Search failed")
	}
	if in.Err != nil || len(in.Results) == 0 {
		delete(s.searchResults, in.Role)
		s.emit(HideSearchResults{Role: in.Role})
		return
	}
	s.searchResults[in.Role] = in.Results
	s.emit(ShowSearchResults{Role: in.Role, Results: in.Results})
}

func (s *Session) pickSearchResult(ctx context.Context, role waypoint.Role, idx int) {
	results := s.searchResults[role]
	if idx < 0 || idx >= len(results) {
		s.alert(AlertValidation, "no such search result")
		return
	}
	hit := results[idx]
	if err := s.setWaypoint(role, hit.Lat, hit.Lng, hit.Name); err != nil {
		s.alert(AlertValidation, invalidCoordinates)
		return
	}
	delete(s.searchResults, role)

	if hit.Type == "vessel" && hit.Dwt > 0 {
		if i, ok := vessel.ClosestByDwt(hit.Dwt); ok {
			s.vessel, _ = vessel.Select(i)
			s.vesselChanged()
		}
	}

	c, ok := category(s.waypoints.Input(role))
	if !ok {
		c = history.Category(hit.Type)
	}
	if !c.Valid() || c == history.SavedSearches {
		return
	}
	entry := history.Entry{
		Type:    hit.Type,
		Name:    hit.Name,
		Lat:     hit.Lat,
		Lng:     hit.Lng,
		Country: hit.Country,
		IMO:     string(hit.IMO),
		Dwt:     hit.Dwt,
		Length:  hit.Length,
		Beam:    hit.Beam,
	}
	s.record(ctx, role, c, entry)
}

func (s *Session) record(ctx context.Context, role waypoint.Role, c history.Category, e history.Entry) {
	entries, err := s.history.Record(ctx, c, e)
	if err != nil {
		s.log().WithError(err).Errorf("Unable to record %s history", c)
		return
	}
	s.emit(ShowHistory{Role: role, Category: c, Entries: entries})
}

func (s *Session) pickHistory(ctx context.Context, role waypoint.Role, c history.Category, idx int) {
	if c == history.SavedSearches {
		s.alert(AlertValidation, "saved searches are replayed, not picked")
		return
	}
	entries, err := s.history.List(ctx, c)
	if err != nil {
		s.alert(AlertValidation, err.Error())
		return
	}
	if idx < 0 || idx >= len(entries) {
		s.alert(AlertValidation, "no such history entry")
		return
	}
	e := entries[idx]
	if err := s.setWaypoint(role, e.Lat, e.Lng, e.Name); err != nil {
		s.alert(AlertValidation, invalidCoordinates)
		return
	}
	s.record(ctx, role, c, e)
}

func (s *Session) clear() {
	s.cancel(reqCalculate)
	s.cancel(reqWeather)
	s.waypoints.ClearAll()
	for _, role := range waypoint.Roles {
		s.searchGen[role]++
		delete(s.searchResults, role)
		s.emit(HideSearchResults{Role: role}, SetInput{Role: role, Kind: waypoint.InputMap})
	}
	s.discardResults()
	s.distance = 0
}

func (s *Session) emitVessel() {
	s.emit(SetVessel{
		Kind:  s.vessel.Kind.String(),
		Class: s.vessel.Class,
		Speed: s.vessel.Speed(),
		Fuel:  s.vessel.Fuel(),
	})
}

// vesselChanged refreshes the calm water estimate. The drawn day segments
// and any weather result are left alone until the next calculation.
func (s *Session) vesselChanged() {
	s.emitVessel()
	s.estimate()
}

func (s *Session) estimate() {
	if s.distance <= 0 {
		return
	}
	days, fuel := s.vessel.Estimate(s.distance)
	s.emit(SetEstimate{Time: vessel.FormatDays(days), Fuel: fmt.Sprintf("%.1f MT", fuel)})
}

func (s *Session) setReachParams(days int, speed float64) {
	if days <= 0 {
		days = DefaultReachDays
	}
	if !(speed > 0) || math.IsInf(speed, 1) {
		speed = DefaultReachSpeed
	}
	s.reachDays, s.reachSpeed = days, speed
	s.emit(SetReachInputs{Days: days, Speed: speed})
}

func (s *Session) selectSavedPort(name string) {
	s.savedSpeed = 0
	s.savedPort = nil
	if name == "" {
		s.emit(SetSavedSpeeds{})
		return
	}
	for i := range s.ports {
		if s.ports[i].Name == name {
			p := s.ports[i]
			s.savedPort = &p
			s.emit(
				SetSavedSpeeds{Port: p.Name, Speeds: p.Speeds},
				FlyTo{Position: latlon.LatLon{Lat: p.Lat, Lon: p.Lng}, Zoom: flyToZoom},
			)
			return
		}
	}
	s.emit(SetSavedSpeeds{})
	s.alert(AlertValidation, fmt.Sprintf("unknown precalculated port %q", name))
}

func (s *Session) selectSavedSpeed(speed float64) {
	s.savedSpeed = 0
	if speed == 0 {
		return
	}
	if s.savedPort == nil {
		s.alert(AlertValidation, "select a port first")
		return
	}
	for _, v := range s.savedPort.Speeds {
		if v == speed {
			s.savedSpeed = speed
			return
		}
	}
	s.alert(AlertValidation, fmt.Sprintf("no precalculated data for %.1f knots", speed))
}

func (s *Session) calculate() {
	if s.Busy() || !s.Ready() {
		return
	}
	token := s.issue(reqCalculate)

	switch s.mode {
	case ModeRoute:
		o, _ := s.waypoints.Get(waypoint.Origin)
		d, _ := s.waypoints.Get(waypoint.Destination)
		req := client.RouteRequest{Origin: o.Position.Point(), Destination: d.Position.Point()}
		if m, ok := s.waypoints.Get(waypoint.Mid); ok {
			p := m.Position.Point()
			req.Midpoint = &p
		}
		s.command(FetchRoute{Token: token, Request: req})
	case ModeReach:
		o, _ := s.waypoints.Get(waypoint.Origin)
		s.command(FetchReach{Token: token, Request: client.ReachRequest{
			Lat:   o.Position.Lat,
			Lng:   o.Position.Lon,
			Speed: s.reachSpeed,
			Days:  s.reachDays,
		}})
	case ModeSaved:
		s.command(FetchPrecalc{Token: token, Port: s.savedPort.Name, Speed: s.savedSpeed})
	}
	s.log().WithField("token", token).Debug("Calculation requested")
}

func (s *Session) routeLoaded(token uint64, g route.Geometry) {
	if !s.settle(reqCalculate, token) {
		s.log().WithField("token", token).Debug("Dropping stale route")
		return
	}
	segments, err := route.Split(g.Line, s.vessel.Speed())
	if err != nil {
		s.alert(AlertNetwork, modes[ModeRoute].failure+err.Error())
		return
	}

	s.geometry = &g
	s.segments = segments
	s.layers = nil
	s.weather = nil
	s.distance = g.Length

	s.emit(
		DrawRoute{
			Features: route.FeatureCollection(segments),
			Bounds:   boundsOf(route.Bound(segments)),
			Weight:   routeWeight,
			Dash:     routeDash,
			Days:     len(segments),
		},
		ShowSummary{
			Title:    "Voyage Estimation",
			Rows:     true,
			Distance: fmt.Sprintf("%.0f NM", g.Length),
			Course:   course(g.Line),
		},
	)
	s.estimate()
	s.emit(
		HideWeather{},
		SetWeatherButton{Visible: true, Enabled: true, Label: weatherLabel},
		SetSaveButton{Visible: true},
	)
}

// course is the initial heading from the origin along the first leg.
func course(line orb.LineString) string {
	if len(line) < 2 {
		return ""
	}
	b := latlon.LatLonHaversine{}.BearingTo(latlon.FromPoint(line[0]), latlon.FromPoint(line[1]))
	return fmt.Sprintf("%03.0f°", math.Mod(math.Round(b), 360))
}

func (s *Session) reachLoaded(in ReachLoaded) {
	if !s.settle(reqCalculate, in.Token) {
		s.log().WithField("token", in.Token).Debug("Dropping stale reach")
		return
	}
	layers, bound, err := reach.Render(in.Features)
	if err != nil {
		s.alert(AlertNetwork, modes[s.mode].failure+err.Error())
		return
	}

	s.geometry = nil
	s.segments = nil
	s.weather = nil
	s.layers = layers

	s.emit(
		DrawReach{Layers: layers, Bounds: boundsOf(bound)},
		HideWeather{},
		SetWeatherButton{Visible: false, Enabled: true, Label: weatherLabel},
	)
	if s.mode == ModeReach {
		s.emit(ShowSummary{Title: "Reachability Area"}, SetSaveButton{Visible: true})
	} else {
		s.emit(HideSummary{}, SetSaveButton{Visible: false})
	}
}

func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return err.Error()
}

func (s *Session) requestFailed(token uint64, err error) {
	r, ok := s.pendingRequest(token)
	if !ok {
		s.log().WithField("token", token).Debug("Dropping stale failure")
		return
	}
	s.settle(r, token)
	if err == nil {
		err = errors.New("unknown error")
	}

	switch r {
	case reqCalculate:
		failure := modes[s.mode].failure
		if s.mode == ModeSaved && errors.Is(err, client.ErrNotProcessed) {
			s.alert(AlertNotProcessed, failure+notProcessed)
			return
		}
		s.log().WithError(err).Warn("Calculation failed")
		s.alert(AlertNetwork, failure+describe(err))
	case reqWeather:
		s.alert(AlertNetwork, weatherFailure+describe(err))
		s.emit(SetWeatherButton{Visible: s.geometry != nil, Enabled: true, Label: weatherLabel})
	case reqIndex:
		s.log().WithError(err).Warn("Unable to load precalculated ports")
		s.emit(SetPrecalcPorts{Failed: true})
	case reqAddPort:
		s.alert(AlertNetwork, addPortFailure+describe(err))
		s.emitCustomPort()
	case reqPortsOverlay, reqVesselsOverlay:
		layer := OverlayPorts
		if r == reqVesselsOverlay {
			layer = OverlayVessels
		}
		s.log().WithError(err).Errorf("Unable to load %s overlay", layer)
		s.overlays[layer] = false
		s.emit(SetOverlay{Layer: layer, Checked: false})
	}
}

func (s *Session) checkWeather() {
	if s.mode != ModeRoute || s.geometry == nil || s.pending[reqWeather] != 0 {
		return
	}
	token := s.issue(reqWeather)
	s.command(FetchWeather{Token: token, Request: client.WeatherRequest{
		RouteCoords:   s.geometry.Line,
		Speed:         s.vessel.Speed(),
		BaseFuel:      s.vessel.Fuel(),
		TotalDistance: s.distance,
	}})
	s.emit(SetWeatherButton{Visible: true, Enabled: false, Label: weatherLoading})
}

func (s *Session) weatherLoaded(token uint64, r client.WeatherReport) {
	if !s.settle(reqWeather, token) {
		return
	}
	s.weather = &r

	adjustment := "Calm seas expected"
	if pct := r.Penalty(); pct > 0 {
		adjustment = fmt.Sprintf("Dynamic Routing (%d%% Max Penalty)", pct)
	}
	s.emit(
		ShowWeather{
			HTML:       r.HTML,
			Wave:       strconv.FormatFloat(r.AvgWaveMeters, 'f', -1, 64) + " m",
			Adjustment: adjustment,
			Penalty:    r.Penalty(),
			Time:       vessel.FormatDays(r.TotalDays),
			Fuel:       fmt.Sprintf("%.1f MT", r.TotalFuel),
		},
		SetWeatherButton{Visible: true, Enabled: true, Label: weatherLabel},
	)
}

func placeName(wp waypoint.Waypoint, fallback string) string {
	if wp.Label == "" || wp.Label == waypoint.MapLabel {
		return fallback
	}
	return wp.Label
}

// RouteName names the current route after its end points.
func (s *Session) RouteName() string {
	o, _ := s.waypoints.Get(waypoint.Origin)
	d, _ := s.waypoints.Get(waypoint.Destination)
	return placeName(o, "Map Origin") + " ➔ " + placeName(d, "Map Dest")
}

func place(wp waypoint.Waypoint, name string) *history.Place {
	return &history.Place{Name: name, Lat: wp.Position.Lat, Lng: wp.Position.Lon}
}

func (s *Session) saveSearch(ctx context.Context) {
	var e history.Entry

	switch s.mode {
	case ModeReach:
		o, ok := s.waypoints.Get(waypoint.Origin)
		if !ok {
			return
		}
		name := placeName(o, fmt.Sprintf("Map Point (%.2f, %.2f)", o.Position.Lat, o.Position.Lon))
		e = history.Entry{
			Type:  "reach",
			Name:  name,
			Lat:   o.Position.Lat,
			Lng:   o.Position.Lon,
			Speed: s.reachSpeed,
			Days:  s.reachDays,
		}
	case ModeRoute:
		o, okO := s.waypoints.Get(waypoint.Origin)
		d, okD := s.waypoints.Get(waypoint.Destination)
		if !okO || !okD {
			return
		}
		e = history.Entry{
			Type:     "route",
			Name:     s.RouteName(),
			Distance: fmt.Sprintf("%.0f", s.distance),
			Origin:   place(o, placeName(o, "Map Origin")),
			Dest:     place(d, placeName(d, "Map Dest")),
		}
		if m, ok := s.waypoints.Get(waypoint.Mid); ok {
			e.Mid = place(m, placeName(m, "Midpoint"))
		}
	default:
		return
	}

	saved, err := s.history.Record(ctx, history.SavedSearches, e)
	if err != nil {
		s.log().WithError(err).Error("Unable to save search")
		s.alert(AlertNetwork, "Failed to save search: "+err.Error())
		return
	}
	s.emit(ShowSavedSearches{Entries: saved})
}

func (s *Session) replaySaved(ctx context.Context, id string) {
	saved, err := s.history.List(ctx, history.SavedSearches)
	if err != nil {
		s.alert(AlertValidation, err.Error())
		return
	}
	var e *history.Entry
	for i := range saved {
		if saved[i].ID == id {
			e = &saved[i]
			break
		}
	}
	if e == nil {
		s.alert(AlertValidation, "saved search not found")
		return
	}

	set := func(role waypoint.Role, p history.Place) bool {
		s.waypoints.SetInput(role, waypoint.InputMap)
		if err := s.setWaypoint(role, p.Lat, p.Lng, p.Name); err != nil {
			s.alert(AlertValidation, invalidCoordinates)
			return false
		}
		return true
	}

	switch e.Type {
	case "reach":
		s.switchMode(ModeReach)
		s.setReachParams(e.Days, e.Speed)
		if !set(waypoint.Origin, history.Place{Name: e.Name, Lat: e.Lat, Lng: e.Lng}) {
			return
		}
	case "route":
		if e.Origin == nil || e.Dest == nil {
			s.alert(AlertValidation, "saved route is incomplete")
			return
		}
		s.switchMode(ModeRoute)
		if !set(waypoint.Origin, *e.Origin) || !set(waypoint.Destination, *e.Dest) {
			return
		}
		if e.Mid != nil {
			if !set(waypoint.Mid, *e.Mid) {
				return
			}
		} else {
			s.waypoints.Unset(waypoint.Mid)
		}
	default:
		s.alert(AlertValidation, fmt.Sprintf("unknown saved search type %q", e.Type))
		return
	}
	s.calculate()
}

func (s *Session) toggleOverlay(layer Overlay, on bool) {
	r, ok := overlayRequest(layer)
	if !ok {
		s.alert(AlertValidation, fmt.Sprintf("unknown overlay %q", layer))
		return
	}
	s.overlays[layer] = on
	if !on {
		s.cancel(r)
		s.emit(SetOverlay{Layer: layer, Checked: false})
		return
	}
	s.command(FetchOverlay{Token: s.issue(r), Layer: layer})
	s.emit(SetOverlay{Layer: layer, Checked: true})
}

func (s *Session) canSubmitPort() bool {
	return s.custom.name != "" && s.custom.country != "" && s.custom.position != nil && s.pending[reqAddPort] == 0
}

func (s *Session) emitCustomPort() {
	coords := noCoords
	if s.custom.position != nil {
		coords = s.custom.position.String()
	}
	s.emit(CustomPort{
		Selecting: s.custom.selecting,
		Position:  s.custom.position,
		Coords:    coords,
		Name:      s.custom.name,
		Country:   s.custom.country,
		CanSubmit: s.canSubmitPort(),
		Busy:      s.pending[reqAddPort] != 0,
		Message:   s.custom.message,
	})
	s.custom.message = ""
}

func (s *Session) submitCustomPort() {
	if !s.canSubmitPort() {
		return
	}
	token := s.issue(reqAddPort)
	s.command(SubmitPort{Token: token, Port: client.NewPort{
		Name:    s.custom.name,
		Country: s.custom.country,
		Lat:     s.custom.position.Lat,
		Lng:     s.custom.position.Lon,
	}})
	s.emitCustomPort()
}

func (s *Session) portAdded(token uint64, p client.NewPort) {
	if !s.settle(reqAddPort, token) {
		return
	}
	s.custom = customPort{message: portAddedMessage}
	s.emitCustomPort()
	s.command(Notify{Message: fmt.Sprintf("New port %s (%s) at %s", p.Name, p.Country, latlon.LatLon{Lat: p.Lat, Lon: p.Lng})})
}
