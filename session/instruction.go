package session

import (
	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/latlon"
	"github.com/a-bouts/voyage-planner/reach"
	"github.com/a-bouts/voyage-planner/waypoint"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Instruction tells the renderer what to draw. Op names the instruction on
// the wire.
type Instruction interface {
	Op() string
}

type AlertKind string

const (
	AlertValidation   AlertKind = "validation"
	AlertNetwork      AlertKind = "network"
	AlertNotProcessed AlertKind = "not_processed"
)

// Panels lists which input cards are visible.
type Panels struct {
	Origin      bool `json:"origin"`
	Mid         bool `json:"mid"`
	Destination bool `json:"destination"`
	Vessel      bool `json:"vessel"`
	ReachParams bool `json:"reachParams"`
	Saved       bool `json:"saved"`
}

// Bounds is a south-west, north-east pair.
type Bounds [2]latlon.LatLon

func boundsOf(b orb.Bound) Bounds {
	return Bounds{latlon.FromPoint(b.Min), latlon.FromPoint(b.Max)}
}

type SetMode struct {
	Mode        Mode   `json:"mode"`
	Panels      Panels `json:"panels"`
	Instruction string `json:"instruction"`
}

type SetButton struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

type PlaceMarker struct {
	Role     waypoint.Role `json:"role"`
	Position latlon.LatLon `json:"position"`
	Label    string        `json:"label"`
	Coords   string        `json:"coords"`
}

type RemoveMarker struct {
	Role waypoint.Role `json:"role"`
}

type SetInput struct {
	Role waypoint.Role      `json:"role"`
	Kind waypoint.InputKind `json:"kind"`
}

type ClearLayers struct{}

type DrawRoute struct {
	Features *geojson.FeatureCollection `json:"features"`
	Bounds   Bounds                     `json:"bounds"`
	Weight   float64                    `json:"weight"`
	Dash     string                     `json:"dash"`
	Days     int                        `json:"days"`
}

type DrawReach struct {
	Layers []reach.Layer `json:"layers"`
	Bounds Bounds        `json:"bounds"`
}

type ShowSummary struct {
	Title    string `json:"title"`
	Rows     bool   `json:"rows"`
	Distance string `json:"distance,omitempty"`
	// Course is the initial heading of the route, "045°".
	Course string `json:"course,omitempty"`
}

type HideSummary struct{}

type SetEstimate struct {
	Time string `json:"time"`
	Fuel string `json:"fuel"`
}

type ShowWeather struct {
	HTML       string `json:"html"`
	Wave       string `json:"wave"`
	Adjustment string `json:"adjustment"`
	Penalty    int    `json:"penalty"`
	Time       string `json:"time"`
	Fuel       string `json:"fuel"`
}

type HideWeather struct{}

type SetWeatherButton struct {
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

type SetSaveButton struct {
	Visible bool `json:"visible"`
}

type ShowSearchResults struct {
	Role    waypoint.Role     `json:"role"`
	Results []client.Location `json:"results"`
}

type HideSearchResults struct {
	Role waypoint.Role `json:"role"`
}

type ShowHistory struct {
	Role     waypoint.Role    `json:"role"`
	Category history.Category `json:"category"`
	Entries  []history.Entry  `json:"entries"`
}

type ShowSavedSearches struct {
	Entries []history.Entry `json:"entries"`
}

type SetPrecalcPorts struct {
	Ports  []client.PrecalcPort `json:"ports"`
	Failed bool                 `json:"failed"`
}

type SetSavedSpeeds struct {
	Port   string    `json:"port"`
	Speeds []float64 `json:"speeds"`
}

type FlyTo struct {
	Position latlon.LatLon `json:"position"`
	Zoom     int           `json:"zoom"`
}

type SetVessel struct {
	Kind  string  `json:"kind"`
	Class int     `json:"class"`
	Speed float64 `json:"speed"`
	Fuel  float64 `json:"fuel"`
}

type SetReachInputs struct {
	Days  int     `json:"days"`
	Speed float64 `json:"speed"`
}

type ShowOverlay struct {
	Layer  Overlay           `json:"layer"`
	Points []client.Location `json:"points"`
}

type SetOverlay struct {
	Layer   Overlay `json:"layer"`
	Checked bool    `json:"checked"`
}

type CustomPort struct {
	Selecting bool           `json:"selecting"`
	Position  *latlon.LatLon `json:"position"`
	Coords    string         `json:"coords"`
	Name      string         `json:"name"`
	Country   string         `json:"country"`
	CanSubmit bool           `json:"canSubmit"`
	Busy      bool           `json:"busy"`
	Message   string         `json:"message,omitempty"`
}

type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

func (SetMode) Op() string           { return "set_mode" }
func (SetButton) Op() string         { return "set_button" }
func (PlaceMarker) Op() string       { return "place_marker" }
func (RemoveMarker) Op() string      { return "remove_marker" }
func (SetInput) Op() string          { return "set_input" }
func (ClearLayers) Op() string       { return "clear_layers" }
func (DrawRoute) Op() string         { return "draw_route" }
func (DrawReach) Op() string         { return "draw_reach" }
func (ShowSummary) Op() string       { return "show_summary" }
func (HideSummary) Op() string       { return "hide_summary" }
func (SetEstimate) Op() string       { return "set_estimate" }
func (ShowWeather) Op() string       { return "show_weather" }
func (HideWeather) Op() string       { return "hide_weather" }
func (SetWeatherButton) Op() string  { return "set_weather_button" }
func (SetSaveButton) Op() string     { return "set_save_button" }
func (ShowSearchResults) Op() string { return "show_search_results" }
func (HideSearchResults) Op() string { return "hide_search_results" }
func (ShowHistory) Op() string       { return "show_history" }
func (ShowSavedSearches) Op() string { return "show_saved_searches" }
func (SetPrecalcPorts) Op() string   { return "set_precalc_ports" }
func (SetSavedSpeeds) Op() string    { return "set_saved_speeds" }
func (FlyTo) Op() string             { return "fly_to" }
func (SetVessel) Op() string         { return "set_vessel" }
func (SetReachInputs) Op() string    { return "set_reach_inputs" }
func (ShowOverlay) Op() string       { return "show_overlay" }
func (SetOverlay) Op() string        { return "set_overlay" }
func (CustomPort) Op() string        { return "custom_port" }
func (Alert) Op() string             { return "alert" }
