package session

import (
	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/a-bouts/voyage-planner/waypoint"
	"github.com/paulmach/orb/geojson"
)

// Intent is something the user did, or the completion of a request the
// session issued.
type Intent interface {
	intent()
}

type Start struct{}

type SwitchMode struct {
	Mode Mode `json:"mode"`
}

type MapClick struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type SetInputKind struct {
	Role waypoint.Role      `json:"role"`
	Kind waypoint.InputKind `json:"kind"`
}

type Focus struct {
	Role waypoint.Role `json:"role"`
}

type EnterCoordinates struct {
	Role waypoint.Role `json:"role"`
	Lat  float64       `json:"lat"`
	Lng  float64       `json:"lng"`
}

type SearchInput struct {
	Role  waypoint.Role `json:"role"`
	Query string        `json:"query"`
}

// SearchSettled fires once the search box of a role stayed quiet for the
// debounce delay.
type SearchSettled struct {
	Role waypoint.Role
	Gen  uint64
}

type PickSearchResult struct {
	Role  waypoint.Role `json:"role"`
	Index int           `json:"index"`
}

type PickHistory struct {
	Role     waypoint.Role    `json:"role"`
	Category history.Category `json:"category"`
	Index    int              `json:"index"`
}

type Clear struct{}

type SelectVesselClass struct {
	Index int `json:"index"`
}

type SetVesselSpeed struct {
	Knots float64 `json:"knots"`
}

type SetVesselFuel struct {
	PerDay float64 `json:"perDay"`
}

type SetReachParams struct {
	Days  int     `json:"days"`
	Speed float64 `json:"speed"`
}

type SelectSavedPort struct {
	Name string `json:"name"`
}

type SelectSavedSpeed struct {
	Speed float64 `json:"speed"`
}

type Calculate struct{}

type CheckWeather struct{}

type SaveSearch struct{}

type ReplaySaved struct {
	ID string `json:"id"`
}

type ToggleOverlay struct {
	Layer Overlay `json:"layer"`
	On    bool    `json:"on"`
}

type ToggleCustomPortSelect struct{}

type SetCustomPort struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type SubmitCustomPort struct{}

type RouteLoaded struct {
	Token    uint64
	Geometry route.Geometry
}

type ReachLoaded struct {
	Token    uint64
	Features *geojson.FeatureCollection
}

type WeatherLoaded struct {
	Token  uint64
	Report client.WeatherReport
}

type SearchLoaded struct {
	Role    waypoint.Role
	Gen     uint64
	Results []client.Location
	Err     error
}

type PrecalcIndexLoaded struct {
	Token uint64
	Ports []client.PrecalcPort
}

type OverlayLoaded struct {
	Token  uint64
	Layer  Overlay
	Points []client.Location
}

type PortAdded struct {
	Token uint64
	Port  client.NewPort
}

type RequestFailed struct {
	Token uint64
	Err   error
}

func (Start) intent()                  {}
func (SwitchMode) intent()             {}
func (MapClick) intent()               {}
func (SetInputKind) intent()           {}
func (Focus) intent()                  {}
func (EnterCoordinates) intent()       {}
func (SearchInput) intent()            {}
func (SearchSettled) intent()          {}
func (PickSearchResult) intent()       {}
func (PickHistory) intent()            {}
func (Clear) intent()                  {}
func (SelectVesselClass) intent()      {}
func (SetVesselSpeed) intent()         {}
func (SetVesselFuel) intent()          {}
func (SetReachParams) intent()         {}
func (SelectSavedPort) intent()        {}
func (SelectSavedSpeed) intent()       {}
func (Calculate) intent()              {}
func (CheckWeather) intent()           {}
func (SaveSearch) intent()             {}
func (ReplaySaved) intent()            {}
func (ToggleOverlay) intent()          {}
func (ToggleCustomPortSelect) intent() {}
func (SetCustomPort) intent()          {}
func (SubmitCustomPort) intent()       {}
func (RouteLoaded) intent()            {}
func (ReachLoaded) intent()            {}
func (WeatherLoaded) intent()          {}
func (SearchLoaded) intent()           {}
func (PrecalcIndexLoaded) intent()     {}
func (OverlayLoaded) intent()          {}
func (PortAdded) intent()              {}
func (RequestFailed) intent()          {}
