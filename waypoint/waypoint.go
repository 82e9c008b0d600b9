package waypoint

import (
	"errors"
	"fmt"

	"github.com/a-bouts/voyage-planner/latlon"
)

type Role string

const (
	Origin      Role = "origin"
	Mid         Role = "mid"
	Destination Role = "destination"
)

var Roles = []Role{Origin, Mid, Destination}

func (r Role) Valid() bool {
	return r == Origin || r == Mid || r == Destination
}

// InputKind is how the user feeds a role: map clicks, typed coordinates or
// a port/vessel search.
type InputKind string

const (
	InputMap    InputKind = "map"
	InputCoords InputKind = "coords"
	InputPort   InputKind = "port"
	InputVessel InputKind = "vessel"
)

func (k InputKind) Valid() bool {
	switch k {
	case InputMap, InputCoords, InputPort, InputVessel:
		return true
	}
	return false
}

// Searchable reports whether the kind is backed by the search service.
func (k InputKind) Searchable() bool {
	return k == InputPort || k == InputVessel
}

const MapLabel = "Map Point"

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrUnknownRole       = errors.New("unknown waypoint role")
)

func ManualLabel(lat, lng float64) string {
	return fmt.Sprintf("Lat: %.4f, Lng: %.4f", lat, lng)
}

type Marker interface {
	Remove()
}

// Placer creates the visual marker for a waypoint. The registry owns the
// marker lifetime and calls Remove when the role is replaced or cleared.
type Placer interface {
	Place(role Role, position latlon.LatLon, label string) Marker
}

type Waypoint struct {
	Role     Role          `json:"role"`
	Position latlon.LatLon `json:"position"`
	Label    string        `json:"label"`

	marker Marker
}

type Registry struct {
	placer Placer
	points map[Role]*Waypoint
	inputs map[Role]InputKind
	active Role
}

func NewRegistry(placer Placer) *Registry {
	r := &Registry{
		placer: placer,
		points: make(map[Role]*Waypoint, len(Roles)),
	}
	r.resetInputs()
	return r
}

func (r *Registry) resetInputs() {
	r.inputs = map[Role]InputKind{Origin: InputMap, Mid: InputMap, Destination: InputMap}
	r.active = Origin
}

// Set validates the coordinate and then replaces the waypoint of the role.
// On error nothing is changed.
func (r *Registry) Set(role Role, lat, lng float64, label string) (Waypoint, error) {
	if !role.Valid() {
		return Waypoint{}, ErrUnknownRole
	}
	pos := latlon.LatLon{Lat: lat, Lon: lng}
	if !pos.Valid() {
		return Waypoint{}, fmt.Errorf("%w: lat %v, lng %v", ErrInvalidCoordinate, lat, lng)
	}
	if label == "" {
		label = MapLabel
	}

	if old, ok := r.points[role]; ok && old.marker != nil {
		old.marker.Remove()
	}
	wp := &Waypoint{Role: role, Position: pos, Label: label}
	if r.placer != nil {
		wp.marker = r.placer.Place(role, pos, label)
	}
	r.points[role] = wp

	if label == MapLabel {
		r.inputs[role] = InputMap
	}
	return *wp, nil
}

func (r *Registry) Get(role Role) (Waypoint, bool) {
	wp, ok := r.points[role]
	if !ok {
		return Waypoint{}, false
	}
	return *wp, true
}

func (r *Registry) Has(role Role) bool {
	_, ok := r.points[role]
	return ok
}

func (r *Registry) Empty() bool {
	return len(r.points) == 0
}

func (r *Registry) Unset(role Role) {
	if wp, ok := r.points[role]; ok {
		if wp.marker != nil {
			wp.marker.Remove()
		}
		delete(r.points, role)
	}
}

// ClearAll removes every waypoint and marker, puts every role back on map
// input and makes origin the active role.
func (r *Registry) ClearAll() {
	for _, role := range Roles {
		r.Unset(role)
	}
	r.resetInputs()
}

func (r *Registry) Active() Role {
	return r.active
}

func (r *Registry) SetActive(role Role) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	r.active = role
	return nil
}

// SetInput changes the input kind of a role and makes it the active one.
func (r *Registry) SetInput(role Role, kind InputKind) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown input kind %q", kind)
	}
	r.inputs[role] = kind
	r.active = role
	return nil
}

func (r *Registry) Input(role Role) InputKind {
	return r.inputs[role]
}

// ClickTarget returns the role a map click fills.
//
// Mid is targeted whenever it is the active role, whether locked on map
// input or not. Otherwise roles fill in order origin then destination, and
// once both are present the click overwrites the active role.
func (r *Registry) ClickTarget() Role {
	if r.active == Mid && r.inputs[Mid] == InputMap {
		return Mid
	}
	switch {
	case r.active == Mid:
		return Mid
	case r.Empty():
		return Origin
	case !r.Has(Origin):
		return Origin
	case !r.Has(Destination):
		return Destination
	}
	return r.active
}
