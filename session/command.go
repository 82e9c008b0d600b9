package session

import (
	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/waypoint"
)

// Command is work the session asks its loop to perform. Every command
// completes with an intent carrying the same token or generation.
type Command interface {
	command()
}

type FetchRoute struct {
	Token   uint64
	Request client.RouteRequest
}

type FetchReach struct {
	Token   uint64
	Request client.ReachRequest
}

type FetchPrecalc struct {
	Token uint64
	Port  string
	Speed float64
}

type FetchPrecalcIndex struct {
	Token uint64
}

type FetchWeather struct {
	Token   uint64
	Request client.WeatherRequest
}

// ScheduleSearch restarts the debounce timer of a role.
type ScheduleSearch struct {
	Role waypoint.Role
	Gen  uint64
}

type FetchSearch struct {
	Role   waypoint.Role
	Gen    uint64
	Query  string
	Filter string
}

type FetchOverlay struct {
	Token uint64
	Layer Overlay
}

type SubmitPort struct {
	Token uint64
	Port  client.NewPort
}

type Notify struct {
	Message string
}

func (FetchRoute) command()        {}
func (FetchReach) command()        {}
func (FetchPrecalc) command()      {}
func (FetchPrecalcIndex) command() {}
func (FetchWeather) command()      {}
func (ScheduleSearch) command()    {}
func (FetchSearch) command()       {}
func (FetchOverlay) command()      {}
func (SubmitPort) command()        {}
func (Notify) command()            {}
