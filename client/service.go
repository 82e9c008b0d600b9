package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-bouts/voyage-planner/latlon"
	"github.com/a-bouts/voyage-planner/metrics"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	precalcIndexKey = "precalc/index"
	allPortsKey     = "all_ports"
	allVesselsKey   = "all_vessels"
)

type RouteRequest struct {
	Origin      orb.Point  `json:"origin"`
	Destination orb.Point  `json:"destination"`
	Midpoint    *orb.Point `json:"midpoint"`
}

type ReachRequest struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Speed float64 `json:"speed"`
	Days  int     `json:"days"`
}

type WeatherRequest struct {
	RouteCoords   orb.LineString `json:"route_coords"`
	Speed         float64        `json:"speed"`
	BaseFuel      float64        `json:"base_fuel"`
	TotalDistance float64        `json:"total_distance"`
}

type WeatherReport struct {
	HTML          string  `json:"weather_html"`
	AvgWaveMeters float64 `json:"avg_wave_meters"`
	ImpactLevel   int     `json:"impact_level"`
	TotalDays     float64 `json:"total_days"`
	TotalFuel     float64 `json:"total_fuel"`
}

// Penalty is the maximum speed penalty in percent advertised for the
// impact level.
func (w WeatherReport) Penalty() int {
	switch w.ImpactLevel {
	case 3:
		return 15
	case 2:
		return 5
	}
	return 0
}

type PrecalcPort struct {
	Name   string    `json:"name"`
	Lat    float64   `json:"lat"`
	Lng    float64   `json:"lng"`
	Speeds []float64 `json:"speeds"`
}

// IMO accepts both numbers and strings on the wire.
type IMO string

func (i *IMO) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = IMO(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("imo: %w", err)
	}
	*i = IMO(n.String())
	return nil
}

type Location struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Type    string  `json:"type"`
	Country string  `json:"country,omitempty"`
	IMO     IMO     `json:"imo,omitempty"`
	Dwt     float64 `json:"dwt,omitempty"`
	Length  float64 `json:"length,omitempty"`
	Beam    float64 `json:"beam,omitempty"`
}

type NewPort struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// PrecalcFile is the archive file name of a port and speed pair.
func PrecalcFile(port string, speed float64) string {
	name := strings.NewReplacer(" ", "_", "/", "_").Replace(port)
	return fmt.Sprintf("%s_%.1f.json", name, speed)
}

func (c *Client) Route(ctx context.Context, req RouteRequest) (route.Geometry, error) {
	body, err := c.do(ctx, "route", http.MethodPost, "/route", req)
	if err != nil {
		return route.Geometry{}, err
	}

	f, err := geojson.UnmarshalFeature(body)
	if err != nil {
		return route.Geometry{}, &Error{Op: "route", Err: fmt.Errorf("decode route: %w", err)}
	}
	line, ok := f.Geometry.(orb.LineString)
	if !ok {
		return route.Geometry{}, &Error{Op: "route", Err: fmt.Errorf("route geometry is %T, not a line string", f.Geometry)}
	}

	length, ok := f.Properties["length"].(float64)
	if !ok {
		length = latlon.Length(line)
	}
	return route.Geometry{Line: line, Length: length}, nil
}

func (c *Client) Reachability(ctx context.Context, req ReachRequest) (*geojson.FeatureCollection, error) {
	body, err := c.do(ctx, "reachability", http.MethodPost, "/reachability", req)
	if err != nil {
		return nil, err
	}
	return decodeFeatures("reachability", body)
}

func (c *Client) PrecalcIndex(ctx context.Context) ([]PrecalcPort, error) {
	if v, ok := c.cached(precalcIndexKey); ok {
		return v.([]PrecalcPort), nil
	}
	body, err := c.do(ctx, "precalc_index", http.MethodGet, "/precalc/index.json", nil)
	if err != nil {
		return nil, err
	}
	var ports []PrecalcPort
	if err := decode("precalc_index", body, &ports); err != nil {
		return nil, err
	}
	c.cache.SetDefault(precalcIndexKey, ports)
	return ports, nil
}

func (c *Client) Precalc(ctx context.Context, port string, speed float64) (*geojson.FeatureCollection, error) {
	body, err := c.do(ctx, "precalc", http.MethodGet, "/precalc/"+url.PathEscape(PrecalcFile(port, speed)), nil)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Status == http.StatusNotFound {
			e.Err = ErrNotProcessed
		}
		return nil, err
	}
	return decodeFeatures("precalc", body)
}

func (c *Client) Weather(ctx context.Context, req WeatherRequest) (WeatherReport, error) {
	var report WeatherReport
	body, err := c.do(ctx, "weather", http.MethodPost, "/weather", req)
	if err != nil {
		return report, err
	}
	err = decode("weather", body, &report)
	return report, err
}

func (c *Client) Search(ctx context.Context, q, filter string) ([]Location, error) {
	v := url.Values{}
	v.Set("q", q)
	if filter != "" {
		v.Set("filter_type", filter)
	}
	body, err := c.do(ctx, "search", http.MethodGet, "/search?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var hits []Location
	err = decode("search", body, &hits)
	return hits, err
}

func (c *Client) AddPort(ctx context.Context, port NewPort) error {
	body, err := c.do(ctx, "add_port", http.MethodPost, "/add_port", port)
	if err != nil {
		return err
	}
	var res struct {
		Status string `json:"status"`
	}
	if err := decode("add_port", body, &res); err != nil {
		return err
	}
	if res.Status != "" && res.Status != "success" {
		return &Error{Op: "add_port", Status: http.StatusOK, Body: res.Status}
	}
	c.cache.Delete(allPortsKey)
	return nil
}

func (c *Client) AllPorts(ctx context.Context) ([]Location, error) {
	return c.locations(ctx, allPortsKey, "/all_ports")
}

func (c *Client) AllVessels(ctx context.Context) ([]Location, error) {
	return c.locations(ctx, allVesselsKey, "/all_vessels")
}

func (c *Client) locations(ctx context.Context, key, path string) ([]Location, error) {
	if v, ok := c.cached(key); ok {
		return v.([]Location), nil
	}
	body, err := c.do(ctx, key, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var locs []Location
	if err := decode(key, body, &locs); err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, locs)
	return locs, nil
}

func (c *Client) cached(key string) (interface{}, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		metrics.CacheLookupsTotal.WithLabelValues(key, "hit").Inc()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues(key, "miss").Inc()
	}
	return v, ok
}

func decodeFeatures(op string, body []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode features: %w", err)}
	}
	return fc, nil
}
