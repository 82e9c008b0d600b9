package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/metrics"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/a-bouts/voyage-planner/waypoint"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultDebounce = 300 * time.Millisecond
)

var ErrStopped = errors.New("session loop stopped")

// Service is the remote routing service.
type Service interface {
	Route(ctx context.Context, req client.RouteRequest) (route.Geometry, error)
	Reachability(ctx context.Context, req client.ReachRequest) (*geojson.FeatureCollection, error)
	PrecalcIndex(ctx context.Context) ([]client.PrecalcPort, error)
	Precalc(ctx context.Context, port string, speed float64) (*geojson.FeatureCollection, error)
	Weather(ctx context.Context, req client.WeatherRequest) (client.WeatherReport, error)
	Search(ctx context.Context, q, filter string) ([]client.Location, error)
	AddPort(ctx context.Context, port client.NewPort) error
	AllPorts(ctx context.Context) ([]client.Location, error)
	AllVessels(ctx context.Context) ([]client.Location, error)
}

type Notifier interface {
	Send(message string) error
}

type Config struct {
	// Timeout bounds every request to the service. Zero uses DefaultTimeout,
	// a negative value disables it.
	Timeout  time.Duration
	Debounce time.Duration
	FeedSize int
}

type dispatch struct {
	intent Intent
	fn     func(*Session)
	reply  chan []Event
}

// Loop runs a session on a single goroutine. Requests to the service run on
// their own goroutines and come back to the loop as intents.
type Loop struct {
	session  *Session
	service  Service
	notifier Notifier
	feed     *Feed
	timeout  time.Duration
	debounce time.Duration

	requests    chan dispatch
	completions chan Intent
	done        chan struct{}
	timers      map[waypoint.Role]*time.Timer
}

func NewLoop(s *Session, service Service, notifier Notifier, cfg Config) *Loop {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Loop{
		session:     s,
		service:     service,
		notifier:    notifier,
		feed:        NewFeed(cfg.FeedSize),
		timeout:     cfg.Timeout,
		debounce:    cfg.Debounce,
		requests:    make(chan dispatch),
		completions: make(chan Intent),
		done:        make(chan struct{}),
		timers:      make(map[waypoint.Role]*time.Timer),
	}
}

func (l *Loop) Feed() *Feed {
	return l.feed
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer func() {
		for _, t := range l.timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-l.requests:
			if d.fn != nil {
				d.fn(l.session)
				d.reply <- nil
				continue
			}
			d.reply <- l.apply(ctx, d.intent)
		case in := <-l.completions:
			l.apply(ctx, in)
		}
	}
}

// Dispatch hands a user intent to the loop and returns the instructions it
// produced right away.
func (l *Loop) Dispatch(ctx context.Context, in Intent) ([]Event, error) {
	return l.send(ctx, dispatch{intent: in, reply: make(chan []Event, 1)})
}

// Inspect runs fn on the loop goroutine.
func (l *Loop) Inspect(ctx context.Context, fn func(*Session)) error {
	_, err := l.send(ctx, dispatch{fn: fn, reply: make(chan []Event, 1)})
	return err
}

func (l *Loop) send(ctx context.Context, d dispatch) ([]Event, error) {
	select {
	case l.requests <- d:
	case <-l.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case events := <-d.reply:
		return events, nil
	case <-l.done:
		select {
		case events := <-d.reply:
			return events, nil
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func intentName(in Intent) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", in), "session.")
}

func (l *Loop) apply(ctx context.Context, in Intent) []Event {
	metrics.IntentsTotal.WithLabelValues(intentName(in)).Inc()

	out, cmds := l.session.Update(ctx, in)
	events := l.feed.Append(out...)
	for _, c := range cmds {
		l.execute(ctx, c)
	}
	return events
}

func (l *Loop) post(in Intent) {
	select {
	case l.completions <- in:
	case <-l.done:
	}
}

func (l *Loop) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Loop) fetch(ctx context.Context, token uint64, call func(context.Context) (Intent, error)) {
	go func() {
		cctx, cancel := l.withTimeout(ctx)
		defer cancel()

		in, err := call(cctx)
		if err != nil {
			l.post(RequestFailed{Token: token, Err: err})
			return
		}
		l.post(in)
	}()
}

func (l *Loop) execute(ctx context.Context, c Command) {
	log.WithFields(log.Fields{"session": l.session.ID, "command": fmt.Sprintf("%T", c)}).Debug("Executing command")

	switch c := c.(type) {
	case ScheduleSearch:
		if t, ok := l.timers[c.Role]; ok {
			t.Stop()
		}
		l.timers[c.Role] = time.AfterFunc(l.debounce, func() {
			l.post(SearchSettled{Role: c.Role, Gen: c.Gen})
		})
	case FetchSearch:
		go func() {
			cctx, cancel := l.withTimeout(ctx)
			defer cancel()
			results, err := l.service.Search(cctx, c.Query, c.Filter)
			l.post(SearchLoaded{Role: c.Role, Gen: c.Gen, Results: results, Err: err})
		}()
	case FetchRoute:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			g, err := l.service.Route(ctx, c.Request)
			return RouteLoaded{Token: c.Token, Geometry: g}, err
		})
	case FetchReach:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			fc, err := l.service.Reachability(ctx, c.Request)
			return ReachLoaded{Token: c.Token, Features: fc}, err
		})
	case FetchPrecalc:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			fc, err := l.service.Precalc(ctx, c.Port, c.Speed)
			return ReachLoaded{Token: c.Token, Features: fc}, err
		})
	case FetchPrecalcIndex:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			ports, err := l.service.PrecalcIndex(ctx)
			return PrecalcIndexLoaded{Token: c.Token, Ports: ports}, err
		})
	case FetchWeather:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			report, err := l.service.Weather(ctx, c.Request)
			return WeatherLoaded{Token: c.Token, Report: report}, err
		})
	case FetchOverlay:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			var points []client.Location
			var err error
			if c.Layer == OverlayVessels {
				points, err = l.service.AllVessels(ctx)
			} else {
				points, err = l.service.AllPorts(ctx)
			}
			return OverlayLoaded{Token: c.Token, Layer: c.Layer, Points: points}, err
		})
	case SubmitPort:
		l.fetch(ctx, c.Token, func(ctx context.Context) (Intent, error) {
			err := l.service.AddPort(ctx, c.Port)
			return PortAdded{Token: c.Token, Port: c.Port}, err
		})
	case Notify:
		if l.notifier == nil {
			return
		}
		go func() {
			if err := l.notifier.Send(c.Message); err != nil {
				log.WithError(err).Error("Unable to send notification")
			}
		}()
	default:
		log.Warnf("Unhandled command %T", c)
	}
}
