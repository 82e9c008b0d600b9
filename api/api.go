package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/a-bouts/voyage-planner/api/model"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/metrics"
	"github.com/a-bouts/voyage-planner/route"
	"github.com/a-bouts/voyage-planner/session"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jasonlvhit/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultPollTimeout  = 25 * time.Second
	DefaultEvictEvery   = 60
	maxIntentBodyLength = 64 << 10
)

type Config struct {
	Service  session.Service
	Notifier session.Notifier
	History  history.Backend
	Loop     session.Config

	// SessionIdle is how long an untouched session is kept. Zero keeps
	// sessions forever.
	SessionIdle time.Duration
	// EvictEvery is the eviction job period in seconds.
	EvictEvery  uint64
	PollTimeout time.Duration
}

// Server owns the live sessions behind the router.
type Server struct {
	sessions    *sessions
	pollTimeout time.Duration
	scheduler   *gocron.Scheduler
	stop        chan bool
}

func InitServer(cfg Config) (*mux.Router, *Server) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.EvictEvery == 0 {
		cfg.EvictEvery = DefaultEvictEvery
	}

	s := &Server{
		sessions:    newSessions(cfg),
		pollTimeout: cfg.PollTimeout,
	}

	if cfg.SessionIdle > 0 {
		s.scheduler = gocron.NewScheduler()
		s.scheduler.Every(cfg.EvictEvery).Seconds().Do(s.sessions.evict)
		s.stop = s.scheduler.Start()
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(instrument)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/planner").Subrouter()
	api.HandleFunc("/-/healthz", s.healthz).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/planner/api/v1").Subrouter()
	apiV1.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	apiV1.HandleFunc("/sessions/{id}/intents", s.intent).Methods(http.MethodPost)
	apiV1.HandleFunc("/sessions/{id}/feed", s.feed).Methods(http.MethodGet)
	apiV1.HandleFunc("/sessions/{id}/route.gpx", s.gpx).Methods(http.MethodGet)

	return router, s
}

// Wrap adds CORS, panic recovery and a combined access log written through
// logrus.
func Wrap(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	logged := handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.InfoLevel), h)
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(logged)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(log.StandardLogger()), handlers.PrintRecoveryStack(true))(cors)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		name := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				name = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Unable to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.Error{Error: err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}

	writeJSON(w, http.StatusOK, health{Status: "Ok", Sessions: s.sessions.len()})
}

func (s *Server) createSession(w http.ResponseWriter, req *http.Request) {
	fields := log.Fields{
		"action": "session",
	}
	if ip, err := getIp(req); err == nil {
		fields["IP"] = ip
	}
	requestLogger := log.WithFields(fields)

	var body model.NewSession
	if err := json.NewDecoder(io.LimitReader(req.Body, maxIntentBodyLength)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, loop := s.sessions.create(strings.TrimSpace(body.User))
	events, err := loop.Dispatch(req.Context(), session.Start{})
	if err != nil {
		requestLogger.WithError(err).Errorf("Unable to start session %s", id)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	requestLogger.Infof("Session %s started", id)
	writeJSON(w, http.StatusCreated, model.Session{ID: id, Batch: model.NewBatch(events, 0)})
}

func (s *Server) loop(w http.ResponseWriter, req *http.Request) (*session.Loop, bool) {
	id := mux.Vars(req)["id"]
	loop, ok := s.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session %q", id))
	}
	return loop, ok
}

func (s *Server) intent(w http.ResponseWriter, req *http.Request) {
	loop, ok := s.loop(w, req)
	if !ok {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxIntentBodyLength))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := model.DecodeIntent(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := loop.Dispatch(req.Context(), in)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, session.ErrStopped) {
			status = http.StatusGone
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewBatch(events, 0))
}

// feed long-polls for instructions newer than ?after. It answers with an
// empty batch when nothing happened within the poll timeout.
func (s *Server) feed(w http.ResponseWriter, req *http.Request) {
	loop, ok := s.loop(w, req)
	if !ok {
		return
	}

	var after uint64
	if v := req.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after %q", v))
			return
		}
		after = n
	}

	ctx, cancel := context.WithTimeout(req.Context(), s.pollTimeout)
	defer cancel()

	events, err := loop.Feed().Wait(ctx, after)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewBatch(events, after))
}

func (s *Server) gpx(w http.ResponseWriter, req *http.Request) {
	loop, ok := s.loop(w, req)
	if !ok {
		return
	}

	var (
		name     string
		segments []route.Segment
	)
	err := loop.Inspect(req.Context(), func(sess *session.Session) {
		name = sess.RouteName()
		segments = sess.Segments()
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, errors.New("no route calculated"))
		return
	}

	b, err := route.GPX(name, segments)
	if err != nil {
		log.WithError(err).Errorf("Unable to export route %s", name)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="route.gpx"`)
	w.Write(b)
}

// Close stops every session loop and the eviction job. It must be called
// once.
func (s *Server) Close() {
	if s.scheduler != nil {
		s.scheduler.Clear()
		s.stop <- true
		s.scheduler = nil
	}
	s.sessions.closeAll()
}

func getIp(r *http.Request) (string, error) {
	//Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}

	//Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		netIP := net.ParseIP(strings.TrimSpace(ip))
		if netIP != nil {
			return strings.TrimSpace(ip), nil
		}
	}

	//Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "", err
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}
	return "", fmt.Errorf("No valid ip found")
}
