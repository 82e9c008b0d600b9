package api

import (
	"context"
	"sync"
	"time"

	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/metrics"
	"github.com/a-bouts/voyage-planner/session"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type live struct {
	loop     *session.Loop
	cancel   context.CancelFunc
	lastSeen time.Time
}

// sessions holds the running session loops.
type sessions struct {
	mu      sync.Mutex
	entries map[string]*live

	service  session.Service
	notifier session.Notifier
	history  history.Backend
	config   session.Config
	idle     time.Duration
	now      func() time.Time
}

func newSessions(cfg Config) *sessions {
	backend := cfg.History
	if backend == nil {
		backend = history.NewMemoryBackend()
	}
	return &sessions{
		entries:  make(map[string]*live),
		service:  cfg.Service,
		notifier: cfg.Notifier,
		history:  backend,
		config:   cfg.Loop,
		idle:     cfg.SessionIdle,
		now:      time.Now,
	}
}

func (s *sessions) create(user string) (string, *session.Loop) {
	id := uuid.NewString()
	if user == "" {
		user = id
	}
	store := history.NewStore(s.history, user)
	loop := session.NewLoop(session.New(id, store), s.service, s.notifier, s.config)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	s.mu.Lock()
	s.entries[id] = &live{loop: loop, cancel: cancel, lastSeen: s.now()}
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	log.WithFields(log.Fields{"session": id, "user": user}).Info("Session created")
	return id, loop
}

func (s *sessions) get(id string) (*session.Loop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.loop, true
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evict stops sessions nobody touched for longer than the idle delay.
func (s *sessions) evict() {
	if s.idle <= 0 {
		return
	}
	deadline := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.lastSeen.Before(deadline) {
			e.cancel()
			delete(s.entries, id)
			metrics.ActiveSessions.Dec()
			log.WithField("session", id).Info("Session evicted")
		}
	}
}

func (s *sessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.cancel()
		delete(s.entries, id)
		metrics.ActiveSessions.Dec()
	}
}
