package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff"
	"github.com/pkg/profile"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/a-bouts/voyage-planner/api"
	"github.com/a-bouts/voyage-planner/client"
	"github.com/a-bouts/voyage-planner/history"
	"github.com/a-bouts/voyage-planner/session"
	"github.com/a-bouts/voyage-planner/xmpp"
)

func historyBackend(kind, sqlitePath, redisAddr, redisPassword string) (history.Backend, error) {
	switch kind {
	case "", "memory":
		return history.NewMemoryBackend(), nil
	case "sqlite":
		return history.OpenSQLite(sqlitePath)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			Password:     redisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warnf("Redis %s not reachable yet", redisAddr)
		}
		return history.NewRedisBackend(rdb), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", kind)
}

func main() {

	fs := flag.NewFlagSet("voyage-planner", flag.ExitOnError)
	var (
		listen         = fs.String("listen", ":8888", "address to serve the planner on")
		serviceURL     = fs.String("service-url", "http://localhost:8000", "base URL of the routing service")
		requestTimeout = fs.Duration("request-timeout", session.DefaultTimeout, "timeout of a routing service request, negative to disable")
		searchDebounce = fs.Duration("search-debounce", session.DefaultDebounce, "quiet time before a search is sent")
		rateLimit      = fs.Float64("rate-limit", 0, "requests per second to the routing service, 0 for unlimited")
		cacheTTL       = fs.Duration("cache-ttl", 5*time.Minute, "cache duration of port and vessel lists")
		historyKind    = fs.String("history-backend", "memory", "history storage: memory, sqlite or redis")
		sqlitePath     = fs.String("sqlite-path", "planner.db", "sqlite database file")
		redisAddr      = fs.String("redis-addr", "localhost:6379", "redis address")
		redisPassword  = fs.String("redis-password", "", "redis password")
		sessionIdle    = fs.Duration("session-idle", 2*time.Hour, "evict sessions idle for longer, 0 to keep them")
		corsOrigins    = fs.String("cors-origins", "*", "comma separated allowed origins")
		cpuprofile     = fs.Bool("cpuprofile", false, "write a cpu profile")
		logLevel       = fs.String("log-level", "info", "log level")
		logJSON        = fs.Bool("log-json", false, "log as json")
		xmppHost       = fs.String("xmpp-host", "", "")
		xmppJid        = fs.String("xmpp-jid", "", "")
		xmppPassword   = fs.String("xmpp-password", "", "")
		xmppTo         = fs.String("xmpp-to", "", "")
	)
	ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix())

	if level, err := log.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithError(err).Warnf("Unknown log level %s", *logLevel)
	}
	if *logJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}

	if *cpuprofile {
		defer profile.Start(profile.CPUProfile, profile.NoShutdownHook).Stop()
	}

	backend, err := historyBackend(*historyKind, *sqlitePath, *redisAddr, *redisPassword)
	if err != nil {
		log.WithError(err).Fatal("Unable to open history storage")
	}

	var notifier session.Notifier
	x := xmpp.New(xmpp.Config{Host: *xmppHost, Jid: *xmppJid, Password: *xmppPassword, To: *xmppTo})
	if x.Config.Enabled() {
		notifier = x
		defer x.Close()
	}

	service := client.New(client.Config{
		BaseURL:   *serviceURL,
		RateLimit: *rateLimit,
		Burst:     int(*rateLimit) + 1,
		CacheTTL:  *cacheTTL,
	})

	router, planner := api.InitServer(api.Config{
		Service:  service,
		Notifier: notifier,
		History:  backend,
		Loop: session.Config{
			Timeout:  *requestTimeout,
			Debounce: *searchDebounce,
		},
		SessionIdle: *sessionIdle,
	})
	defer planner.Close()

	srv := &http.Server{
		Addr:              *listen,
		Handler:           api.Wrap(router, strings.Split(*corsOrigins, ",")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Shutdown failed")
		}
	}()

	log.WithFields(log.Fields{"listen": *listen, "service": *serviceURL, "history": *historyKind}).Info("Start server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server failed")
	}
}
