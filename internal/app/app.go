package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	servernet "locked-study/server/internal/net"
	"locked-study/server/internal/observability"
	"locked-study/server/internal/room"
	"locked-study/server/internal/session"
	"locked-study/server/internal/telemetry"
	"locked-study/server/logging"
	loggingSinks "locked-study/server/logging/sinks"
)

const (
	DefaultAddr          = ":8080"
	DefaultSweepInterval = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
)

type Config struct {
	Addr          string
	Logger        telemetry.Logger
	Room          room.Config
	Session       session.Config
	Logging       logging.Config
	Observability observability.Config
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:          DefaultAddr,
		Room:          room.DefaultConfig(),
		Session:       session.DefaultConfig(),
		Logging:       logging.DefaultConfig(),
		SweepInterval: DefaultSweepInterval,
	}
}

// ApplyEnv overrides cfg from environment lookups. Invalid values are
// logged and ignored.
func ApplyEnv(cfg Config, lookup func(string) (string, bool), logger telemetry.Logger) Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	get := func(key string) (string, bool) {
		raw, ok := lookup(key)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}

	if raw, ok := get("ADDR"); ok {
		cfg.Addr = raw
	}
	if raw, ok := get("TICK_RATE"); ok {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Room.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q: %v", raw, err)
		}
	}
	if raw, ok := get("RECONNECT_GRACE"); ok {
		if value, err := time.ParseDuration(raw); err == nil {
			cfg.Session.ReconnectGrace = value
		} else {
			logger.Printf("invalid RECONNECT_GRACE=%q: %v", raw, err)
		}
	}
	if raw, ok := get("EMPTY_ROOM_TIMEOUT"); ok {
		if value, err := time.ParseDuration(raw); err == nil {
			cfg.Room.EmptyRoomTimeout = value
		} else {
			logger.Printf("invalid EMPTY_ROOM_TIMEOUT=%q: %v", raw, err)
		}
	}
	if raw, ok := get("LOG_JSON_PATH"); ok {
		cfg.Logging.JSON.FilePath = raw
		cfg.Logging = cfg.Logging.WithSink(logging.SinkJSON)
	}
	if raw, ok := get("LOG_MIN_SEVERITY"); ok {
		if severity, valid := logging.ParseSeverity(strings.ToLower(raw)); valid {
			cfg.Logging.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_MIN_SEVERITY=%q", raw)
		}
	}
	if raw, ok := get("ENABLE_PPROF_TRACE"); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprofTrace = value
		} else {
			logger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}
	if raw, ok := get("METRICS_LOG_INTERVAL"); ok {
		if value, err := time.ParseDuration(raw); err == nil {
			cfg.Observability.MetricsLogInterval = value
		} else {
			logger.Printf("invalid METRICS_LOG_INTERVAL=%q: %v", raw, err)
		}
	}
	if raw, ok := get("TRUST_CLIENT_VERDICTS"); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Room.Puzzles.TrustClientVerdicts = value
		} else {
			logger.Printf("invalid TRUST_CLIENT_VERDICTS=%q: %v", raw, err)
		}
	}
	if raw, ok := get("ROOM_SEED"); ok {
		cfg.Room.Seed = raw
	}
	return cfg
}

// Server is the assembled process: logging router, room store, session hub
// and HTTP handler.
type Server struct {
	cfg     Config
	logger  telemetry.Logger
	router  *logging.Router
	store   *room.Store
	hub     *session.Hub
	handler http.Handler
}

// Build wires the components without starting any goroutine besides the
// logging router.
func Build(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	sinks := []logging.NamedSink{}
	if cfg.Logging.HasSink(logging.SinkConsole) {
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkConsole, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Logging.Console)})
	}
	if cfg.Logging.HasSink(logging.SinkJSON) && cfg.Logging.JSON.FilePath != "" {
		file, err := os.OpenFile(cfg.Logging.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open json log %s: %w", cfg.Logging.JSON.FilePath, err)
		}
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkJSON, Sink: loggingSinks.NewJSON(file, cfg.Logging.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(logging.ClockFunc(time.Now), cfg.Logging, sinks)
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	metrics := telemetry.WrapMetrics(router.Metrics())

	store := room.NewStore(cfg.Room, room.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
	})
	hub := session.NewHub(store, cfg.Session, session.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
	})
	handler := servernet.NewHTTPHandler(store, hub, servernet.HTTPHandlerConfig{
		Logger:        logger,
		Publisher:     router,
		Router:        router,
		Observability: cfg.Observability,
	})

	return &Server{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		store:   store,
		hub:     hub,
		handler: handler,
	}, nil
}

func (s *Server) Handler() http.Handler { return s.handler }
func (s *Server) Store() *room.Store    { return s.store }
func (s *Server) Hub() *session.Hub     { return s.hub }

// Start runs rooms, the idle sweeper and the optional metrics logger until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	s.store.Start(ctx)
	go s.store.RunSweeper(ctx, s.cfg.SweepInterval)
	if interval := s.cfg.Observability.MetricsLogInterval; interval > 0 {
		go s.logMetrics(ctx, interval)
	}
}

func (s *Server) logMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := s.router.Metrics().Snapshot()
			keys := make([]string, 0, len(snapshot))
			for key := range snapshot {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, key := range keys {
				parts = append(parts, fmt.Sprintf("%s=%d", key, snapshot[key]))
			}
			s.logger.Printf("[metrics] rooms=%d %s", len(s.store.Rooms()), strings.Join(parts, " "))
		}
	}
}

// Close drops connections, closes rooms and flushes the logging router.
func (s *Server) Close(ctx context.Context) error {
	s.hub.Close()
	s.store.Shutdown()
	return s.router.Close(ctx)
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	srv, err := Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := srv.Close(closeCtx); cerr != nil {
			srv.logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv.Start(ctx)

	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	srv.logger.Printf("server listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
