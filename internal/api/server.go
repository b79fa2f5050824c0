package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/webui-wrapper/internal/history"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/config"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/database"
	"github.com/nerrad567/webui-wrapper/internal/infrastructure/logging"
	"github.com/nerrad567/webui-wrapper/internal/supervisor"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 5 * time.Second

// Supervisor is the part of supervisor.Supervisor the API reads.
type Supervisor interface {
	Status() supervisor.Status
	Check(ctx context.Context) bool
}

// HealthChecker is a backend that can verify it is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backend is an optional sink with a tracked connection.
type Backend interface {
	HealthChecker
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Supervisor Supervisor
	History    history.Repository // optional; history routes return 503 without it
	DB         *database.DB       // optional; pool stats on /system
	MQTT       Backend            // optional
	Influx     Backend            // optional
	Metrics    http.Handler       // optional; mounted at /metrics
	Hub        *Hub               // optional; created by New when nil
	Version    string
}

// Server is the HTTP status API.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	supervisor Supervisor
	history    history.Repository
	db         *database.DB
	mqtt       Backend
	influx     Backend
	metrics    http.Handler
	hub        *Hub
	version    string
	startTime  time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// backends returns the configured backends keyed by name.
func (s *Server) backends() map[string]HealthChecker {
	out := make(map[string]HealthChecker, 3)
	if s.db != nil {
		out["database"] = s.db
	}
	if s.mqtt != nil {
		out["mqtt"] = s.mqtt
	}
	if s.influx != nil {
		out["influxdb"] = s.influx
	}
	return out
}

// New creates a server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		history:    deps.History,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		influx:     deps.Influx,
		metrics:    deps.Metrics,
		hub:        hub,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Hub returns the WebSocket hub, for registration as a health sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. Binding happens
// synchronously so a busy port is reported here.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and shuts the listener down gracefully.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
