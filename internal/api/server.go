package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/config"
	"github.com/nerrad567/pm2-watchdog/internal/infrastructure/logging"
	"github.com/nerrad567/pm2-watchdog/internal/watchdog"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusSource provides the check loop's latest state.
// Satisfied by *watchdog.State.
type StatusSource interface {
	Snapshot() watchdog.Snapshot
}

// ProcessLister provides the monitored processes with their last observed
// restart counts. Satisfied by *watchdog.Checker.
type ProcessLister interface {
	Processes() []watchdog.MonitoredProcess
}

// HealthChecker is implemented by transports whose connectivity is
// reported on the health endpoint (MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Monitor config.MonitorConfig
	Logger  *logging.Logger
	Status  StatusSource

	// Processes reports last observed counts on /status. Optional; without
	// it the configured names are listed with zero counts.
	Processes ProcessLister

	// Components are reported on /health by name. Optional.
	Components map[string]HealthChecker

	Version string
}

// Server is the read-only status HTTP server.
//
// It is created with New() and started with Start().
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg        config.APIConfig
	monitor    config.MonitorConfig
	logger     *logging.Logger
	status     StatusSource
	processes  ProcessLister
	components map[string]HealthChecker
	version    string
	startTime  time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, status source)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	return &Server{
		cfg:        deps.Config,
		monitor:    deps.Monitor,
		logger:     deps.Logger,
		status:     deps.Status,
		processes:  deps.Processes,
		components: deps.Components,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
//
// Binding happens before Start returns, so an address already in use is
// reported to the caller instead of only being logged.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("status API listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	return s.Release(ctx)
}

// Release implements shutdown.Releaser.
func (s *Server) Release(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
