package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/devicehub/devicehub-core/internal/auth"
	"github.com/devicehub/devicehub-core/internal/device"
	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
	"github.com/devicehub/devicehub-core/internal/infrastructure/logging"
	"github.com/devicehub/devicehub-core/internal/lending"
	"github.com/devicehub/devicehub-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCookieName is used when the session config leaves the name empty.
const defaultCookieName = "devicehub_session"

// HealthChecker is implemented by infrastructure clients reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Session  config.SessionConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Lending  *lending.Service
	Users    auth.UserRepository
	Sessions *session.Store

	// Hub, if set, is used instead of a hub created by Start. Pass one when
	// the hub must also be registered as an event sink.
	Hub *Hub

	// Checks are the components reported by /health, keyed by name.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server for DeviceHub Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	sessCfg     config.SessionConfig
	logger      *logging.Logger
	registry    *device.Registry
	lending     *lending.Service
	users       auth.UserRepository
	sessions    *session.Store
	checks      map[string]HealthChecker
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("device registry is required")
	case deps.Lending == nil:
		return nil, fmt.Errorf("lending service is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		sessCfg:  deps.Session,
		logger:   deps.Logger,
		registry: deps.Registry,
		lending:  deps.Lending,
		users:    deps.Users,
		sessions: deps.Sessions,
		checks:   deps.Checks,
		version:  deps.Version,
	}
	if s.sessCfg.CookieName == "" {
		s.sessCfg.CookieName = defaultCookieName
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected) and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
