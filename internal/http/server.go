// Package http provides the HTTP server for soundrelay.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmylchreest/soundrelay/internal/config"
	"github.com/jmylchreest/soundrelay/internal/http/handlers"
	"github.com/jmylchreest/soundrelay/internal/http/middleware"
	"github.com/jmylchreest/soundrelay/internal/metrics"
	"github.com/jmylchreest/soundrelay/internal/version"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind to (default: "0.0.0.0").
	Host string
	// Port is the port to listen on (default: 4040).
	Port int
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing the response. Zero disables it, which
	// streams need.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration
	// ShutdownTimeout is the maximum duration to wait for active connections to close.
	ShutdownTimeout time.Duration
	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string
	// UserHeader names the trusted header carrying the user name.
	UserHeader string
	// DefaultUser is used when the header is absent.
	DefaultUser string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            4040,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		UserHeader:      "X-Remote-User",
	}
}

// ServerConfigFrom builds a ServerConfig from the application configuration.
func ServerConfigFrom(cfg *config.Config) ServerConfig {
	sc := DefaultServerConfig()
	sc.Host = cfg.Server.Host
	sc.Port = cfg.Server.Port
	sc.ReadTimeout = cfg.Server.ReadTimeout
	sc.WriteTimeout = cfg.Server.WriteTimeout
	sc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	sc.CORSOrigins = cfg.Server.CORSOrigins
	sc.UserHeader = cfg.Auth.UserHeader
	sc.DefaultUser = cfg.Auth.DefaultUser
	return sc
}

// Server represents the HTTP server.
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with the given configuration. m may be
// nil, in which case no request metrics are recorded and /metrics is not served.
func NewServer(cfg ServerConfig, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.ServerHeader(version.ServerHeader()))
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.User(cfg.UserHeader, cfg.DefaultUser))
	router.Use(middleware.SkipCompressionForMedia(chimiddleware.Compress(5)))

	humaConfig := huma.DefaultConfig("soundrelay API", version.Version)
	humaConfig.Info.Description = "Media streaming, HLS and download server"
	humaConfig.DocsPath = ""

	api := humachi.New(router, humaConfig)

	router.Handle("/docs", handlers.NewDocsHandler("soundrelay API", "/openapi.json"))
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		httpServer: &http.Server{
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// API returns the Huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the Chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Address returns the listen address.
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := s.Address()
	s.httpServer.Addr = addr

	s.logger.Info("starting HTTP server",
		slog.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe starts the server and shuts it down when ctx is canceled.
// onShutdown runs before connections are drained so that long-lived streams
// can end.
func (s *Server) ListenAndServe(ctx context.Context, onShutdown func()) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		if onShutdown != nil {
			onShutdown()
		}
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Handlers groups the route handlers of the server.
type Handlers struct {
	Media     *handlers.MediaHandler
	Transfers *handlers.TransferHandler
	Players   *handlers.PlayerHandler
	Health    *handlers.HealthHandler
}

// Register mounts the handlers. Media documentation is registered with huma
// before the raw Chi routes replace its handlers.
func (s *Server) Register(h Handlers) {
	if h.Health != nil {
		h.Health.Register(s.api)
	}
	if h.Transfers != nil {
		h.Transfers.Register(s.api)
	}
	if h.Players != nil {
		h.Players.Register(s.api)
	}
	if h.Media != nil {
		h.Media.Register(s.api)
		h.Media.RegisterChiRoutes(s.router)
	}
}
