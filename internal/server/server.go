// Package server assembles the router and runs the HTTP servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/productapi/internal/auth"
	"github.com/vyrodovalexey/productapi/internal/config"
	"github.com/vyrodovalexey/productapi/internal/handler"
	"github.com/vyrodovalexey/productapi/internal/metrics"
	"github.com/vyrodovalexey/productapi/internal/middleware"
	"github.com/vyrodovalexey/productapi/internal/model"
	"github.com/vyrodovalexey/productapi/internal/store"
)

// Server represents the HTTP server and the optional probe server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	probeRouter *mux.Router
	handler     http.Handler
	config      *config.Config
	logger      *zap.Logger
	events      *handler.EventsHandler
	registry    *prometheus.Registry
}

// New creates a new Server instance. A nil authenticator disables the
// authentication gate.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	productStore store.Store,
	authenticator auth.Authenticator,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		logger:   logger,
		events:   handler.NewEventsHandler(logger),
		registry: prometheus.NewRegistry(),
	}

	if cfg.MetricsEnabled {
		s.registry.MustRegister(metrics.NewCatalogCollector(productStore, logger))
	}

	restHandler := handler.NewRESTHandler(productStore, s.events, logger)
	s.setupRoutes(restHandler)
	s.handler = s.setupMiddleware(authenticator)
	s.httpServer = newHTTPServer(cfg.Address(), s.handler)

	if cfg.ProbePort != 0 {
		s.setupProbeRouter(restHandler)
		probeHandler := middleware.Chain(
			middleware.Recovery(logger),
			middleware.Logging(logger),
		)(s.probeRouter)
		s.probeServer = newHTTPServer(cfg.ProbeAddress(), probeHandler)
	}

	return s
}

// setupMiddleware wraps the router. Everything except metrics runs before
// routing, so preflight requests and unknown paths pass through CORS and the
// authentication gate as well.
func (s *Server) setupMiddleware(authenticator auth.Authenticator) http.Handler {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logging(s.logger),
		middleware.CORS(s.config.AllowedOrigins(), allowedMethods, allowedHeaders),
	}
	if authenticator != nil {
		chain = append(chain, middleware.Auth(authenticator, s.logger))
	}
	chain = append(chain, middleware.BodyLimit(s.config.MaxBodyBytes))

	return middleware.Chain(chain...)(s.router)
}

func (s *Server) setupRoutes(restHandler *handler.RESTHandler) {
	restHandler.RegisterRoutes(s.router)
	s.events.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", s.metricsHandler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, model.KindNotFound, "Route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, model.KindBadRequest, "Method not allowed")
	})
}

// setupProbeRouter serves health, readiness and metrics without
// authentication on a separate port.
func (s *Server) setupProbeRouter(restHandler *handler.RESTHandler) {
	s.probeRouter = mux.NewRouter()
	s.probeRouter.HandleFunc("/health", restHandler.HealthCheck).Methods(http.MethodGet)
	s.probeRouter.HandleFunc("/ready", restHandler.ReadyCheck).Methods(http.MethodGet)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", s.metricsHandler()).Methods(http.MethodGet)
	}
}

// metricsHandler serves the process-wide HTTP metrics together with the
// catalog metrics of this server.
func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, s.registry},
		promhttp.HandlerOpts{},
	)
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Run starts the servers and blocks until ctx is canceled or a listener
// fails, then shuts down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting server",
			zap.String("address", s.httpServer.Addr),
			zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen and serve: %w", err)
		}
		return nil
	})

	if s.probeServer != nil {
		g.Go(func() error {
			s.logger.Info("starting probe server", zap.String("address", s.probeServer.Addr))
			if err := s.probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("probe server listen and serve: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown closes change feed connections and gracefully stops the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.events.CloseAllConnections()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("probe server shutdown: %w", err)
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the fully wrapped main handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ProbeRouter returns the probe router, or nil when the probe server is off.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}
