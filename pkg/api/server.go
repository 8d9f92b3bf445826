package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confsys/sitecfg/pkg/httputil"
	"github.com/confsys/sitecfg/pkg/middleware"
	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/resolver"
	"github.com/confsys/sitecfg/pkg/tracker"
)

// Server exposes the configuration resolver over HTTP.
type Server struct {
	resolver *resolver.Service
	tracker  *tracker.Tracker
	router   *mux.Router
	logger   *observability.Logger
}

// Options configures the HTTP server surface.
type Options struct {
	Resolver *resolver.Service
	Tracker  *tracker.Tracker
	Logger   *observability.Logger

	// MetricsRegistry, when set, mounts a Prometheus scrape endpoint
	// at /metrics.
	MetricsRegistry *prometheus.Registry

	// RateLimit, when set, limits state-changing requests per caller.
	// Reads are never limited.
	RateLimit *middleware.RateLimitConfig
}

// NewServer creates the API server and wires its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		resolver: opts.Resolver,
		tracker:  opts.Tracker,
		router:   mux.NewRouter(),
		logger:   logger,
	}
	s.setupRoutes(opts)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(opts Options) {
	registry := opts.MetricsRegistry
	// Config routes
	s.router.HandleFunc("/config", s.getAllConfig).Methods("GET")
	s.router.HandleFunc("/config/{category}", s.getConfig).Methods("GET")
	s.router.HandleFunc("/config/{category}", s.putConfig).Methods("PUT")
	s.router.HandleFunc("/config/{category}", s.resetConfig).Methods("DELETE")

	// Admin routes
	s.router.HandleFunc("/admin/audit", s.getAuditRecords).Methods("GET")
	s.router.HandleFunc("/admin/cache/invalidate", s.invalidateCache).Methods("POST")
	s.router.HandleFunc("/admin/cache/warm", s.warmCache).Methods("POST")
	s.router.HandleFunc("/admin/versions", s.getVersions).Methods("GET")

	// Operational routes
	s.router.HandleFunc("/health", s.getHealth).Methods("GET")
	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.router.Use(
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	)
	if opts.RateLimit != nil {
		s.router.Use(middleware.NewWriteRateLimit(opts.RateLimit).Handler)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
