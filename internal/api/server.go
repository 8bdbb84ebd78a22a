// Package api provides the HTTP API server and handlers for the spotlight
// feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/metrics"
	"github.com/mtorresweb/spotlight-server/internal/ratelimit"
	"github.com/mtorresweb/spotlight-server/internal/search"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// Options holds the dependencies of a Server. Search, Events, Metrics and
// Limiter are optional.
type Options struct {
	Store          store.Store
	Services       *Services
	Verifier       auth.Verifier
	Objects        media.ObjectStorage
	Search         *search.Index
	Events         *sse.Manager
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.KeyedRateLimiter
	AllowedOrigins []string
	MaxUploadSize  int64
	Logger         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     store.Store
	services  *Services
	objects   media.ObjectStorage
	index     *search.Index
	events    *sse.Manager
	metrics   *metrics.Metrics
	maxUpload int64
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(opts Options) *Server {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = MaxUploadSize
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		store:     opts.Store,
		services:  opts.Services,
		objects:   opts.Objects,
		index:     opts.Search,
		events:    opts.Events,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadSize,
		router:    chi.NewRouter(),
		logger:    opts.Logger,
	}

	s.setupMiddleware(opts)
	s.api = humachi.New(s.router, humaConfig())
	RegisterErrorHandler()
	s.setupRoutes()

	return s
}

// humaConfig builds the OpenAPI configuration shared by the server and tests.
func humaConfig() huma.Config {
	config := huma.DefaultConfig("Spotlight API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	config.Transformers = append(config.Transformers, EnvelopeTransformer)
	return config
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the chi router for additional mounts.
func (s *Server) Router() chi.Router {
	return s.router
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(authMiddleware(opts.Verifier))
	s.router.Use(RateLimitMiddleware(opts.Limiter, s.logger))
}

// setupRoutes registers huma operations and the plain chi routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerPostRoutes()
	s.registerCommentRoutes()
	s.registerSearchRoutes()

	s.router.Get("/media/{key}", s.handleMedia)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	if s.events != nil {
		s.router.Handle("/api/v1/events", sse.NewHandler(s.events, s.streamViewer, s.logger))
	}
}

// streamViewer resolves the caller of an event stream.
func (s *Server) streamViewer(r *http.Request) (string, error) {
	viewer, err := s.services.Identity.Viewer(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		return "", err
	}
	return viewer.UserID, nil
}
