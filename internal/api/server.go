// Package api provides the HTTP API server and handlers for the PageVoice application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/coverage"
	"github.com/pagevoice/pagevoice-server/internal/pipeline"
	"github.com/pagevoice/pagevoice-server/internal/search"
	"github.com/pagevoice/pagevoice-server/internal/service"
	"github.com/pagevoice/pagevoice-server/internal/session"
	"github.com/pagevoice/pagevoice-server/internal/store"
	"github.com/pagevoice/pagevoice-server/internal/validation"
)

// Services groups the business logic collaborators used by the API server.
type Services struct {
	Sessions *session.Store
	Books    *service.BookService
	Runner   *pipeline.Runner
	Tracker  *coverage.Tracker
	Search   *search.Index // nil disables the search endpoint's index checks
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *Services
	store           *store.Store
	artifacts       *artifacts.Store
	validator       *validation.Validator
	defaultProvider string

	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, db *store.Store, artifactStore *artifacts.Store, defaultProvider string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Session-ID"},
	}))
	router.Use(sessionMiddleware)

	humaConfig := huma.DefaultConfig("PageVoice API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "Session ID",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		services:        services,
		store:           db,
		artifacts:       artifactStore,
		validator:       validation.New(),
		defaultProvider: defaultProvider,
		router:          router,
		api:             api,
		logger:          logger,
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerNarrationRoutes()
	s.registerChunkRoutes()
	s.registerSearchRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
