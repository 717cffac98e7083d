// Package api provides the HTTP API server and handlers for the Notedly application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/notedly/notedly-server/internal/blob"
	"github.com/notedly/notedly-server/internal/config"
	"github.com/notedly/notedly-server/internal/ratelimit"
	"github.com/notedly/notedly-server/internal/store"
	"github.com/notedly/notedly-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *store.Store
	services     *Services
	blobs        *blob.Store
	validator    *validation.Validator
	loginLimiter *ratelimit.KeyedRateLimiter
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg *config.Config, st *store.Store, services *Services, blobs *blob.Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	humaConfig := huma.DefaultConfig("Notedly API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:     st,
		services:  services,
		blobs:     blobs,
		validator: validation.New(),
		// 5 login attempts per minute per email.
		loginLimiter: ratelimit.New(5.0/60.0, 5),
		router:       router,
		api:          api,
		logger:       logger,
		cfg:          cfg,
	}

	s.registerHealthRoutes()
	s.registerUserRoutes()
	s.registerNoteRoutes()
	s.registerCategoryRoutes()

	// Attachment files are served straight off disk.
	router.Handle(cfg.Blob.BaseURL+"/*",
		http.StripPrefix(cfg.Blob.BaseURL+"/", http.FileServer(http.Dir(blobs.BasePath()))))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
