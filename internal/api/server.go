package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/open-utility/kestrel/internal/domain"
	"github.com/open-utility/kestrel/internal/engine"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, eng *engine.Engine, repo domain.Repository, cache domain.Cache, geocoder domain.ReverseGeocoder, reporter domain.ReportGenerator, version string) *Server {
	handler := NewHandler(eng, repo, cache, geocoder, reporter, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Session lifecycle and analysis
	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", handler.CreateSession)
		r.Get("/", handler.ListSessions)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetSession)
			r.Get("/results", handler.GetResults)
			r.Get("/results/{tesisatNo}", handler.GetScore)
			r.Get("/stats", handler.GetStats)
			r.Post("/analyze/{module}", handler.ApplyAnalyzer)
			r.Get("/building-risks", handler.GetBuildingRisks)
			r.Get("/weather-risks", handler.GetWeatherRisks)
			r.Get("/export", handler.ExportResults)
			r.Get("/alerts", handler.ListAlerts)
			r.Post("/report", handler.GenerateReport)
		})
	})

	// Reverse geocoding
	router.Post("/geocode", handler.Geocode)

	// Custom rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
