package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dealerstack/onroad/internal/domain"
	"github.com/dealerstack/onroad/internal/offers"
	"github.com/dealerstack/onroad/internal/quote"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, service *quote.Service, engine *offers.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, service, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Quoting
		r.Post("/quote", handler.Quote)
		r.Post("/quote/async", handler.QuoteAsync)

		// Snapshot retrieval
		r.Get("/snapshots/{id}", handler.GetSnapshot)
		r.Get("/leads/{id}/snapshots", handler.ListLeadSnapshots)

		// Stateless pricing lookups
		r.Get("/tax/classification", handler.TaxClassification)
		r.Get("/emi", handler.EMIQuote)
		r.Get("/coins/quote", handler.CoinQuote)

		// Registration rule management
		r.Get("/rules/registration", handler.ListRegistrationRules)
		r.Get("/rules/registration/{state}", handler.GetRegistrationRule)
		r.Post("/rules/registration", handler.CreateRegistrationRule)

		// Insurance rule management
		r.Get("/rules/insurance", handler.ListInsuranceRules)
		r.Get("/rules/insurance/{state}", handler.GetInsuranceRule)
		r.Post("/rules/insurance", handler.CreateInsuranceRule)

		// Offer management
		r.Get("/offers", handler.ListOffers)
		r.Get("/offers/{id}", handler.GetOffer)
		r.Post("/offers", handler.CreateOffer)
		r.Post("/offers/reload", handler.ReloadOffers)
	})

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
