// Package api assembles the HTTP surface of the advisory service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kisaansahayak/sahayak/internal/api/handlers"
	"github.com/kisaansahayak/sahayak/internal/api/middleware"
	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, chain contracts.AuthProviderChain) http.Handler {
	r := chi.NewRouter()

	authMW := middleware.NewAuthMiddleware(chain)
	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(authMW.Handler)

	// Health & info
	r.Get("/health", h.HealthCheck)
	r.Get("/version", h.VersionInfo)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(limiter.Handler).Post("/chat", h.Chat)
		r.Get("/auth/verify", h.AuthVerify)
		r.With(limiter.Handler).Get("/reverse-geocode", h.ReverseGeocode)

		// Conversations (identified users only)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.CreateConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", h.UpdateConversation)
				r.Delete("/", h.DeleteConversation)
				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.AppendMessage)
			})
		})
	})

	return r
}
