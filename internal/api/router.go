/**
 * @description
 * HTTP router for the REST API, built on go-chi/chi. Applies logging,
 * recovery, timeout and CORS middleware, and groups the authenticated
 * routes behind the bearer-token middleware.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the API routes.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("QuotaWatch API is healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
		r.Get("/platforms", h.handleListPlatforms)

		// Protected routes that require authentication
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret))

			r.Get("/auth/me", h.handleMe)

			r.Get("/keys", h.handleListKeys)
			r.Post("/keys", h.handleCreateKey)
			r.Post("/keys/test", h.handleTestKey)
			r.Delete("/keys/{keyID}", h.handleDeleteKey)
			r.Post("/keys/{keyID}/trigger-check", h.handleTriggerCheck)
			r.Get("/keys/{keyID}/balance-history", h.handleBalanceHistory)
			r.Put("/keys/{keyID}/notification-rule", h.handleUpsertRule)
			r.Delete("/keys/{keyID}/notification-rule", h.handleDeleteRule)
		})
	})

	return r
}
