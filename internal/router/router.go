package router

import (
	"net/http"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/handler"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	PackHandler     *handler.PackHandler
	FairnessHandler *handler.FairnessHandler
	AdminHandler    *handler.AdminHandler
	CatalogHandler  *handler.CatalogHandler
	AdminAuth       func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Admin-Key", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unified status endpoint for uptime monitors - public
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints - public
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Fairness audit surface - public
		if cfg.FairnessHandler != nil {
			r.Get("/fairness", cfg.FairnessHandler.Get)
		}

		// Pack endpoints - public; wallet ownership is enforced per session
		if cfg.PackHandler != nil {
			r.Route("/packs", func(r chi.Router) {
				r.Post("/preview", cfg.PackHandler.Preview)
				r.Post("/build", cfg.PackHandler.Build)
				r.Get("/{session_id}", cfg.PackHandler.GetSession)
				r.Post("/{session_id}/accept", cfg.PackHandler.Accept)
				r.Post("/{session_id}/reject", cfg.PackHandler.Reject)
			})
		}

		// Admin endpoints - login is open, everything else behind auth
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/login", cfg.AdminHandler.Login)

				r.Group(func(r chi.Router) {
					if cfg.AdminAuth != nil {
						r.Use(cfg.AdminAuth)
					}

					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/sweep", cfg.AdminHandler.Sweep)
					r.Post("/sessions/{session_id}/settle", cfg.AdminHandler.Settle)

					if cfg.CatalogHandler != nil {
						r.Get("/catalog", cfg.CatalogHandler.List)
						r.Post("/catalog/import", cfg.CatalogHandler.Import)
						r.Post("/cards/provision", cfg.CatalogHandler.Provision)
					}
				})
			})
		}
	})

	return r
}
