package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-review/internal/web/handlers"
	"github.com/kozaktomas/face-review/internal/web/middleware"
)

func (s *Server) setupRoutes(verifier middleware.TokenVerifier, reviews handlers.ReviewService, migrator handlers.Migrator) {
	reviewHandler := handlers.NewReviewHandler(reviews)
	migrateHandler := handlers.NewMigrateHandler(migrator)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Admin review surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(verifier, false))
			r.Get("/reviews/next", reviewHandler.Next)
		})

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(verifier, false))
				r.Post("/reviews", reviewHandler.Decide)
			})

			// Migration headers short-circuit credential parsing.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(verifier, true))
				r.Post("/migrate-login", migrateHandler.Login)
			})
		})
	})
}
