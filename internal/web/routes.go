package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/add-me-in/internal/web/handlers"
	"github.com/kozaktomas/add-me-in/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	studioHandler := handlers.NewStudioHandler()
	configHandler := handlers.NewConfigHandler(s.config, s.provider)

	// Health check (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Get("/api/v1/config", configHandler.Get)
	s.router.Post("/api/v1/config/usage/reset", configHandler.ResetUsage)

	// Everything else works on the visitor's session
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(sessionManager))

		r.Get("/", studioHandler.Index)
		r.Get("/result.png", studioHandler.Result)
		r.Post("/upload/{slot}", studioHandler.Upload)
		r.Post("/generate", studioHandler.Generate)
		r.Post("/refine", studioHandler.Refine)
		r.Post("/reset", studioHandler.Reset)

		r.Get("/api/v1/state", studioHandler.State)
	})
}
