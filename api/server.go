/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin dashboards

ROUTE GROUPS:
  /api/messages     Inbound work updates
  /api/employees/*  Roster management and history
  /api/requests/*   Approval workflow
  /api/reports/*    Derived views
  /api/settings/*   Runtime settings

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", h.SubmitMessage)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Get("/{id}/history", h.GetHistory)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/weekly", h.GetWeeklyReport)
			r.Get("/monthly", h.GetMonthlyReport)
			r.Get("/absent", h.GetAbsentReport)
			r.Get("/late", h.GetLateReport)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/deadline", h.GetDeadline)
			r.Put("/deadline", h.SetDeadline)
		})
	})

	return r
}
