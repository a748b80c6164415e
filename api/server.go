/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. Recoverer:      Panic recovery (500 instead of crash)
  3. RequestLogger:  Structured request logging
  4. HTTPMetrics:    Latency histogram per route
  5. CORS:           Cross-origin requests for frontend

ROUTE GROUPS:
  /api/auth/*       Registration, login, profile
  /api/requests/*   Purchase request lifecycle and decisions
  /api/finance/*    Finance views (approved requests)
  /api/pos/*        Purchase order receipt validation
  /api/scenarios/*  Demo scenarios (dev only)
  /metrics          Prometheus
  /healthz          Liveness

AUTHENTICATION:
  Everything under /api except /api/auth/register, /api/auth/login and the
  scenario endpoints requires a bearer token. Role checks happen inside
  the domain layer, not in routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth, logging, metrics middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Log))
	r.Use(HTTPMetrics(h.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.RequireAuth).Get("/profile", h.Profile)
		})

		// Purchase request routes
		r.Route("/requests", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/", h.SubmitRequest)
			r.Get("/", h.ListRequests)
			r.Get("/{id}", h.GetRequest)
			r.Put("/{id}/items", h.EditItems)
			r.Post("/{id}/proforma", h.AttachProforma)
			r.Post("/{id}/decisions", h.Decide)
			r.Get("/{id}/po", h.GetPurchaseOrder)
		})

		// Finance routes
		r.Route("/finance", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/requests", h.ListFinanceRequests)
		})

		// Purchase order routes
		r.Route("/pos", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/{number}/receipt/validate", h.ValidateReceipt)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
