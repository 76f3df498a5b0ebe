/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the terminal/admin frontends

ROUTE GROUPS:
  /api/clock/*          Terminal and manual punches
  /api/employees/*      Employee registry, entries, summaries
  /api/entries/*        Corrections, audits, payouts
  /api/break-rules      Break table administration
  /api/scenarios/*      Demo roster loaders (development only)
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  deploy behind the venue LAN or a reverse proxy that handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Clocking routes
		r.Route("/clock", func(r chi.Router) {
			r.Post("/in", h.TerminalClockIn)
			r.Post("/out", h.TerminalClockOut)
			r.Post("/manual/in", h.ManualClockIn)
			r.Post("/manual/out", h.ManualClockOut)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/entries", h.GetEmployeeEntries)
			r.Get("/{id}/days/{date}", h.GetDailySummary)
			r.Get("/{id}/months/{year}/{month}", h.GetMonthlySummary)
		})

		// Entry correction routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Post("/{id}/split", h.SplitEntry)
			r.Delete("/{id}", h.DeleteEntry)
			r.Get("/{id}/audits", h.GetEntryAudits)
			r.Post("/{id}/payout", h.MarkPayout)
			r.Delete("/{id}/payout", h.UnmarkPayout)
		})

		// Break rule routes
		r.Get("/break-rules", h.GetBreakRules)
		r.Put("/break-rules", h.PutBreakRules)

		// Demo scenario routes (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
