/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/invoices/*   Invoice lifecycle and queries
  /healthz          Liveness probe

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
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// API routes
	r.Route("/api/invoices", func(r chi.Router) {
		r.Get("/", h.ListInvoices)
		r.Post("/", h.CreateInvoice)
		r.Get("/count", h.CountInvoices)

		// Index lookups before the {id} subtree so hashes never parse
		// as invoice ids.
		r.Get("/by-txn-hash/{hash}", h.ByTxnHash)
		r.Get("/by-vendor-email-hash/{hash}", h.ByVendorEmailHash)
		r.Get("/by-vendor-mobile-hash/{hash}", h.ByVendorMobileHash)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetInvoice)
			r.Delete("/", h.SoftDelete)
			r.Get("/history", h.GetHistory)
			r.Get("/tracking", h.GetTracking)

			r.Post("/ack", h.Acknowledge)
			r.Post("/finance", h.Finance)
			r.Post("/pay", h.Pay)
			r.Post("/reject", h.Reject)
			r.Post("/void", h.Void)
			r.Post("/confirm-payment", h.ConfirmPayment)
			r.Post("/tracking", h.UpdateTracking)
		})
	})

	return r
}
