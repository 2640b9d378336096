/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/customers/*        Customer catalog
  /api/warehouses/*       Warehouse catalog
  /api/materials/*        Materials, ledger history, audit
  /api/receipts/*         Receipts and confirmation
  /api/issues/*           Issues
  /api/adjustments/*      Adjustments
  /api/stock-in/*         Batch receipts (JSON or xlsx)
  /api/purchase-orders/*  PO versions and their operations
  /api/operations/*       Operation update/delete
  /metrics                Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. X-User is trusted as given.

SEE ALSO:
  - handlers.go, purchasing_handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/mfg-ledger/metrics"
)

// RouterOptions carries the cross-cutting pieces the router needs.
type RouterOptions struct {
	Metrics     *metrics.Metrics // nil disables /metrics and request metrics
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.log, NoColor: true}))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User"},
		AllowCredentials: true,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", h.ListWarehouses)
			r.Post("/", h.CreateWarehouse)
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", h.ListMaterials)
			r.Post("/", h.CreateMaterial)
			r.Get("/{id}", h.GetMaterial)
			r.Get("/{id}/history", h.GetMaterialHistory)
			r.Get("/{id}/audit", h.AuditMaterial)
		})

		// Movement routes
		r.Route("/receipts", func(r chi.Router) {
			r.Post("/", h.CreateReceipt)
			r.Get("/{id}", h.GetReceipt)
			r.Post("/{id}/confirm", h.ConfirmReceipt)
		})

		r.Route("/issues", func(r chi.Router) {
			r.Post("/", h.CreateIssue)
			r.Get("/{id}", h.GetIssue)
		})

		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", h.CreateAdjustment)
			r.Get("/{id}", h.GetAdjustment)
		})

		r.Route("/stock-in", func(r chi.Router) {
			r.Post("/", h.StockIn)
			r.Get("/template", h.StockInTemplate)
		})

		// Purchase order routes
		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", h.ListPOs)
			r.Post("/", h.CreatePO)
			r.Get("/{id}", h.GetPO)
			r.Delete("/{id}", h.DeletePO)
			r.Get("/{id}/versions", h.ListVersions)
			r.Post("/{id}/clone", h.CloneVersion)
			r.Post("/{id}/approve", h.ApproveVersion)
			r.Post("/{id}/lock", h.LockVersion)
			r.Post("/{id}/operations", h.CreateOperation)
			r.Get("/{id}/receipt-history", h.GetReceiptHistory)
		})

		r.Route("/operations", func(r chi.Router) {
			r.Put("/{id}", h.UpdateOperation)
			r.Delete("/{id}", h.DeleteOperation)
		})
	})

	return r
}
