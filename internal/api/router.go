/**
 * @description
 * This file sets up the HTTP router for the batchpay service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the batch transfer service.
func Routes(h *Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Read-only endpoints; no caller identity required.
	r.Get("/status", h.StatusHandler)
	r.Get("/batches/{id}", h.GetTransferRecordHandler)
	r.Get("/accounts/{account}/restricted", h.RestrictedHandler)
	r.Get("/accounts/{account}/velocity", h.VelocityHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/batches", h.ExecuteBatchHandler)

		// Administrative endpoints. The admin identity check lives in the
		// service layer; these routes only establish who is calling.
		r.Put("/admin/operational", h.SetOperationalHandler)
		r.Put("/admin/fee-rate", h.SetFeeRateHandler)
		r.Put("/admin/treasury", h.SetTreasuryHandler)
		r.Post("/admin/restrictions/{account}", h.RestrictHandler)
		r.Delete("/admin/restrictions/{account}", h.UnrestrictHandler)
		r.Post("/admin/privileges/{account}", h.GrantPrivilegeHandler)
		r.Post("/admin/withdrawals", h.EmergencyWithdrawHandler)
		r.Post("/admin/recoveries", h.RecoverForeignAssetHandler)
	})

	return r
}
