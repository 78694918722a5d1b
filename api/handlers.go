/*
handlers.go - HTTP API handlers for the invoice ledger

PURPOSE:
  Exposes the invoice ledger via REST API. Handles HTTP request and
  response, JSON serialization, and delegates every decision to the
  domain logic.

ENDPOINTS:
  Mutations:
    POST   /api/invoices                       Create invoice
    POST   /api/invoices/{id}/ack              Acknowledge
    POST   /api/invoices/{id}/finance          Record financing amendment
    POST   /api/invoices/{id}/pay              Mark paid
    POST   /api/invoices/{id}/reject           Reject
    POST   /api/invoices/{id}/void             Void
    POST   /api/invoices/{id}/confirm-payment  Confirm settlement
    POST   /api/invoices/{id}/tracking         Record delivery event
    DELETE /api/invoices/{id}?side=sent        Soft-delete one side

  Queries:
    GET    /api/invoices                       List live set
    GET    /api/invoices/count                 Live-set size
    GET    /api/invoices/{id}                  Single invoice
    GET    /api/invoices/{id}/history          Version chain
    GET    /api/invoices/{id}/tracking         Delivery log
    GET    /api/invoices/by-txn-hash/{hash}
    GET    /api/invoices/by-vendor-email-hash/{hash}
    GET    /api/invoices/by-vendor-mobile-hash/{hash}

ERROR HANDLING:
  Domain errors carry a numeric code; the handler maps the code family
  onto HTTP status and echoes the code in the JSON body:
  - 400: 3xxx validation failures
  - 404: 1001 unknown invoice
  - 409: 1002/1003 preconditions and every 2xxx already-in-state signal
  - 410: 1004 fully deleted invoice
  - 500: storage/internal errors (no domain code)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - invoice/ledger.go: The state machine behind every mutation
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *invoice.Ledger
	log    zerolog.Logger
}

// NewHandler creates a new handler around the given ledger.
func NewHandler(ledger *invoice.Ledger) *Handler {
	return &Handler{
		Ledger: ledger,
		log:    logger.WithComponent("api"),
	}
}

// =============================================================================
// MUTATION HANDLERS
// =============================================================================

// CreateInvoice registers a new invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	id, err := h.Ledger.Create(r.Context(), req.Invoice())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MutationResponse{MongoID: id, Status: "created"})
}

// Acknowledge moves a created invoice to acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Ledger.Acknowledge, "acknowledged")
}

// Finance records a financing amendment.
func (h *Handler) Finance(w http.ResponseWriter, r *http.Request) {
	var req FinanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	id, err := h.Ledger.Finance(r.Context(), invoice.FinanceRequest{
		ActionRequest: invoice.ActionRequest{
			MongoID: chi.URLParam(r, "id"),
			Action:  invoice.Action(req.Action),
			TxnHash: req.TxnHash,
		},
		FinanceID: req.FinanceID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{MongoID: id, Status: "financed"})
}

// Pay marks an acknowledged invoice as paid.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Ledger.Pay, "paid")
}

// Reject rejects an acknowledged invoice.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Ledger.Reject, "rejected")
}

// Void voids an acknowledged invoice.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Ledger.Void, "voided")
}

// ConfirmPayment records settlement confirmation on a paid invoice.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Ledger.ConfirmPayment, "payment_confirmed")
}

// action is the shared shape of the single-flag lifecycle mutations:
// decode the common body, take the id from the URL, run the operation.
func (h *Handler) action(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, req invoice.ActionRequest) (string, error), status string) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	id, err := op(r.Context(), invoice.ActionRequest{
		MongoID: chi.URLParam(r, "id"),
		Action:  invoice.Action(req.Action),
		TxnHash: req.TxnHash,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{MongoID: id, Status: status})
}

// UpdateTracking records a delivery event.
func (h *Handler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	var req TrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	id, err := h.Ledger.UpdateTracking(r.Context(), chi.URLParam(r, "id"), req.Track())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{MongoID: id, Status: "tracking_recorded"})
}

// SoftDelete marks one party's view as deleted. The side comes from the
// query string; an optional comment is kept on the record.
func (h *Handler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	side := invoice.DeleteSide(r.URL.Query().Get("side"))
	comment := r.URL.Query().Get("comment")

	id, err := h.Ledger.SoftDelete(r.Context(), chi.URLParam(r, "id"), side, comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{MongoID: id, Status: "deleted"})
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// ListInvoices returns the live set in insertion order.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Ledger.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// CountInvoices returns the live-set size.
func (h *Handler) CountInvoices(w http.ResponseWriter, r *http.Request) {
	count, err := h.Ledger.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// GetInvoice returns a single live invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "invoice not found",
			Code:  int(invoice.CodeNotFound),
		})
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// GetHistory returns the full version chain, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Ledger.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetTracking returns the delivery log, oldest first.
func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	events, err := h.Ledger.TrackingHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ByTxnHash returns live invoices referencing the settlement hash.
func (h *Handler) ByTxnHash(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, h.Ledger.ByTxnHash)
}

// ByVendorEmailHash returns live invoices under the vendor email hash.
func (h *Handler) ByVendorEmailHash(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, h.Ledger.ByVendorEmailHash)
}

// ByVendorMobileHash returns live invoices under the vendor mobile hash.
func (h *Handler) ByVendorMobileHash(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, h.Ledger.ByVendorMobileHash)
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// writeDomainError maps a domain error onto HTTP status plus the uniform
// error body. Errors without a domain code are internal.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *invoice.Error
	if !errors.As(err, &domainErr) {
		h.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
		return
	}

	status := http.StatusConflict
	switch {
	case invoice.IsValidation(err):
		status = http.StatusBadRequest
	case invoice.CodeOf(err) == invoice.CodeNotFound:
		status = http.StatusNotFound
	case invoice.CodeOf(err) == invoice.CodeAlreadyDeleted:
		status = http.StatusGone
	}

	writeJSON(w, status, ErrorResponse{
		Error:  domainErr.Code.String(),
		Code:   int(domainErr.Code),
		Detail: domainErr.Detail,
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a transport-level error response.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// index is the shared shape of the hash-lookup queries. An empty result
// is a 200 with an empty array, not an error.
func (h *Handler) index(w http.ResponseWriter, r *http.Request,
	query func(ctx context.Context, hash string) ([]invoice.Invoice, error)) {
	invoices, err := query(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query index", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}
