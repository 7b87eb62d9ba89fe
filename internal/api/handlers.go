/**
 * @description
 * This file contains the HTTP handlers for the batchpay service's public API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ToyinB/batchpay/internal/app"
	"github.com/ToyinB/batchpay/internal/domain"
	"github.com/ToyinB/batchpay/internal/store"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

// batchExecutionResponse is returned after a batch has been committed.
type batchExecutionResponse struct {
	TransferID  uint64 `json:"transfer_id"`
	Status      string `json:"status"`
	LegCount    int    `json:"leg_count"`
	GrossAmount int64  `json:"gross_amount"`
	FeeAmount   int64  `json:"fee_amount"`
}

// ExecuteBatchHandler handles batch transfer submissions.
func (h *Handlers) ExecuteBatchHandler(w http.ResponseWriter, r *http.Request) {
	initiator, ok := GetCallerAccount(r.Context())
	if !ok {
		http.Error(w, "Could not get caller account from context", http.StatusInternalServerError)
		return
	}

	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=execute_batch outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Best-effort memo bound at the edge; the core transfer path records the
	// memo as submitted.
	if req.Memo != nil && len(*req.Memo) > app.MaxMemoLength {
		h.writeError(w, http.StatusBadRequest, app.ErrInvalidMemoLength.Error())
		return
	}
	for i, amount := range req.Amounts {
		if amount < 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("amount at leg %d must be non-negative", i))
			return
		}
	}

	log.Printf("level=info component=api endpoint=execute_batch outcome=received initiator=%s legs=%d nonce=%d", initiator, len(req.Recipients), req.Nonce)

	record, err := h.service.ExecuteBatch(r.Context(), initiator, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=execute_batch outcome=failed initiator=%s err=%v", initiator, err)
		switch {
		case errors.Is(err, app.ErrTransfersPaused):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, app.ErrMalformedBatch),
			errors.Is(err, app.ErrBatchTooLarge),
			errors.Is(err, app.ErrInvalidAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, app.ErrDuplicateTransaction):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, app.ErrRateLimitExceeded),
			errors.Is(err, app.ErrSubmissionThrottled):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, app.ErrRecipientRestricted):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, app.ErrInsufficientBalance):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, app.ErrTransferExecutionFailed):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, batchExecutionResponse{
		TransferID:  record.ID,
		Status:      record.Status,
		LegCount:    len(req.Recipients),
		GrossAmount: record.TotalAmount,
		FeeAmount:   record.TotalFee,
	})
}

// GetTransferRecordHandler returns the immutable record for a transfer id.
func (h *Handlers) GetTransferRecordHandler(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transfer id")
		return
	}

	record, err := h.service.GetTransferRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTransferRecordNotFound) {
			h.writeError(w, http.StatusNotFound, "Transfer record not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_transfer_record transfer_id=%d err=%v", id, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// StatusHandler reports the operational flag and lifetime transfer count.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=status err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// RestrictedHandler reports whether an account is on the restricted list.
func (h *Handlers) RestrictedHandler(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(chi.URLParam(r, "account"))
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	restricted, err := h.service.IsRestricted(r.Context(), account)
	if err != nil {
		log.Printf("level=error component=api endpoint=restricted account=%s err=%v", account, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"account":    account,
		"restricted": restricted,
	})
}

// VelocityHandler returns an account's current window counters.
func (h *Handlers) VelocityHandler(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(chi.URLParam(r, "account"))
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	record, err := h.service.GetVelocityRecord(r.Context(), account)
	if err != nil {
		if errors.Is(err, store.ErrVelocityRecordNotFound) {
			h.writeError(w, http.StatusNotFound, "No velocity record for account")
			return
		}
		log.Printf("level=error component=api endpoint=velocity account=%s err=%v", account, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode json response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
