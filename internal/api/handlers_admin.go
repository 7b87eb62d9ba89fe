/**
 * @description
 * This file contains the HTTP handlers for the administrative endpoints. The
 * handlers only parse requests and translate service errors; the fixed-admin
 * identity check itself belongs to the service layer so it also protects any
 * future non-HTTP entry points.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ToyinB/batchpay/internal/app"
	"github.com/ToyinB/batchpay/pkg/assetclient"
)

type setOperationalRequest struct {
	Operational bool `json:"operational"`
}

type setFeeRateRequest struct {
	BasisPoints int64 `json:"basis_points"`
}

type setTreasuryRequest struct {
	Account string `json:"account"`
}

type emergencyWithdrawRequest struct {
	Amount int64 `json:"amount"`
}

type recoverForeignAssetRequest struct {
	AssetBaseURL string `json:"asset_base_url"`
	AssetAPIKey  string `json:"asset_api_key"`
	Amount       int64  `json:"amount"`
}

func (h *Handlers) adminCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := GetCallerAccount(r.Context())
	if !ok {
		http.Error(w, "Could not get caller account from context", http.StatusInternalServerError)
		return "", false
	}
	return caller, true
}

// writeAdminError maps administrative service errors to HTTP statuses.
func (h *Handlers) writeAdminError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "Caller is not the administrative account")
	case errors.Is(err, app.ErrInvalidFeeRate),
		errors.Is(err, app.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInsufficientBalance):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrRecoveryFailed),
		errors.Is(err, app.ErrTransferExecutionFailed):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// SetOperationalHandler pauses or resumes batch execution.
func (h *Handlers) SetOperationalHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	var req setOperationalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.SetOperational(r.Context(), caller, req.Operational); err != nil {
		h.writeAdminError(w, "set_operational", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"operational": req.Operational})
}

// SetFeeRateHandler assigns the fee rate in basis points.
func (h *Handlers) SetFeeRateHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	var req setFeeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.SetFeeRate(r.Context(), caller, req.BasisPoints); err != nil {
		h.writeAdminError(w, "set_fee_rate", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"basis_points": req.BasisPoints})
}

// SetTreasuryHandler assigns the fee destination account.
func (h *Handlers) SetTreasuryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	var req setTreasuryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Account) == "" {
		h.writeError(w, http.StatusBadRequest, "Treasury account is required")
		return
	}

	if err := h.service.SetTreasury(r.Context(), caller, req.Account); err != nil {
		h.writeAdminError(w, "set_treasury", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"treasury_account": req.Account})
}

// RestrictHandler adds an account to the restricted list.
func (h *Handlers) RestrictHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	account := strings.TrimSpace(chi.URLParam(r, "account"))
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	if err := h.service.Restrict(r.Context(), caller, account); err != nil {
		h.writeAdminError(w, "restrict", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"account": account, "restricted": true})
}

// UnrestrictHandler removes an account from the restricted list.
func (h *Handlers) UnrestrictHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	account := strings.TrimSpace(chi.URLParam(r, "account"))
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	if err := h.service.Unrestrict(r.Context(), caller, account); err != nil {
		h.writeAdminError(w, "unrestrict", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"account": account, "restricted": false})
}

// GrantPrivilegeHandler exempts an account from velocity limits.
func (h *Handlers) GrantPrivilegeHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	account := strings.TrimSpace(chi.URLParam(r, "account"))
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "Account is required")
		return
	}

	if err := h.service.GrantUnlimitedPrivilege(r.Context(), caller, account); err != nil {
		h.writeAdminError(w, "grant_privilege", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"account": account, "unlimited": true})
}

// EmergencyWithdrawHandler moves custodial funds to the admin account.
func (h *Handlers) EmergencyWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	var req emergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.service.EmergencyWithdraw(r.Context(), caller, req.Amount); err != nil {
		h.writeAdminError(w, "emergency_withdraw", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"amount": req.Amount})
}

// RecoverForeignAssetHandler recovers assets through an externally supplied
// transfer capability, addressed by the request's asset endpoint.
func (h *Handlers) RecoverForeignAssetHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.adminCaller(w, r)
	if !ok {
		return
	}

	var req recoverForeignAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AssetBaseURL) == "" {
		h.writeError(w, http.StatusBadRequest, "Asset base URL is required")
		return
	}

	asset := assetclient.NewClient(req.AssetBaseURL, req.AssetAPIKey)
	if err := h.service.RecoverForeignAsset(r.Context(), caller, asset, req.Amount); err != nil {
		h.writeAdminError(w, "recover_foreign_asset", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"amount": req.Amount})
}
