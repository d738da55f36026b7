package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventpilot/be-approvals/internal/validation"
)

// CreateIntentRequest asks the gateway for a payment intent.
type CreateIntentRequest struct {
	PaymentHash string `json:"payment_hash" validate:"required"`
}

// ProcessPaymentRequest confirms a completed card payment.
type ProcessPaymentRequest struct {
	PaymentHash     string `json:"payment_hash" validate:"required"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// GetPayment handles the public GET /invoice-payment/{hash}. Only pending
// payments resolve; paid and failed hashes are 404 by design.
func (h *HTTPHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	view, err := h.payments.GetByHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// CreatePaymentIntent handles POST /invoice-payment/create-payment-intent.
func (h *HTTPHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	clientSecret, err := h.payments.CreateIntent(r.Context(), req.PaymentHash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"client_secret": clientSecret})
}

// ProcessPayment handles POST /invoice-payment/process-payment.
func (h *HTTPHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.payments.ConfirmPayment(r.Context(), req.PaymentHash, req.PaymentIntentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}
