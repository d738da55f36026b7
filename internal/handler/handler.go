// Package handler exposes the HTTP surface: an unauthenticated public API
// keyed by bearer hashes (approval links, payment links) and an internal API
// for back-office operations.
package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/config"
	"github.com/eventpilot/be-approvals/internal/middleware"
	"github.com/eventpilot/be-approvals/internal/service"
)

// HTTPHandler routes requests to the services.
type HTTPHandler struct {
	approvals   *service.ApprovalService
	disclosures *service.DisclosureService
	payments    *service.PaymentService
	cfg         *config.Config
	log         zerolog.Logger
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(
	approvals *service.ApprovalService,
	disclosures *service.DisclosureService,
	payments *service.PaymentService,
	cfg *config.Config,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		approvals:   approvals,
		disclosures: disclosures,
		payments:    payments,
		cfg:         cfg,
		log:         log,
	}
}

// Routes mounts all application routes. The public group is rate limited per
// client IP because its hashes are bearer credentials.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.cfg.Server.PublicRateLimit > 0 {
			r.Use(httprate.LimitByIP(h.cfg.Server.PublicRateLimit, h.cfg.Server.PublicRateWindow))
		}

		r.Get("/approve/{hash}", h.GetEstimateApproval)
		r.Get("/approve-invoice/{hash}", h.GetInvoiceApproval)
		r.Post("/approve", h.SubmitApproval)
		r.Post("/approve-invoice", h.SubmitApproval)
		r.Post("/disclosures/{id}/approve", h.ApproveDisclosure)

		r.Get("/invoice-payment/{hash}", h.GetPayment)
		r.Post("/invoice-payment/create-payment-intent", h.CreatePaymentIntent)
		r.Post("/invoice-payment/process-payment", h.ProcessPayment)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/estimates/{id}/send-approval", h.SendEstimateApproval)
		r.Post("/invoices/{id}/send-approval", h.SendInvoiceApproval)
		r.Post("/estimates/{id}/disclosures", h.AttachEstimateDisclosures)
		r.Post("/invoices/{id}/disclosures", h.AttachInvoiceDisclosures)
		r.Get("/approvals/{id}", h.GetApprovalByID)
		r.Get("/estimates/{id}/activity", h.GetEstimateActivity)
		r.Get("/invoices/{id}/activity", h.GetInvoiceActivity)
	})

	return r
}

// errorBody is the machine-readable error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP. Upstream errors are logged
// with context and reduced to a generic message so internal detail never
// leaks to the public hashed-link surface.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	var body errorBody
	body.Error.Code = string(apperrors.CodeOf(err))
	body.Error.Message = apperrors.MessageOf(err)
	h.writeJSON(w, status, body)
}

func (h *HTTPHandler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.New(apperrors.CodeValidation, "invalid request body")
	}
	return nil
}

// clientIP extracts the remote host, used for signature non-repudiation
// metadata only.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
