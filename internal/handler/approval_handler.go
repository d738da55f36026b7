package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/repository"
	"github.com/eventpilot/be-approvals/internal/service"
	"github.com/eventpilot/be-approvals/internal/validation"
)

// SendApprovalRequest is the internal request to send a subject for approval.
type SendApprovalRequest struct {
	ContactID     string     `json:"contact_id" validate:"required"`
	CustomMessage *string    `json:"custom_message" validate:"omitempty,max=2000"`
	DueDate       *time.Time `json:"due_date"`
}

// SignaturePayload is the client-asserted signature of an approval.
type SignaturePayload struct {
	Name        string     `json:"name"`
	Image       string     `json:"image"`
	ClientTime  *time.Time `json:"client_time"`
	Geolocation *string    `json:"geolocation"`
}

// SubmitApprovalRequest is the public approve/reject submission.
type SubmitApprovalRequest struct {
	ApprovalHash    string            `json:"approval_hash" validate:"required"`
	Status          string            `json:"status" validate:"required,oneof=approved rejected"`
	ContactResponse *string           `json:"contact_response"`
	Signature       *SignaturePayload `json:"signature"`
}

// SubmitApprovalResponse confirms the recorded response.
type SubmitApprovalResponse struct {
	Status      string     `json:"status"`
	RespondedAt *time.Time `json:"responded_at"`
	PaymentURL  string     `json:"payment_url,omitempty"`
}

// AttachDisclosuresRequest selects catalog disclosures for a subject+contact.
type AttachDisclosuresRequest struct {
	ContactID     string   `json:"contact_id" validate:"required"`
	DisclosureIDs []string `json:"disclosure_ids"`
}

// SendEstimateApproval handles POST /api/v1/estimates/{id}/send-approval.
func (h *HTTPHandler) SendEstimateApproval(w http.ResponseWriter, r *http.Request) {
	h.sendApproval(w, r, repository.SubjectEstimate)
}

// SendInvoiceApproval handles POST /api/v1/invoices/{id}/send-approval.
func (h *HTTPHandler) SendInvoiceApproval(w http.ResponseWriter, r *http.Request) {
	h.sendApproval(w, r, repository.SubjectInvoice)
}

func (h *HTTPHandler) sendApproval(w http.ResponseWriter, r *http.Request, kind repository.SubjectKind) {
	var req SendApprovalRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	approval, err := h.approvals.SendForApproval(r.Context(), &service.SendForApprovalRequest{
		Kind:          kind,
		SubjectID:     chi.URLParam(r, "id"),
		ContactID:     req.ContactID,
		CustomMessage: req.CustomMessage,
		DueDate:       req.DueDate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, approval)
}

// GetEstimateApproval handles the public GET /approve/{hash} page.
func (h *HTTPHandler) GetEstimateApproval(w http.ResponseWriter, r *http.Request) {
	h.getApproval(w, r, repository.SubjectEstimate)
}

// GetInvoiceApproval handles the public GET /approve-invoice/{hash} page.
func (h *HTTPHandler) GetInvoiceApproval(w http.ResponseWriter, r *http.Request) {
	h.getApproval(w, r, repository.SubjectInvoice)
}

func (h *HTTPHandler) getApproval(w http.ResponseWriter, r *http.Request, kind repository.SubjectKind) {
	hash := chi.URLParam(r, "hash")
	view, err := h.approvals.GetByHash(r.Context(), hash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// A hash only resolves on the route matching its subject kind.
	if view.Request.SubjectKind != kind {
		h.writeError(w, r, apperrors.NotFound("approval request", hash))
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// GetApprovalByID handles the internal GET /api/v1/approvals/{id}.
func (h *HTTPHandler) GetApprovalByID(w http.ResponseWriter, r *http.Request) {
	view, err := h.approvals.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// SubmitApproval handles the public POST /approve and /approve-invoice.
func (h *HTTPHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	var req SubmitApprovalRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var sig *repository.Signature
	if req.Signature != nil {
		sig = &repository.Signature{
			Name:        req.Signature.Name,
			Image:       req.Signature.Image,
			ClientTime:  req.Signature.ClientTime,
			Geolocation: req.Signature.Geolocation,
		}
	}

	result, err := h.approvals.SubmitResponse(r.Context(), &service.SubmitResponseRequest{
		Hash:            req.ApprovalHash,
		Status:          req.Status,
		ContactResponse: req.ContactResponse,
		Signature:       sig,
		Client: service.ClientMeta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SubmitApprovalResponse{
		Status:      result.Request.Status,
		RespondedAt: result.Request.RespondedAt,
		PaymentURL:  result.PaymentURL,
	})
}

// AttachEstimateDisclosures handles POST /api/v1/estimates/{id}/disclosures.
func (h *HTTPHandler) AttachEstimateDisclosures(w http.ResponseWriter, r *http.Request) {
	h.attachDisclosures(w, r, repository.SubjectEstimate)
}

// AttachInvoiceDisclosures handles POST /api/v1/invoices/{id}/disclosures.
func (h *HTTPHandler) AttachInvoiceDisclosures(w http.ResponseWriter, r *http.Request) {
	h.attachDisclosures(w, r, repository.SubjectInvoice)
}

func (h *HTTPHandler) attachDisclosures(w http.ResponseWriter, r *http.Request, kind repository.SubjectKind) {
	var req AttachDisclosuresRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	snapshots, err := h.disclosures.AttachSelected(r.Context(), kind, chi.URLParam(r, "id"), req.ContactID, req.DisclosureIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"disclosures": snapshots})
}

// GetEstimateActivity handles GET /api/v1/estimates/{id}/activity.
func (h *HTTPHandler) GetEstimateActivity(w http.ResponseWriter, r *http.Request) {
	h.getActivity(w, r, repository.SubjectEstimate)
}

// GetInvoiceActivity handles GET /api/v1/invoices/{id}/activity.
func (h *HTTPHandler) GetInvoiceActivity(w http.ResponseWriter, r *http.Request) {
	h.getActivity(w, r, repository.SubjectInvoice)
}

func (h *HTTPHandler) getActivity(w http.ResponseWriter, r *http.Request, kind repository.SubjectKind) {
	entries, err := h.approvals.ActivityTrail(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// ApproveDisclosure handles the public POST /disclosures/{id}/approve.
func (h *HTTPHandler) ApproveDisclosure(w http.ResponseWriter, r *http.Request) {
	snap, err := h.disclosures.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}
