package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/config"
	"github.com/eventpilot/be-approvals/internal/metrics"
	"github.com/eventpilot/be-approvals/internal/repository"
)

// ApprovalService orchestrates the approval request lifecycle: creation,
// disclosure gating, the terminal transition, and the post-commit side
// effects. The transition itself is the unit of atomicity; every side effect
// is best-effort and never rolls it back.
type ApprovalService struct {
	approvals   ApprovalStore
	disclosures DisclosureStore
	subjects    SubjectStore
	activity    ActivityStore
	payments    *PaymentService
	notifier    Notifier
	cfg         *config.Config
	log         zerolog.Logger
	now         func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	approvals ApprovalStore,
	disclosures DisclosureStore,
	subjects SubjectStore,
	activity ActivityStore,
	payments *PaymentService,
	notifier Notifier,
	cfg *config.Config,
	log zerolog.Logger,
) *ApprovalService {
	return &ApprovalService{
		approvals:   approvals,
		disclosures: disclosures,
		subjects:    subjects,
		activity:    activity,
		payments:    payments,
		notifier:    notifier,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// SendForApprovalRequest creates one approval request for a subject+contact.
type SendForApprovalRequest struct {
	Kind          repository.SubjectKind
	SubjectID     string
	ContactID     string
	CustomMessage *string
	DueDate       *time.Time
}

// ClientMeta carries server-observed facts about the responding client,
// recorded alongside the signature.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SubmitResponseRequest is the customer's approve/reject submission.
type SubmitResponseRequest struct {
	Hash            string
	Status          string
	ContactResponse *string
	Signature       *repository.Signature
	Client          ClientMeta
}

// SubmitResult is the outcome of a submission. PaymentURL is set only when an
// invoice approval produced a payment link.
type SubmitResult struct {
	Request    *repository.ApprovalRequest `json:"request"`
	PaymentURL string                      `json:"payment_url,omitempty"`
}

// ApprovalView is the subject graph the public approval page renders.
type ApprovalView struct {
	Request      *repository.ApprovalRequest      `json:"request"`
	Estimate     *repository.Estimate             `json:"estimate,omitempty"`
	Invoice      *repository.Invoice              `json:"invoice,omitempty"`
	Contact      *repository.Contact              `json:"contact"`
	Organization *repository.Organization         `json:"organization,omitempty"`
	Disclosures  []*repository.DisclosureSnapshot `json:"disclosures"`
}

// SendForApproval creates an approval request with a fresh unguessable hash.
// Delivery of the link is owned by the notifications service; the only side
// effect here beyond persistence is a best-effort notification event carrying
// the public link.
func (s *ApprovalService) SendForApproval(ctx context.Context, req *SendForApprovalRequest) (*repository.ApprovalRequest, error) {
	if req.Kind != repository.SubjectEstimate && req.Kind != repository.SubjectInvoice {
		return nil, apperrors.InvalidInput("subject_kind", "must be estimate or invoice")
	}
	if req.SubjectID == "" {
		return nil, apperrors.InvalidInput("subject_id", "required")
	}
	if req.ContactID == "" {
		return nil, apperrors.InvalidInput("contact_id", "required")
	}

	// Both subject and contact must exist and be non-deleted.
	if _, err := s.loadSubjectTotals(ctx, req.Kind, req.SubjectID); err != nil {
		return nil, err
	}
	contact, err := s.subjects.GetContact(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}

	approval := &repository.ApprovalRequest{
		// UUIDv4 gives 122 bits of entropy; the hash is the bearer
		// credential for the public link.
		ApprovalHash:  uuid.NewString(),
		SubjectKind:   req.Kind,
		ContactID:     req.ContactID,
		CustomMessage: req.CustomMessage,
		DueDate:       req.DueDate,
	}
	switch req.Kind {
	case repository.SubjectEstimate:
		approval.EstimateID = &req.SubjectID
	case repository.SubjectInvoice:
		approval.InvoiceID = &req.SubjectID
	}

	if err := s.approvals.Create(ctx, approval); err != nil {
		return nil, err
	}

	metrics.ApprovalsSent.WithLabelValues(string(req.Kind)).Inc()
	s.log.Info().
		Str("approval_id", approval.ID).
		Str("subject_kind", string(req.Kind)).
		Str("subject_id", req.SubjectID).
		Str("contact_id", req.ContactID).
		Msg("Approval request sent")

	if s.notifier != nil {
		s.notifier.PublishApprovalEvent(ctx, "approval_requested", approval, contact, map[string]any{
			"approval_url": s.approvalURL(approval),
		})
	}

	return approval, nil
}

// GetByHash resolves the public link to the full subject graph. Unknown
// hashes are NotFound; under the reject_expired policy, overdue unanswered
// requests resolve the same way.
func (s *ApprovalService) GetByHash(ctx context.Context, hash string) (*ApprovalView, error) {
	approval, err := s.approvals.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if s.expired(approval) {
		return nil, apperrors.NotFound("approval request", hash)
	}
	return s.buildView(ctx, approval)
}

// GetByID returns the same graph keyed by record id, for back-office use.
func (s *ApprovalService) GetByID(ctx context.Context, id string) (*ApprovalView, error) {
	approval, err := s.approvals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, approval)
}

// SubmitResponse validates and records the customer's terminal response,
// then runs the post-commit side effects.
func (s *ApprovalService) SubmitResponse(ctx context.Context, req *SubmitResponseRequest) (*SubmitResult, error) {
	switch req.Status {
	case repository.ApprovalStatusApproved, repository.ApprovalStatusRejected:
	default:
		return nil, apperrors.InvalidInput("status", "must be approved or rejected")
	}

	if req.Status == repository.ApprovalStatusRejected {
		if req.ContactResponse == nil || strings.TrimSpace(*req.ContactResponse) == "" {
			return nil, apperrors.InvalidInput("contact_response", "required when rejecting")
		}
	}

	var sig *repository.Signature
	if req.Status == repository.ApprovalStatusApproved {
		if req.Signature == nil || strings.TrimSpace(req.Signature.Name) == "" || req.Signature.Image == "" {
			return nil, apperrors.InvalidInput("signature", "typed name and signature image are required when approving")
		}
		sig = req.Signature
		// Stamp what the server observed; the rest of the signature is
		// client-asserted and stored as-is.
		if req.Client.IP != "" {
			ip := req.Client.IP
			sig.IP = &ip
		}
		if req.Client.UserAgent != "" {
			ua := req.Client.UserAgent
			sig.UserAgent = &ua
		}
	}

	approval, err := s.approvals.GetByHash(ctx, req.Hash)
	if err != nil {
		return nil, err
	}
	if s.expired(approval) {
		return nil, apperrors.NotFound("approval request", req.Hash)
	}

	// Disclosure gate: every snapshot for this subject+contact must be
	// individually approved before the subject itself can be.
	if req.Status == repository.ApprovalStatusApproved {
		unapproved, err := s.disclosures.CountUnapproved(ctx, approval.SubjectKind, approval.SubjectID(), approval.ContactID)
		if err != nil {
			return nil, err
		}
		if unapproved > 0 {
			return nil, apperrors.PreconditionFailed("disclosures not all approved")
		}
	}

	updated, err := s.approvals.Transition(ctx, req.Hash, req.Status, req.ContactResponse, sig)
	if err != nil {
		return nil, err
	}

	metrics.ApprovalResponses.WithLabelValues(string(updated.SubjectKind), updated.Status).Inc()
	s.log.Info().
		Str("approval_id", updated.ID).
		Str("subject_kind", string(updated.SubjectKind)).
		Str("status", updated.Status).
		Msg("Approval response recorded")

	result := &SubmitResult{Request: updated}
	s.runPostCommitEffects(ctx, updated, result)
	return result, nil
}

// runPostCommitEffects executes the best-effort side effects of a recorded
// response. Each effect fails independently: a failure is logged and the next
// effect still runs, because the state transition has already committed.
func (s *ApprovalService) runPostCommitEffects(ctx context.Context, approval *repository.ApprovalRequest, result *SubmitResult) {
	contact, err := s.subjects.GetContact(ctx, approval.ContactID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("approval_id", approval.ID).
			Msg("post-commit: failed to load contact; effects degraded")
		contact = &repository.Contact{ID: approval.ContactID}
	}

	s.appendActivity(ctx, approval, contact)

	if approval.Status == repository.ApprovalStatusApproved &&
		approval.SubjectKind == repository.SubjectInvoice &&
		approval.InvoiceID != nil {
		url, _, err := s.payments.EnsurePaymentLink(ctx, *approval.InvoiceID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("approval_id", approval.ID).
				Str("invoice_id", *approval.InvoiceID).
				Msg("post-commit: failed to issue payment link; approval stands")
		} else {
			result.PaymentURL = url
		}
	}

	if s.notifier != nil {
		eventType := "approval_rejected"
		payload := map[string]any{}
		if approval.Status == repository.ApprovalStatusApproved {
			eventType = "approval_approved"
			if result.PaymentURL != "" {
				payload["payment_url"] = result.PaymentURL
			}
		} else if approval.ContactResponse != nil {
			payload["contact_response"] = *approval.ContactResponse
		}
		s.notifier.PublishApprovalEvent(ctx, eventType, approval, contact, payload)
	}
}

func (s *ApprovalService) appendActivity(ctx context.Context, approval *repository.ApprovalRequest, contact *repository.Contact) {
	kind := approval.SubjectKind
	subjectID := approval.SubjectID()
	entry := &repository.ActivityEntry{
		ActorType:   "customer",
		ActorName:   contact.FullName(),
		Action:      "approval_" + approval.Status,
		SubjectKind: &kind,
		SubjectID:   &subjectID,
		ContactID:   &approval.ContactID,
		Metadata: map[string]any{
			"has_signature": approval.Signature != nil,
		},
	}
	if approval.ContactResponse != nil {
		entry.Metadata["contact_response"] = *approval.ContactResponse
	}

	if err := s.activity.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("approval_id", approval.ID).
			Msg("post-commit: failed to append activity entry")
	}
}

func (s *ApprovalService) buildView(ctx context.Context, approval *repository.ApprovalRequest) (*ApprovalView, error) {
	view := &ApprovalView{Request: approval}

	switch approval.SubjectKind {
	case repository.SubjectEstimate:
		est, err := s.subjects.GetEstimate(ctx, approval.SubjectID())
		if err != nil {
			return nil, err
		}
		view.Estimate = est
	case repository.SubjectInvoice:
		inv, err := s.subjects.GetInvoice(ctx, approval.SubjectID())
		if err != nil {
			return nil, err
		}
		view.Invoice = inv
	}

	contact, err := s.subjects.GetContact(ctx, approval.ContactID)
	if err != nil {
		return nil, err
	}
	view.Contact = contact

	if contact.OrganizationID != nil {
		org, err := s.subjects.GetOrganization(ctx, *contact.OrganizationID)
		if err == nil {
			view.Organization = org
		}
	}

	view.Disclosures, err = s.disclosures.ListForSubject(ctx, approval.SubjectKind, approval.SubjectID(), approval.ContactID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ActivityTrail returns the audit trail for a subject, oldest first.
func (s *ApprovalService) ActivityTrail(ctx context.Context, kind repository.SubjectKind, subjectID string) ([]*repository.ActivityEntry, error) {
	return s.activity.ListForSubject(ctx, kind, subjectID)
}

// loadSubjectTotals verifies a subject exists, returning its total for
// callers that need it.
func (s *ApprovalService) loadSubjectTotals(ctx context.Context, kind repository.SubjectKind, subjectID string) (int64, error) {
	switch kind {
	case repository.SubjectEstimate:
		est, err := s.subjects.GetEstimate(ctx, subjectID)
		if err != nil {
			return 0, err
		}
		return est.TotalCents, nil
	default:
		inv, err := s.subjects.GetInvoice(ctx, subjectID)
		if err != nil {
			return 0, err
		}
		return inv.TotalCents, nil
	}
}

// expired reports whether the request should be treated as gone under the
// configured due-date policy. Responded requests never expire: the audit
// trail stays reachable to back-office callers.
func (s *ApprovalService) expired(approval *repository.ApprovalRequest) bool {
	if s.cfg.Approvals.ExpiryPolicy != config.ExpiryRejectExpired {
		return false
	}
	if approval.Status != repository.ApprovalStatusSent || approval.DueDate == nil {
		return false
	}
	return s.now().After(*approval.DueDate)
}

func (s *ApprovalService) approvalURL(approval *repository.ApprovalRequest) string {
	if approval.SubjectKind == repository.SubjectInvoice {
		return s.cfg.PublicURL("/approve-invoice/" + approval.ApprovalHash)
	}
	return s.cfg.PublicURL("/approve/" + approval.ApprovalHash)
}
