package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/database"
)

// ApprovalRepository persists approval requests. The terminal transition is a
// conditional update on status = 'sent' so concurrent submissions for the
// same hash serialize in the database; the loser sees Conflict.
type ApprovalRepository struct {
	db *database.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *database.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const approvalColumns = `
	id, approval_hash, subject_kind, estimate_id, invoice_id, contact_id,
	status, custom_message, due_date, contact_response,
	signature_name, signature_image, signature_client_time,
	signature_ip, signature_user_agent, signature_geo,
	sent_at, responded_at`

// Create inserts a new request with status 'sent'.
func (r *ApprovalRepository) Create(ctx context.Context, req *ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests
		    (approval_hash, subject_kind, estimate_id, invoice_id, contact_id,
		     status, custom_message, due_date)
		VALUES ($1, $2::subject_kind, $3, $4, $5, 'sent'::approval_status, $6, $7)
		RETURNING id, sent_at
	`

	err := r.db.QueryRow(ctx, query,
		req.ApprovalHash,
		req.SubjectKind,
		req.EstimateID,
		req.InvoiceID,
		req.ContactID,
		req.CustomMessage,
		req.DueDate,
	).Scan(&req.ID, &req.SentAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to create approval request")
	}

	req.Status = ApprovalStatusSent
	return nil
}

// GetByHash looks a request up by its public bearer hash.
func (r *ApprovalRepository) GetByHash(ctx context.Context, hash string) (*ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE approval_hash = $1`

	req, err := scanApproval(r.db.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval request", hash)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get approval request")
	}
	return req, nil
}

// GetByID looks a request up by primary key (back-office use).
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`

	req, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval request", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get approval request")
	}
	return req, nil
}

// Transition records the customer's response. The WHERE status = 'sent'
// predicate is the single point of serialization: exactly one caller wins,
// every later caller gets Conflict.
func (r *ApprovalRepository) Transition(ctx context.Context, hash, status string, contactResponse *string, sig *Signature) (*ApprovalRequest, error) {
	query := `
		UPDATE approval_requests
		SET status                = $2::approval_status,
		    contact_response      = $3,
		    signature_name        = $4,
		    signature_image       = $5,
		    signature_client_time = $6,
		    signature_ip          = $7,
		    signature_user_agent  = $8,
		    signature_geo         = $9,
		    responded_at          = NOW()
		WHERE approval_hash = $1 AND status = 'sent'
		RETURNING ` + approvalColumns

	var sigName, sigImage, sigIP, sigUA, sigGeo *string
	var sigTime any
	if sig != nil {
		sigName = &sig.Name
		sigImage = &sig.Image
		sigTime = sig.ClientTime
		sigIP = sig.IP
		sigUA = sig.UserAgent
		sigGeo = sig.Geolocation
	}

	req, err := scanApproval(r.db.QueryRow(ctx, query,
		hash, status, contactResponse,
		sigName, sigImage, sigTime, sigIP, sigUA, sigGeo,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the hash is unknown or another request already won the
		// transition. Distinguish so the caller can report 404 vs 409.
		if _, lookupErr := r.GetByHash(ctx, hash); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, apperrors.Conflict("approval request already processed")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to transition approval request")
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*ApprovalRequest, error) {
	req := &ApprovalRequest{}
	sig := &Signature{}
	var sigName, sigImage *string

	err := row.Scan(
		&req.ID,
		&req.ApprovalHash,
		&req.SubjectKind,
		&req.EstimateID,
		&req.InvoiceID,
		&req.ContactID,
		&req.Status,
		&req.CustomMessage,
		&req.DueDate,
		&req.ContactResponse,
		&sigName,
		&sigImage,
		&sig.ClientTime,
		&sig.IP,
		&sig.UserAgent,
		&sig.Geolocation,
		&req.SentAt,
		&req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}

	if sigName != nil {
		sig.Name = *sigName
		if sigImage != nil {
			sig.Image = *sigImage
		}
		req.Signature = sig
	}
	return req, nil
}
