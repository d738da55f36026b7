package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/database"
)

// PaymentRepository persists payment records. A partial unique index on
// (invoice_id) WHERE status = 'pending' backs the single-pending-link
// invariant; pending -> paid is a compare-and-swap on status.
type PaymentRepository struct {
	db *database.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, invoice_id, payment_hash, amount_cents, currency,
	status, payment_intent_id, paid_at, created_at`

// Create inserts a new pending record.
func (r *PaymentRepository) Create(ctx context.Context, rec *PaymentRecord) error {
	query := `
		INSERT INTO payment_records
		    (invoice_id, payment_hash, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, 'pending'::payment_status)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.InvoiceID,
		rec.PaymentHash,
		rec.AmountCents,
		rec.Currency,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to create payment record")
	}

	rec.Status = PaymentStatusPending
	return nil
}

// GetPendingByInvoice returns the open payment record for an invoice, or nil
// when none exists.
func (r *PaymentRepository) GetPendingByInvoice(ctx context.Context, invoiceID string) (*PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE invoice_id = $1 AND status = 'pending'
		LIMIT 1
	`

	rec, err := scanPayment(r.db.QueryRow(ctx, query, invoiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get pending payment")
	}
	return rec, nil
}

// GetByHash looks a record up by its public bearer hash regardless of status.
// Callers decide whether non-pending records are resolvable.
func (r *PaymentRepository) GetByHash(ctx context.Context, hash string) (*PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE payment_hash = $1`

	rec, err := scanPayment(r.db.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("payment", hash)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get payment record")
	}
	return rec, nil
}

// SetIntentID stamps the gateway intent id on a pending record.
func (r *PaymentRepository) SetIntentID(ctx context.Context, hash, intentID string) error {
	query := `
		UPDATE payment_records
		SET payment_intent_id = $2
		WHERE payment_hash = $1 AND status = 'pending'
		RETURNING id
	`

	var id string
	err := r.db.QueryRow(ctx, query, hash, intentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("pending payment", hash)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to set payment intent")
	}
	return nil
}

// MarkPaid transitions pending -> paid exactly once. Zero updated rows with
// an existing record means another confirmation already won.
func (r *PaymentRepository) MarkPaid(ctx context.Context, hash, intentID string) (*PaymentRecord, error) {
	query := `
		UPDATE payment_records
		SET status            = 'paid'::payment_status,
		    payment_intent_id = $2,
		    paid_at           = NOW()
		WHERE payment_hash = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	rec, err := scanPayment(r.db.QueryRow(ctx, query, hash, intentID))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := r.GetByHash(ctx, hash); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, apperrors.Conflict("payment already processed")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to mark payment paid")
	}
	return rec, nil
}

func scanPayment(row rowScanner) (*PaymentRecord, error) {
	rec := &PaymentRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.InvoiceID,
		&rec.PaymentHash,
		&rec.AmountCents,
		&rec.Currency,
		&rec.Status,
		&rec.PaymentIntentID,
		&rec.PaidAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
