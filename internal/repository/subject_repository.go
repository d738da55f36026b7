package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/database"
)

// SubjectRepository reads the estimate/invoice/contact graph the public pages
// render. The catalog itself is owned by the main application; this service
// only reads it, and soft-deleted rows resolve as NotFound.
type SubjectRepository struct {
	db *database.DB
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db *database.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// GetEstimate returns an estimate with its line items.
func (r *SubjectRepository) GetEstimate(ctx context.Context, id string) (*Estimate, error) {
	query := `
		SELECT id, estimate_number, contact_id, title, status, total_cents, deleted, created_at
		FROM estimates
		WHERE id = $1 AND deleted = FALSE
	`

	est := &Estimate{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&est.ID,
		&est.EstimateNumber,
		&est.ContactID,
		&est.Title,
		&est.Status,
		&est.TotalCents,
		&est.Deleted,
		&est.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("estimate", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get estimate")
	}

	est.Lines, err = r.getLines(ctx, "estimate_line_items", "estimate_id", id)
	if err != nil {
		return nil, err
	}
	return est, nil
}

// GetInvoice returns an invoice with its line items.
func (r *SubjectRepository) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	query := `
		SELECT id, invoice_number, contact_id, title, status, payment_status, total_cents, deleted, created_at
		FROM invoices
		WHERE id = $1 AND deleted = FALSE
	`

	inv := &Invoice{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.ContactID,
		&inv.Title,
		&inv.Status,
		&inv.PaymentStatus,
		&inv.TotalCents,
		&inv.Deleted,
		&inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("invoice", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get invoice")
	}

	inv.Lines, err = r.getLines(ctx, "invoice_line_items", "invoice_id", id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetContact returns a contact by id.
func (r *SubjectRepository) GetContact(ctx context.Context, id string) (*Contact, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, organization_id
		FROM contacts
		WHERE id = $1 AND deleted = FALSE
	`

	c := &Contact{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&c.OrganizationID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("contact", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get contact")
	}
	return c, nil
}

// GetOrganization returns an organization by id.
func (r *SubjectRepository) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `SELECT id, name FROM organizations WHERE id = $1`

	org := &Organization{}
	err := r.db.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("organization", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get organization")
	}
	return org, nil
}

func (r *SubjectRepository) getLines(ctx context.Context, table, fkColumn, subjectID string) ([]*LineItem, error) {
	query := `
		SELECT id, description, quantity, unit_price_cents, amount_cents, sort_order
		FROM ` + table + `
		WHERE ` + fkColumn + ` = $1
		ORDER BY sort_order ASC
	`

	rows, err := r.db.Query(ctx, query, subjectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get line items")
	}
	defer rows.Close()

	lines := make([]*LineItem, 0)
	for rows.Next() {
		line := &LineItem{}
		err := rows.Scan(
			&line.ID,
			&line.Description,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.AmountCents,
			&line.SortOrder,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to scan line item")
		}
		lines = append(lines, line)
	}
	return lines, nil
}
