package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/database"
)

// DisclosureRepository handles the live disclosure catalog and the per-subject
// snapshots copied from it. Snapshot approval is a one-way flip enforced by a
// conditional update.
type DisclosureRepository struct {
	db *database.DB
}

// NewDisclosureRepository creates a new DisclosureRepository.
func NewDisclosureRepository(db *database.DB) *DisclosureRepository {
	return &DisclosureRepository{db: db}
}

// GetCatalog returns the active catalog entries for the given ids. A missing
// or inactive id is a NotFound so callers never attach stale disclosures.
func (r *DisclosureRepository) GetCatalog(ctx context.Context, ids []string) ([]*Disclosure, error) {
	query := `
		SELECT id, title, content, sort_order, is_active, created_at
		FROM disclosures
		WHERE id = ANY($1) AND is_active = TRUE
		ORDER BY sort_order ASC
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get disclosures")
	}
	defer rows.Close()

	disclosures := make([]*Disclosure, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for rows.Next() {
		d := &Disclosure{}
		err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.SortOrder, &d.IsActive, &d.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to scan disclosure")
		}
		disclosures = append(disclosures, d)
		seen[d.ID] = true
	}

	for _, id := range ids {
		if !seen[id] {
			return nil, apperrors.NotFound("disclosure", id)
		}
	}
	return disclosures, nil
}

// AttachSnapshots copies catalog text into snapshot rows for one
// subject+contact pair, all in a single transaction.
func (r *DisclosureRepository) AttachSnapshots(ctx context.Context, kind SubjectKind, subjectID, contactID string, disclosures []*Disclosure) ([]*DisclosureSnapshot, error) {
	snapshots := make([]*DisclosureSnapshot, 0, len(disclosures))

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO disclosure_snapshots
			    (subject_kind, subject_id, contact_id, title, content, sort_order, is_approved)
			VALUES ($1::subject_kind, $2, $3, $4, $5, $6, FALSE)
			RETURNING id, created_at
		`

		for _, d := range disclosures {
			snap := &DisclosureSnapshot{
				SubjectKind: kind,
				SubjectID:   subjectID,
				ContactID:   contactID,
				Title:       d.Title,
				Content:     d.Content,
				SortOrder:   d.SortOrder,
			}

			err := tx.QueryRow(ctx, query,
				kind, subjectID, contactID, d.Title, d.Content, d.SortOrder,
			).Scan(&snap.ID, &snap.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to create disclosure snapshot")
			}

			snapshots = append(snapshots, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// ListForSubject returns all snapshots for a subject+contact pair in display
// order.
func (r *DisclosureRepository) ListForSubject(ctx context.Context, kind SubjectKind, subjectID, contactID string) ([]*DisclosureSnapshot, error) {
	query := `
		SELECT id, subject_kind, subject_id, contact_id,
		       title, content, sort_order, is_approved, approved_at, created_at
		FROM disclosure_snapshots
		WHERE subject_kind = $1::subject_kind AND subject_id = $2 AND contact_id = $3
		ORDER BY sort_order ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, kind, subjectID, contactID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to list disclosure snapshots")
	}
	defer rows.Close()

	snapshots := make([]*DisclosureSnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to scan disclosure snapshot")
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// CountUnapproved returns how many snapshots still gate the subject.
func (r *DisclosureRepository) CountUnapproved(ctx context.Context, kind SubjectKind, subjectID, contactID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM disclosure_snapshots
		WHERE subject_kind = $1::subject_kind AND subject_id = $2 AND contact_id = $3
		  AND is_approved = FALSE
	`

	var count int
	err := r.db.QueryRow(ctx, query, kind, subjectID, contactID).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to count unapproved disclosures")
	}
	return count, nil
}

// Approve flips is_approved once. Approving an already-approved snapshot
// returns the current row unchanged; the gate never reopens.
func (r *DisclosureRepository) Approve(ctx context.Context, snapshotID string) (*DisclosureSnapshot, error) {
	query := `
		UPDATE disclosure_snapshots
		SET is_approved = TRUE,
		    approved_at = NOW()
		WHERE id = $1 AND is_approved = FALSE
		RETURNING id, subject_kind, subject_id, contact_id,
		          title, content, sort_order, is_approved, approved_at, created_at
	`

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, snapshotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.getSnapshot(ctx, snapshotID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to approve disclosure snapshot")
	}
	return snap, nil
}

func (r *DisclosureRepository) getSnapshot(ctx context.Context, id string) (*DisclosureSnapshot, error) {
	query := `
		SELECT id, subject_kind, subject_id, contact_id,
		       title, content, sort_order, is_approved, approved_at, created_at
		FROM disclosure_snapshots
		WHERE id = $1
	`

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("disclosure snapshot", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to get disclosure snapshot")
	}
	return snap, nil
}

func scanSnapshot(row rowScanner) (*DisclosureSnapshot, error) {
	snap := &DisclosureSnapshot{}
	err := row.Scan(
		&snap.ID,
		&snap.SubjectKind,
		&snap.SubjectID,
		&snap.ContactID,
		&snap.Title,
		&snap.Content,
		&snap.SortOrder,
		&snap.IsApproved,
		&snap.ApprovedAt,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
