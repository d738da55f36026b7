package repository

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/database"
)

// ActivityRepository appends and reads immutable activity log entries. The
// table has a delete-prevention trigger so append is the only mutation.
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one entry.
func (r *ActivityRepository) Append(ctx context.Context, entry *ActivityEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to marshal activity metadata")
		}
	}

	query := `
		INSERT INTO activity_log
		    (actor_type, actor_name, action,
		     subject_kind, subject_id, contact_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.ActorType,
		entry.ActorName,
		entry.Action,
		entry.SubjectKind,
		entry.SubjectID,
		entry.ContactID,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUpstream, "failed to append activity entry")
	}
	return nil
}

// ListForSubject returns the activity trail for one subject, oldest first.
func (r *ActivityRepository) ListForSubject(ctx context.Context, kind SubjectKind, subjectID string) ([]*ActivityEntry, error) {
	query := `
		SELECT id, actor_type, actor_name, action,
		       subject_kind, subject_id, contact_id, metadata, created_at
		FROM activity_log
		WHERE subject_kind = $1::subject_kind AND subject_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, kind, subjectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to list activity entries")
	}
	defer rows.Close()

	entries := make([]*ActivityEntry, 0)
	for rows.Next() {
		entry := &ActivityEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.ActorType,
			&entry.ActorName,
			&entry.Action,
			&entry.SubjectKind,
			&entry.SubjectID,
			&entry.ContactID,
			&metadataJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to scan activity entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to unmarshal activity metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
