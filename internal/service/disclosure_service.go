package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/repository"
)

// DisclosureService attaches disclosure snapshots to a subject and records
// the customer's individual acknowledgements.
type DisclosureService struct {
	disclosures DisclosureStore
	log         zerolog.Logger
}

// NewDisclosureService creates a new DisclosureService.
func NewDisclosureService(disclosures DisclosureStore, log zerolog.Logger) *DisclosureService {
	return &DisclosureService{disclosures: disclosures, log: log}
}

// AttachSelected copies the current catalog text of the given disclosures
// into snapshots for the subject+contact pair. An empty selection is a
// successful no-op: the approval proceeds ungated.
func (s *DisclosureService) AttachSelected(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string, disclosureIDs []string) ([]*repository.DisclosureSnapshot, error) {
	if len(disclosureIDs) == 0 {
		return nil, nil
	}

	catalog, err := s.disclosures.GetCatalog(ctx, disclosureIDs)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.disclosures.AttachSnapshots(ctx, kind, subjectID, contactID, catalog)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("subject_kind", string(kind)).
		Str("subject_id", subjectID).
		Str("contact_id", contactID).
		Int("count", len(snapshots)).
		Msg("Disclosures attached")

	return snapshots, nil
}

// Approve acknowledges one snapshot. Re-approving is idempotent; the gate
// never reopens.
func (s *DisclosureService) Approve(ctx context.Context, snapshotID string) (*repository.DisclosureSnapshot, error) {
	snap, err := s.disclosures.Approve(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("snapshot_id", snap.ID).
		Str("subject_id", snap.SubjectID).
		Msg("Disclosure approved")

	return snap, nil
}

// ListForSubject returns the snapshots gating a subject+contact pair.
func (s *DisclosureService) ListForSubject(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string) ([]*repository.DisclosureSnapshot, error) {
	return s.disclosures.ListForSubject(ctx, kind, subjectID, contactID)
}
