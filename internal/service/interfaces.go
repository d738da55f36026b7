package service

import (
	"context"

	"github.com/eventpilot/be-approvals/internal/repository"
)

// Store and collaborator interfaces are declared here, on the consumer side,
// so services can be exercised against fakes. The repository and client
// packages provide the real implementations.

// ApprovalStore persists approval requests.
type ApprovalStore interface {
	Create(ctx context.Context, req *repository.ApprovalRequest) error
	GetByHash(ctx context.Context, hash string) (*repository.ApprovalRequest, error)
	GetByID(ctx context.Context, id string) (*repository.ApprovalRequest, error)
	// Transition must be conditional on status = 'sent' so concurrent
	// submissions serialize in the store; the loser gets Conflict.
	Transition(ctx context.Context, hash, status string, contactResponse *string, sig *repository.Signature) (*repository.ApprovalRequest, error)
}

// DisclosureStore persists the catalog and per-subject snapshots.
type DisclosureStore interface {
	GetCatalog(ctx context.Context, ids []string) ([]*repository.Disclosure, error)
	AttachSnapshots(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string, disclosures []*repository.Disclosure) ([]*repository.DisclosureSnapshot, error)
	ListForSubject(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string) ([]*repository.DisclosureSnapshot, error)
	CountUnapproved(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string) (int, error)
	Approve(ctx context.Context, snapshotID string) (*repository.DisclosureSnapshot, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, rec *repository.PaymentRecord) error
	GetPendingByInvoice(ctx context.Context, invoiceID string) (*repository.PaymentRecord, error)
	GetByHash(ctx context.Context, hash string) (*repository.PaymentRecord, error)
	SetIntentID(ctx context.Context, hash, intentID string) error
	// MarkPaid must be conditional on status = 'pending' (compare-and-swap).
	MarkPaid(ctx context.Context, hash, intentID string) (*repository.PaymentRecord, error)
}

// SubjectStore reads the estimate/invoice/contact graph.
type SubjectStore interface {
	GetEstimate(ctx context.Context, id string) (*repository.Estimate, error)
	GetInvoice(ctx context.Context, id string) (*repository.Invoice, error)
	GetContact(ctx context.Context, id string) (*repository.Contact, error)
	GetOrganization(ctx context.Context, id string) (*repository.Organization, error)
}

// ActivityStore appends to and reads the activity log.
type ActivityStore interface {
	Append(ctx context.Context, entry *repository.ActivityEntry) error
	ListForSubject(ctx context.Context, kind repository.SubjectKind, subjectID string) ([]*repository.ActivityEntry, error)
}

// Notifier publishes notification events. Implementations are best-effort and
// never return errors; failures are logged inside the publisher.
type Notifier interface {
	PublishApprovalEvent(ctx context.Context, eventType string, req *repository.ApprovalRequest, contact *repository.Contact, payload map[string]any)
}

// PaymentGateway abstracts the card payment provider.
type PaymentGateway interface {
	// CreateIntent registers a payment intent and returns its id and the
	// client secret the browser needs to collect the card.
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (id, clientSecret string, err error)
	// RetrieveIntentStatus returns the gateway-side status of an intent,
	// e.g. "succeeded".
	RetrieveIntentStatus(ctx context.Context, intentID string) (string, error)
}
