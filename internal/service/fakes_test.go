package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/repository"
)

// The fakes mirror the store contracts, including the conditional-update
// semantics the real repositories get from SQL predicates: Transition only
// succeeds from 'sent', MarkPaid only from 'pending'.

type fakeApprovalStore struct {
	mu        sync.Mutex
	byHash    map[string]*repository.ApprovalRequest
	nextID    int
	createErr error
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{byHash: make(map[string]*repository.ApprovalRequest)}
}

func (f *fakeApprovalStore) Create(ctx context.Context, req *repository.ApprovalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	req.ID = fmt.Sprintf("ap-%d", f.nextID)
	req.Status = repository.ApprovalStatusSent
	req.SentAt = time.Now()
	cp := *req
	f.byHash[req.ApprovalHash] = &cp
	return nil
}

func (f *fakeApprovalStore) GetByHash(ctx context.Context, hash string) (*repository.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.byHash[hash]
	if !ok {
		return nil, apperrors.NotFound("approval request", hash)
	}
	cp := *req
	return &cp, nil
}

func (f *fakeApprovalStore) GetByID(ctx context.Context, id string) (*repository.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.byHash {
		if req.ID == id {
			cp := *req
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("approval request", id)
}

func (f *fakeApprovalStore) Transition(ctx context.Context, hash, status string, contactResponse *string, sig *repository.Signature) (*repository.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.byHash[hash]
	if !ok {
		return nil, apperrors.NotFound("approval request", hash)
	}
	if req.Status != repository.ApprovalStatusSent {
		return nil, apperrors.Conflict("approval request already processed")
	}
	now := time.Now()
	req.Status = status
	req.ContactResponse = contactResponse
	req.Signature = sig
	req.RespondedAt = &now
	cp := *req
	return &cp, nil
}

type fakeDisclosureStore struct {
	mu        sync.Mutex
	catalog   map[string]*repository.Disclosure
	snapshots map[string]*repository.DisclosureSnapshot
	nextID    int
}

func newFakeDisclosureStore() *fakeDisclosureStore {
	return &fakeDisclosureStore{
		catalog:   make(map[string]*repository.Disclosure),
		snapshots: make(map[string]*repository.DisclosureSnapshot),
	}
}

func (f *fakeDisclosureStore) GetCatalog(ctx context.Context, ids []string) ([]*repository.Disclosure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.Disclosure, 0, len(ids))
	for _, id := range ids {
		d, ok := f.catalog[id]
		if !ok || !d.IsActive {
			return nil, apperrors.NotFound("disclosure", id)
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDisclosureStore) AttachSnapshots(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string, disclosures []*repository.Disclosure) ([]*repository.DisclosureSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.DisclosureSnapshot, 0, len(disclosures))
	for _, d := range disclosures {
		f.nextID++
		snap := &repository.DisclosureSnapshot{
			ID:          fmt.Sprintf("ds-%d", f.nextID),
			SubjectKind: kind,
			SubjectID:   subjectID,
			ContactID:   contactID,
			Title:       d.Title,
			Content:     d.Content,
			SortOrder:   d.SortOrder,
			CreatedAt:   time.Now(),
		}
		f.snapshots[snap.ID] = snap
		cp := *snap
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeDisclosureStore) ListForSubject(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string) ([]*repository.DisclosureSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.DisclosureSnapshot, 0)
	for _, snap := range f.snapshots {
		if snap.SubjectKind == kind && snap.SubjectID == subjectID && snap.ContactID == contactID {
			cp := *snap
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDisclosureStore) CountUnapproved(ctx context.Context, kind repository.SubjectKind, subjectID, contactID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, snap := range f.snapshots {
		if snap.SubjectKind == kind && snap.SubjectID == subjectID && snap.ContactID == contactID && !snap.IsApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeDisclosureStore) Approve(ctx context.Context, snapshotID string) (*repository.DisclosureSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[snapshotID]
	if !ok {
		return nil, apperrors.NotFound("disclosure snapshot", snapshotID)
	}
	if !snap.IsApproved {
		now := time.Now()
		snap.IsApproved = true
		snap.ApprovedAt = &now
	}
	cp := *snap
	return &cp, nil
}

type fakePaymentStore struct {
	mu        sync.Mutex
	byHash    map[string]*repository.PaymentRecord
	nextID    int
	createErr error
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{byHash: make(map[string]*repository.PaymentRecord)}
}

func (f *fakePaymentStore) Create(ctx context.Context, rec *repository.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byHash {
		if existing.InvoiceID == rec.InvoiceID && existing.Status == repository.PaymentStatusPending {
			return apperrors.Conflict("pending payment already exists")
		}
	}
	f.nextID++
	rec.ID = fmt.Sprintf("pay-%d", f.nextID)
	rec.Status = repository.PaymentStatusPending
	rec.CreatedAt = time.Now()
	cp := *rec
	f.byHash[rec.PaymentHash] = &cp
	return nil
}

func (f *fakePaymentStore) GetPendingByInvoice(ctx context.Context, invoiceID string) (*repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.byHash {
		if rec.InvoiceID == invoiceID && rec.Status == repository.PaymentStatusPending {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) GetByHash(ctx context.Context, hash string) (*repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byHash[hash]
	if !ok {
		return nil, apperrors.NotFound("payment", hash)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakePaymentStore) SetIntentID(ctx context.Context, hash, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byHash[hash]
	if !ok || rec.Status != repository.PaymentStatusPending {
		return apperrors.NotFound("pending payment", hash)
	}
	rec.PaymentIntentID = &intentID
	return nil
}

func (f *fakePaymentStore) MarkPaid(ctx context.Context, hash, intentID string) (*repository.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byHash[hash]
	if !ok {
		return nil, apperrors.NotFound("payment", hash)
	}
	if rec.Status != repository.PaymentStatusPending {
		return nil, apperrors.Conflict("payment already processed")
	}
	now := time.Now()
	rec.Status = repository.PaymentStatusPaid
	rec.PaymentIntentID = &intentID
	rec.PaidAt = &now
	cp := *rec
	return &cp, nil
}

type fakeSubjectStore struct {
	estimates map[string]*repository.Estimate
	invoices  map[string]*repository.Invoice
	contacts  map[string]*repository.Contact
	orgs      map[string]*repository.Organization
}

func newFakeSubjectStore() *fakeSubjectStore {
	return &fakeSubjectStore{
		estimates: make(map[string]*repository.Estimate),
		invoices:  make(map[string]*repository.Invoice),
		contacts:  make(map[string]*repository.Contact),
		orgs:      make(map[string]*repository.Organization),
	}
}

func (f *fakeSubjectStore) GetEstimate(ctx context.Context, id string) (*repository.Estimate, error) {
	if est, ok := f.estimates[id]; ok && !est.Deleted {
		return est, nil
	}
	return nil, apperrors.NotFound("estimate", id)
}

func (f *fakeSubjectStore) GetInvoice(ctx context.Context, id string) (*repository.Invoice, error) {
	if inv, ok := f.invoices[id]; ok && !inv.Deleted {
		return inv, nil
	}
	return nil, apperrors.NotFound("invoice", id)
}

func (f *fakeSubjectStore) GetContact(ctx context.Context, id string) (*repository.Contact, error) {
	if c, ok := f.contacts[id]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("contact", id)
}

func (f *fakeSubjectStore) GetOrganization(ctx context.Context, id string) (*repository.Organization, error) {
	if org, ok := f.orgs[id]; ok {
		return org, nil
	}
	return nil, apperrors.NotFound("organization", id)
}

type fakeActivityStore struct {
	mu        sync.Mutex
	entries   []*repository.ActivityEntry
	appendErr error
}

func (f *fakeActivityStore) Append(ctx context.Context, entry *repository.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeActivityStore) ListForSubject(ctx context.Context, kind repository.SubjectKind, subjectID string) ([]*repository.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.ActivityEntry, 0)
	for _, entry := range f.entries {
		if entry.SubjectKind != nil && *entry.SubjectKind == kind && entry.SubjectID != nil && *entry.SubjectID == subjectID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type publishedEvent struct {
	EventType string
	Payload   map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeNotifier) PublishApprovalEvent(ctx context.Context, eventType string, req *repository.ApprovalRequest, contact *repository.Contact, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{EventType: eventType, Payload: payload})
}

type fakeGateway struct {
	intentID     string
	clientSecret string
	status       string
	createErr    error
	retrieveErr  error
}

func (f *fakeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (string, string, error) {
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return f.intentID, f.clientSecret, nil
}

func (f *fakeGateway) RetrieveIntentStatus(ctx context.Context, intentID string) (string, error) {
	if f.retrieveErr != nil {
		return "", f.retrieveErr
	}
	return f.status, nil
}
