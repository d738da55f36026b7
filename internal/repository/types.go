package repository

import "time"

// ── Domain types for the approval and payment workflow ───────────────────────

// SubjectKind tags which catalog entity an approval request covers.
type SubjectKind string

const (
	SubjectEstimate SubjectKind = "estimate"
	SubjectInvoice  SubjectKind = "invoice"
)

// Approval request statuses. Transitions are sent -> approved or
// sent -> rejected, enforced by conditional updates; terminal states never
// change again.
const (
	ApprovalStatusSent     = "sent"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Payment record statuses. pending -> paid happens at most once.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Signature is the customer's approval signature. All fields are
// client-asserted; the server records them for non-repudiation best effort
// only and verifies nothing.
type Signature struct {
	Name        string     `json:"name"`
	Image       string     `json:"image"` // data URL of the drawn signature
	ClientTime  *time.Time `json:"client_time,omitempty"`
	IP          *string    `json:"ip,omitempty"`
	UserAgent   *string    `json:"user_agent,omitempty"`
	Geolocation *string    `json:"geolocation,omitempty"`
}

// ApprovalRequest is one customer-facing approval of an estimate or invoice.
// The approval hash doubles as the bearer credential for the public link and
// never changes after creation. Rows are never deleted.
type ApprovalRequest struct {
	ID              string      `json:"id"`
	ApprovalHash    string      `json:"approval_hash"`
	SubjectKind     SubjectKind `json:"subject_kind"`
	EstimateID      *string     `json:"estimate_id,omitempty"`
	InvoiceID       *string     `json:"invoice_id,omitempty"`
	ContactID       string      `json:"contact_id"`
	Status          string      `json:"status"` // sent | approved | rejected
	CustomMessage   *string     `json:"custom_message,omitempty"`
	DueDate         *time.Time  `json:"due_date,omitempty"`
	ContactResponse *string     `json:"contact_response,omitempty"`
	Signature       *Signature  `json:"signature,omitempty"`
	SentAt          time.Time   `json:"sent_at"`
	RespondedAt     *time.Time  `json:"responded_at,omitempty"`
}

// SubjectID returns the estimate or invoice id according to the kind tag.
func (a *ApprovalRequest) SubjectID() string {
	if a.SubjectKind == SubjectInvoice && a.InvoiceID != nil {
		return *a.InvoiceID
	}
	if a.EstimateID != nil {
		return *a.EstimateID
	}
	return ""
}

// Disclosure is a live catalog entry. Snapshots copy its text at attach time
// so later catalog edits don't change what the customer agreed to.
type Disclosure struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DisclosureSnapshot is a point-in-time disclosure copy bound to one
// subject+contact pair. is_approved is a one-way gate.
type DisclosureSnapshot struct {
	ID          string      `json:"id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   string      `json:"subject_id"`
	ContactID   string      `json:"contact_id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	SortOrder   int         `json:"sort_order"`
	IsApproved  bool        `json:"is_approved"`
	ApprovedAt  *time.Time  `json:"approved_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// PaymentRecord is one shareable payment link for an invoice. At most one
// pending record exists per invoice (partial unique index), which makes link
// issuance idempotent.
type PaymentRecord struct {
	ID              string     `json:"id"`
	InvoiceID       string     `json:"invoice_id"`
	PaymentHash     string     `json:"payment_hash"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"` // pending | paid | failed
	PaymentIntentID *string    `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Contact is the person asked to approve or pay.
type Contact struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// FullName joins first and last names for notifications and the activity log.
func (c *Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Organization groups contacts.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LineItem is one row of an estimate or invoice, rendered on the public page.
type LineItem struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	AmountCents    int64   `json:"amount_cents"`
	SortOrder      int     `json:"sort_order"`
}

// Estimate is the read-side of an estimate for approval rendering.
type Estimate struct {
	ID             string      `json:"id"`
	EstimateNumber string      `json:"estimate_number"`
	ContactID      string      `json:"contact_id"`
	Title          *string     `json:"title,omitempty"`
	Status         string      `json:"status"`
	TotalCents     int64       `json:"total_cents"`
	Deleted        bool        `json:"-"`
	Lines          []*LineItem `json:"lines"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Invoice is the read-side of an invoice. PaymentStatus is derived by a
// database trigger from payment records; this service only reads it.
type Invoice struct {
	ID            string      `json:"id"`
	InvoiceNumber string      `json:"invoice_number"`
	ContactID     string      `json:"contact_id"`
	Title         *string     `json:"title,omitempty"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"` // unpaid | paid
	TotalCents    int64       `json:"total_cents"`
	Deleted       bool        `json:"-"`
	Lines         []*LineItem `json:"lines"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ActivityEntry is one immutable row in the activity log.
type ActivityEntry struct {
	ID          string         `json:"id"`
	ActorType   string         `json:"actor_type"` // customer | staff | system
	ActorName   string         `json:"actor_name"`
	Action      string         `json:"action"`
	SubjectKind *SubjectKind   `json:"subject_kind,omitempty"`
	SubjectID   *string        `json:"subject_id,omitempty"`
	ContactID   *string        `json:"contact_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
