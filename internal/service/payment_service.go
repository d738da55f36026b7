package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/config"
	"github.com/eventpilot/be-approvals/internal/metrics"
	"github.com/eventpilot/be-approvals/internal/repository"
)

// ErrInvoiceAlreadyPaid signals that EnsurePaymentLink was a no-op because
// the invoice needs no further payment.
var ErrInvoiceAlreadyPaid = apperrors.Conflict("invoice already paid")

// paymentCurrency is fixed for now; the gateway adapter takes it as a
// parameter so multi-currency stays a data change.
const paymentCurrency = "USD"

// PaymentService issues payment links and confirms card payments.
type PaymentService struct {
	payments PaymentStore
	subjects SubjectStore
	gateway  PaymentGateway
	notifier Notifier
	cfg      *config.Config
	log      zerolog.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	payments PaymentStore,
	subjects SubjectStore,
	gateway PaymentGateway,
	notifier Notifier,
	cfg *config.Config,
	log zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		subjects: subjects,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// PaymentView is what the public payment page renders. Only pending payments
// resolve; paid and failed hashes are not found by design.
type PaymentView struct {
	Payment *repository.PaymentRecord `json:"payment"`
	Invoice *repository.Invoice       `json:"invoice"`
	Contact *repository.Contact       `json:"contact"`
}

// EnsurePaymentLink guarantees a single shareable payment URL per invoice.
// An existing pending record is reused; a paid invoice returns
// ErrInvoiceAlreadyPaid without creating anything.
func (s *PaymentService) EnsurePaymentLink(ctx context.Context, invoiceID string) (string, *repository.PaymentRecord, error) {
	invoice, err := s.subjects.GetInvoice(ctx, invoiceID)
	if err != nil {
		return "", nil, err
	}

	if invoice.PaymentStatus == repository.PaymentStatusPaid {
		return "", nil, ErrInvoiceAlreadyPaid
	}

	rec, err := s.payments.GetPendingByInvoice(ctx, invoiceID)
	if err != nil {
		return "", nil, err
	}

	if rec == nil {
		hash, err := newPaymentHash()
		if err != nil {
			return "", nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to generate payment hash")
		}

		rec = &repository.PaymentRecord{
			InvoiceID:   invoiceID,
			PaymentHash: hash,
			AmountCents: invoice.TotalCents,
			Currency:    paymentCurrency,
		}
		if err := s.payments.Create(ctx, rec); err != nil {
			return "", nil, err
		}

		metrics.PaymentLinksIssued.Inc()
		s.log.Info().
			Str("invoice_id", invoiceID).
			Str("invoice_number", invoice.InvoiceNumber).
			Int64("amount_cents", rec.AmountCents).
			Msg("Payment link issued")
	} else {
		metrics.PaymentLinksReused.Inc()
	}

	return s.cfg.PublicURL("/invoice-payment/" + rec.PaymentHash), rec, nil
}

// GetByHash resolves a pending payment for the public payment page.
func (s *PaymentService) GetByHash(ctx context.Context, hash string) (*PaymentView, error) {
	rec, err := s.payments.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if rec.Status != repository.PaymentStatusPending {
		return nil, apperrors.NotFound("payment", hash)
	}

	invoice, err := s.subjects.GetInvoice(ctx, rec.InvoiceID)
	if err != nil {
		return nil, err
	}
	contact, err := s.subjects.GetContact(ctx, invoice.ContactID)
	if err != nil {
		return nil, err
	}

	return &PaymentView{Payment: rec, Invoice: invoice, Contact: contact}, nil
}

// CreateIntent registers a gateway payment intent for a pending payment and
// returns the client secret for the browser-side card form.
func (s *PaymentService) CreateIntent(ctx context.Context, hash string) (string, error) {
	if s.gateway == nil {
		return "", apperrors.New(apperrors.CodeUpstream, "payment gateway not configured")
	}

	rec, err := s.payments.GetByHash(ctx, hash)
	if err != nil {
		return "", err
	}
	if rec.Status != repository.PaymentStatusPending {
		return "", apperrors.NotFound("payment", hash)
	}

	intentID, clientSecret, err := s.gateway.CreateIntent(ctx, rec.AmountCents, rec.Currency, map[string]string{
		"invoice_id":   rec.InvoiceID,
		"payment_hash": rec.PaymentHash,
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUpstream, "failed to create payment intent")
	}

	if err := s.payments.SetIntentID(ctx, hash, intentID); err != nil {
		return "", err
	}
	return clientSecret, nil
}

// ConfirmPayment verifies the intent succeeded at the gateway, then flips the
// record pending -> paid. The store-level compare-and-swap makes concurrent
// confirmations safe: exactly one wins, later ones get Conflict. The invoice's
// own payment_status is derived by a database trigger, not written here.
func (s *PaymentService) ConfirmPayment(ctx context.Context, hash, intentID string) (*repository.PaymentRecord, error) {
	if s.gateway == nil {
		return nil, apperrors.New(apperrors.CodeUpstream, "payment gateway not configured")
	}
	if strings.TrimSpace(intentID) == "" {
		return nil, apperrors.InvalidInput("payment_intent_id", "required")
	}

	status, err := s.gateway.RetrieveIntentStatus(ctx, intentID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstream, "failed to retrieve payment intent")
	}
	if status != "succeeded" {
		return nil, apperrors.PreconditionFailed("payment not completed")
	}

	rec, err := s.payments.MarkPaid(ctx, hash, intentID)
	if err != nil {
		return nil, err
	}

	metrics.PaymentsConfirmed.Inc()
	s.log.Info().
		Str("invoice_id", rec.InvoiceID).
		Str("payment_intent_id", intentID).
		Int64("amount_cents", rec.AmountCents).
		Msg("Payment confirmed")

	if s.notifier != nil {
		invoice, invErr := s.subjects.GetInvoice(ctx, rec.InvoiceID)
		if invErr == nil {
			contact, cErr := s.subjects.GetContact(ctx, invoice.ContactID)
			if cErr == nil {
				s.notifier.PublishApprovalEvent(ctx, "payment_received", nil, contact, map[string]any{
					"invoice_id":     rec.InvoiceID,
					"invoice_number": invoice.InvoiceNumber,
					"amount_cents":   rec.AmountCents,
				})
			}
		}
	}

	return rec, nil
}

// newPaymentHash returns a 128-bit random hex token. The hash is a bearer
// credential for the public payment page, so it must be unguessable.
func newPaymentHash() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
