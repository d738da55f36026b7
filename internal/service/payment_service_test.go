package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eventpilot/be-approvals/internal/apperrors"
	"github.com/eventpilot/be-approvals/internal/repository"
)

func TestEnsurePaymentLink_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.addContact("c1")

	url1, rec1, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("first EnsurePaymentLink: %v", err)
	}
	url2, rec2, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("second EnsurePaymentLink: %v", err)
	}

	if url1 != url2 {
		t.Fatalf("link not stable: %q vs %q", url1, url2)
	}
	if rec1.PaymentHash != rec2.PaymentHash {
		t.Fatalf("hash not stable: %q vs %q", rec1.PaymentHash, rec2.PaymentHash)
	}
	if len(env.payments.byHash) != 1 {
		t.Fatalf("expected one payment record, got %d", len(env.payments.byHash))
	}
	if !strings.HasPrefix(url1, "https://app.eventpilot.test/invoice-payment/") {
		t.Fatalf("unexpected link shape: %q", url1)
	}
	if rec1.AmountCents != 120000 || rec1.Currency != "USD" {
		t.Fatalf("unexpected record: %+v", rec1)
	}
}

func TestEnsurePaymentLink_HashEntropy(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}
	// 128 bits hex-encoded.
	if len(rec.PaymentHash) != 32 {
		t.Fatalf("hash length = %d, want 32", len(rec.PaymentHash))
	}
	for _, r := range rec.PaymentHash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("non-hex rune %q in hash %q", r, rec.PaymentHash)
		}
	}
}

func TestEnsurePaymentLink_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.subjects.invoices["i2"] = &repository.Invoice{
		ID: "i2", InvoiceNumber: "INV-i2", ContactID: "c1",
		Status: "open", PaymentStatus: "paid", TotalCents: 5000,
	}

	if _, _, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "missing"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("missing invoice: expected not found, got %v", err)
	}

	_, _, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i2")
	if !errors.Is(err, ErrInvoiceAlreadyPaid) {
		t.Fatalf("paid invoice: expected ErrInvoiceAlreadyPaid, got %v", err)
	}
	if len(env.payments.byHash) != 0 {
		t.Fatal("paid invoice must not grow the payments table")
	}
}

func TestGetByHash_OnlyPendingResolves(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.addContact("c1")

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}

	view, err := env.paymentSvc.GetByHash(context.Background(), rec.PaymentHash)
	if err != nil {
		t.Fatalf("GetByHash pending: %v", err)
	}
	if view.Invoice.ID != "i1" || view.Contact.ID != "c1" {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, err := env.payments.MarkPaid(context.Background(), rec.PaymentHash, "pi_test"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := env.paymentSvc.GetByHash(context.Background(), rec.PaymentHash); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("paid hash must be not found, got %v", err)
	}
}

func TestCreateIntent(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}

	secret, err := env.paymentSvc.CreateIntent(context.Background(), rec.PaymentHash)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if secret != "pi_test_secret" {
		t.Fatalf("client secret = %q", secret)
	}

	stored, err := env.payments.GetByHash(context.Background(), rec.PaymentHash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "pi_test" {
		t.Fatalf("intent id not recorded: %+v", stored)
	}
}

func TestCreateIntent_GatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.gateway.createErr = errors.New("gateway unreachable")

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}

	_, err = env.paymentSvc.CreateIntent(context.Background(), rec.PaymentHash)
	if apperrors.CodeOf(err) != apperrors.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGatewayDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.addContact("c1")

	// Stripe disabled in config leaves the gateway nil; link issuance still
	// works, only the card operations are unavailable.
	svc := NewPaymentService(env.payments, env.subjects, nil, nil, env.cfg, zerolog.New(io.Discard))

	url, rec, err := svc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink without gateway: %v", err)
	}
	if url == "" || rec == nil {
		t.Fatal("expected a usable payment link")
	}

	if _, err := svc.CreateIntent(context.Background(), rec.PaymentHash); apperrors.CodeOf(err) != apperrors.CodeUpstream {
		t.Fatalf("CreateIntent without gateway: expected upstream error, got %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), rec.PaymentHash, "pi_test"); apperrors.CodeOf(err) != apperrors.CodeUpstream {
		t.Fatalf("ConfirmPayment without gateway: expected upstream error, got %v", err)
	}

	stored, err := env.payments.GetByHash(context.Background(), rec.PaymentHash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if stored.Status != repository.PaymentStatusPending {
		t.Fatalf("record left in %q, want pending", stored.Status)
	}
}

func TestConfirmPayment(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.addContact("c1")

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}

	paid, err := env.paymentSvc.ConfirmPayment(context.Background(), rec.PaymentHash, "pi_test")
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if paid.Status != repository.PaymentStatusPaid {
		t.Fatalf("status = %q, want paid", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatal("paid_at not set")
	}

	last := env.notifier.events[len(env.notifier.events)-1]
	if last.EventType != "payment_received" {
		t.Fatalf("expected payment_received event, got %q", last.EventType)
	}
	if last.Payload["invoice_id"] != "i1" {
		t.Fatalf("unexpected payload: %+v", last.Payload)
	}
}

func TestConfirmPayment_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.addInvoice("i1", 120000)
	env.addContact("c1")

	_, rec, err := env.paymentSvc.EnsurePaymentLink(context.Background(), "i1")
	if err != nil {
		t.Fatalf("EnsurePaymentLink: %v", err)
	}

	t.Run("blank intent id", func(t *testing.T) {
		_, err := env.paymentSvc.ConfirmPayment(context.Background(), rec.PaymentHash, "  ")
		if apperrors.CodeOf(err) != apperrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("intent not succeeded", func(t *testing.T) {
		env.gateway.status = "requires_payment_method"
		defer func() { env.gateway.status = "succeeded" }()

		_, err := env.paymentSvc.ConfirmPayment(context.Background(), rec.PaymentHash, "pi_test")
		if apperrors.CodeOf(err) != apperrors.CodePreconditionFailed {
			t.Fatalf("expected precondition failure, got %v", err)
		}

		stored, err := env.payments.GetByHash(context.Background(), rec.PaymentHash)
		if err != nil {
			t.Fatalf("GetByHash: %v", err)
		}
		if stored.Status != repository.PaymentStatusPending {
			t.Fatalf("record flipped to %q without a succeeded intent", stored.Status)
		}
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := env.paymentSvc.ConfirmPayment(context.Background(), "unknown", "pi_test")
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("paid is final", func(t *testing.T) {
		if _, err := env.paymentSvc.ConfirmPayment(context.Background(), rec.PaymentHash, "pi_test"); err != nil {
			t.Fatalf("first confirm: %v", err)
		}
		_, err := env.paymentSvc.ConfirmPayment(context.Background(), rec.PaymentHash, "pi_other")
		if apperrors.CodeOf(err) != apperrors.CodeConflict {
			t.Fatalf("expected conflict on second confirm, got %v", err)
		}

		stored, err := env.payments.GetByHash(context.Background(), rec.PaymentHash)
		if err != nil {
			t.Fatalf("GetByHash: %v", err)
		}
		if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "pi_test" {
			t.Fatalf("winning intent id overwritten: %+v", stored)
		}
	})
}
