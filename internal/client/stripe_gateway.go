package client

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
)

// StripeGateway adapts Stripe payment intents to the service's gateway
// interface. The service layer never sees Stripe types.
type StripeGateway struct {
	api *stripeclient.API
	log zerolog.Logger
}

// NewStripeGateway creates a gateway using the given secret key.
func NewStripeGateway(secretKey string, log zerolog.Logger) *StripeGateway {
	api := &stripeclient.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, log: log}
}

// CreateIntent registers a payment intent and returns its id and client
// secret.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", "", err
	}

	g.log.Debug().
		Str("payment_intent_id", intent.ID).
		Int64("amount_cents", amountCents).
		Msg("payment intent created")

	return intent.ID, intent.ClientSecret, nil
}

// RetrieveIntentStatus returns the gateway-side status of an intent,
// e.g. "succeeded" or "requires_payment_method".
func (g *StripeGateway) RetrieveIntentStatus(ctx context.Context, intentID string) (string, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", err
	}
	return string(intent.Status), nil
}
