package payment

import (
	"context"
	"errors"
	"os"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// ErrStripeNotConfigured is returned by NewStripeGateway when the secret
// key environment variable is missing.
var ErrStripeNotConfigured = errors.New("STRIPE_SECRET_KEY not set")

// StripeGateway implements Gateway on Stripe Checkout.  The order code is
// carried in the session metadata and client reference so the webhook can
// be matched back to a booking.
type StripeGateway struct {
	currency   string
	successURL string
	cancelURL  string
}

// NewStripeGateway reads STRIPE_SECRET_KEY and configures the global
// Stripe client.  successURL and cancelURL are where the customer lands
// after checkout.
func NewStripeGateway(currency, successURL, cancelURL string) (*StripeGateway, error) {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return nil, ErrStripeNotConfigured
	}
	stripe.Key = key
	return &StripeGateway{currency: currency, successURL: successURL, cancelURL: cancelURL}, nil
}

// CreateCheckout opens a single-line-item checkout session for the full
// booking amount.
func (g *StripeGateway) CreateCheckout(ctx context.Context, orderCode string, amountCents int64, description string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(orderCode),
		Metadata:          map[string]string{"order_code": orderCode},
	}
	params.Context = ctx
	s, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
