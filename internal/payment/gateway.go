// Package payment adapts the external payment gateway.  The reservation
// core only depends on the Gateway interface and the webhook contract; the
// Stripe implementation (and its signature verification) stays behind it.
package payment

import "context"

// CheckoutSession is the gateway's handle for a payment attempt.
type CheckoutSession struct {
	ID  string // gateway session id
	URL string // where the customer completes payment
}

// Webhook status values, normalized by the HTTP layer before the
// orchestrator sees them.
const (
	StatusPaid      = "PAID"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Gateway creates checkout sessions for pending bookings.  A failure here
// leaves the booking PENDING with no ledger mutation; the customer may
// simply retry.
type Gateway interface {
	CreateCheckout(ctx context.Context, orderCode string, amountCents int64, description string) (*CheckoutSession, error)
}
