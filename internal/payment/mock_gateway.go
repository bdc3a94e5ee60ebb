package payment

import "context"

// MockGateway is a stand-in for environments without Stripe credentials
// (local development and tests).  It returns a deterministic fake session.
type MockGateway struct{}

// NewMockGateway returns a MockGateway.
func NewMockGateway() *MockGateway { return &MockGateway{} }

// CreateCheckout returns a fake checkout session keyed on the order code.
func (m *MockGateway) CreateCheckout(ctx context.Context, orderCode string, amountCents int64, description string) (*CheckoutSession, error) {
	return &CheckoutSession{
		ID:  "mock_" + orderCode,
		URL: "https://payments.invalid/checkout/" + orderCode,
	}, nil
}
