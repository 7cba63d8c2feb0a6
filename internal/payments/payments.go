// Package payments is the payment authority the booking routes call after
// the ledger admits a reservation. The ledger itself never touches it.
package payments

import "context"

// Intent is a created charge awaiting client-side confirmation.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// IntentInput describes a reservation charge. Amount is in colones.
type IntentInput struct {
	CustomerID  string
	Amount      int64
	Description string
	Metadata    map[string]string
}

// CheckoutInput describes a subscription checkout session.
type CheckoutInput struct {
	CustomerID  string
	RedirectURL string
	Amount      int64
	Currency    string
}

// Provider is a testable abstraction over the payment processor.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateReservationIntent(ctx context.Context, in IntentInput) (Intent, error)
	CreateSubscriptionCheckout(ctx context.Context, in CheckoutInput) (string, error)
}
