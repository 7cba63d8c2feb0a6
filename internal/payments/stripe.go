package payments

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider initializes a Stripe client with the given secret key.
func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}, nil
}

// CreateCustomer creates a Stripe customer and returns its ID.
func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	if p == nil || p.api == nil {
		return "", fmt.Errorf("stripe provider is not initialized")
	}
	if email == "" {
		return "", fmt.Errorf("customer email is required")
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}

	log.Ctx(ctx).Debug().Str("customer_id", customer.ID).Msg("Created Stripe customer")
	return customer.ID, nil
}

// CreateReservationIntent creates a CRC payment intent for a reservation.
// Stripe amounts are in centimos, so the colon amount is scaled by 100.
func (p *StripeProvider) CreateReservationIntent(ctx context.Context, in IntentInput) (Intent, error) {
	if p == nil || p.api == nil {
		return Intent{}, fmt.Errorf("stripe provider is not initialized")
	}
	if in.CustomerID == "" {
		return Intent{}, fmt.Errorf("customer id is required")
	}
	if in.Amount <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(in.Amount * 100),
		Currency: stripe.String(string(stripe.CurrencyCRC)),
		Customer: stripe.String(in.CustomerID),
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	for key, value := range in.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}

	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       in.Amount,
		Currency:     string(stripe.CurrencyCRC),
	}, nil
}

// CreateSubscriptionCheckout creates a recurring checkout session and returns
// the hosted URL the client should open.
func (p *StripeProvider) CreateSubscriptionCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	if p == nil || p.api == nil {
		return "", fmt.Errorf("stripe provider is not initialized")
	}
	if in.CustomerID == "" {
		return "", fmt.Errorf("customer id is required")
	}
	if in.RedirectURL == "" {
		return "", fmt.Errorf("redirect url is required")
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Customer:           stripe.String(in.CustomerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(in.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Pro plan"),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
					UnitAmount: stripe.Int64(in.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.RedirectURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(in.RedirectURL),
	}

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}
