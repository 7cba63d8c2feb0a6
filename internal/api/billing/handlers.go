// internal/api/billing/handlers.go
package billing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/api/apiutil"
	appdb "github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/payments"
)

var (
	queries  *appdb.Queries
	provider payments.Provider
	settings Settings
	initOnce sync.Once
)

const billingTimeout = 10 * time.Second

// Settings carries the subscription plan offered at checkout.
type Settings struct {
	SubscriptionAmount   int64
	SubscriptionCurrency string
	RedirectURL          string
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *appdb.Queries, paymentProvider payments.Provider, cfg Settings) {
	if q == nil || paymentProvider == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		provider = paymentProvider
		settings = cfg
	})
}

// POST /api/v1/billing/checkout-link
func HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if provider == nil {
		logger.Warn().Msg("Checkout requested but payments are not configured")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "PAYMENTS_UNAVAILABLE", "Payments are not available right now")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), billingTimeout)
	defer cancel()

	customerID := user.StripeID
	if customerID == "" {
		created, err := provider.CreateCustomer(ctx, user.Email, user.Name)
		if err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create payment customer")
			apiutil.WriteError(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Could not start checkout. Please try again")
			return
		}
		customerID = created
		if err := queries.SetUserStripeID(ctx, appdb.SetUserStripeIDParams{StripeID: customerID, ID: user.ID}); err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to store payment customer id")
		}
	}

	url, err := provider.CreateSubscriptionCheckout(ctx, payments.CheckoutInput{
		CustomerID:  customerID,
		RedirectURL: settings.RedirectURL,
		Amount:      settings.SubscriptionAmount,
		Currency:    settings.SubscriptionCurrency,
	})
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create checkout session")
		apiutil.WriteError(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Could not start checkout. Please try again")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("Checkout session created")
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"url": url})
}
