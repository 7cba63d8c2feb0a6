// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/api/apiutil"
	"github.com/tcalvo/mejenga/internal/api/authn"
	appdb "github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/email"
	"github.com/tcalvo/mejenga/internal/ledger"
	"github.com/tcalvo/mejenga/internal/payments"
	"github.com/tcalvo/mejenga/internal/ratelimit"
)

var (
	queries  *appdb.Queries
	admitter *ledger.Ledger
	provider payments.Provider
	sender   email.EmailSender
	limiter  *ratelimit.Limiter
	initOnce sync.Once
)

const (
	reservationsQueryTimeout = 5 * time.Second
	paymentTimeout           = 10 * time.Second

	defaultPageLimit = 20
	maxPageLimit     = 100

	trustProxyHeaders = false
)

// InitHandlers must be called during server startup before handling requests.
// provider, emailSender and rateLimiter are optional collaborators; nil
// disables the corresponding side effect.
func InitHandlers(q *appdb.Queries, l *ledger.Ledger, paymentProvider payments.Provider, emailSender email.EmailSender, rateLimiter *ratelimit.Limiter) {
	if q == nil || l == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		admitter = l
		provider = paymentProvider
		sender = emailSender
		limiter = rateLimiter
	})
}

type createReservationRequest struct {
	FieldID   int64  `json:"field_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	GameID    *int64 `json:"game_id,omitempty"`
}

type reservationResponse struct {
	ID            int64  `json:"id"`
	FieldID       int64  `json:"field_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentStatus string `json:"payment_status"`
	GameID        *int64 `json:"game_id,omitempty"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

func toReservationResponse(res appdb.Reservation) reservationResponse {
	response := reservationResponse{
		ID:            res.ID,
		FieldID:       res.FieldID,
		Date:          res.ReservationDate,
		StartTime:     apiutil.FormatClock(res.StartMin),
		EndTime:       apiutil.FormatClock(res.EndMin),
		TotalAmount:   res.TotalAmount,
		PaymentStatus: res.PaymentStatus,
	}
	if res.GameID.Valid {
		gameID := res.GameID.Int64
		response.GameID = &gameID
	}
	return response
}

// POST /api/v1/reservations
func HandleCreateReservation(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if admitter == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	if limiter != nil {
		ip := ratelimit.GetClientIP(r, trustProxyHeaders)
		if result := limiter.CheckBooking(user.ID, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(user.ID, ip, result.Reason)
			apiutil.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many booking attempts. Please wait and try again")
			return
		}
		limiter.RecordBooking(user.ID, ip)
	}

	var req createReservationRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	startMin, err := apiutil.ParseClock(req.StartTime)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "start_time "+err.Error())
		return
	}
	endMin, err := apiutil.ParseClock(req.EndTime)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "end_time "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	occupation, err := admitter.RequestOccupation(ctx, ledger.OccupationRequest{
		FieldID:      req.FieldID,
		Date:         req.Date,
		StartMin:     startMin,
		EndMin:       endMin,
		Kind:         ledger.KindReservation,
		RequesterID:  user.ID,
		LinkedGameID: req.GameID,
	})
	if err != nil {
		apiutil.WriteLedgerError(w, r, err)
		return
	}

	response := toReservationResponse(*occupation.Reservation)
	response.ClientSecret = attachPaymentIntent(r.Context(), user, occupation)

	if sender != nil && queries != nil {
		confirmation := email.BuildReservationConfirmation(email.ReservationDetails{
			FieldName:   fieldName(ctx, occupation.FieldID),
			Date:        occupation.Date,
			TimeRange:   email.FormatMinuteRange(occupation.StartMin, occupation.EndMin),
			TotalAmount: occupation.TotalAmount,
		})
		email.SendConfirmationEmail(ctx, queries, sender, user.ID, confirmation, logger)
	}

	apiutil.WriteJSON(w, http.StatusCreated, map[string]any{"reservation": response})
}

// attachPaymentIntent creates a payment intent for the pending reservation
// and stores its ID. A payment setup failure leaves the reservation pending;
// the expiry sweep releases it if the client never retries payment.
func attachPaymentIntent(ctx context.Context, user *authn.User, occupation ledger.Occupation) string {
	if provider == nil || queries == nil {
		return ""
	}
	logger := log.Ctx(ctx)

	payCtx, cancel := context.WithTimeout(ctx, paymentTimeout)
	defer cancel()

	customerID := user.StripeID
	if customerID == "" {
		created, err := provider.CreateCustomer(payCtx, user.Email, user.Name)
		if err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create payment customer")
			return ""
		}
		customerID = created
		if err := queries.SetUserStripeID(payCtx, appdb.SetUserStripeIDParams{StripeID: customerID, ID: user.ID}); err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to store payment customer id")
		}
	}

	intent, err := provider.CreateReservationIntent(payCtx, payments.IntentInput{
		CustomerID:  customerID,
		Amount:      occupation.TotalAmount,
		Description: "Field reservation " + occupation.Date,
		Metadata: map[string]string{
			"reservation_id": strconv.FormatInt(occupation.ID, 10),
			"field_id":       strconv.FormatInt(occupation.FieldID, 10),
		},
	})
	if err != nil {
		logger.Error().Err(err).Int64("reservation_id", occupation.ID).Msg("Failed to create payment intent")
		return ""
	}

	if err := queries.SetReservationPaymentIntent(payCtx, appdb.SetReservationPaymentIntentParams{
		PaymentIntentID: intent.ID,
		ID:              occupation.ID,
	}); err != nil {
		logger.Error().Err(err).Int64("reservation_id", occupation.ID).Msg("Failed to store payment intent id")
	}
	return intent.ClientSecret
}

// GET /api/v1/reservations
func HandleListMyReservations(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queries == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	limit, offset := apiutil.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"),
		defaultPageLimit, maxPageLimit)

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	reservations, err := queries.ListReservationsByUser(ctx, appdb.ListReservationsByUserParams{
		UserID: user.ID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list reservations")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}

	responses := make([]reservationResponse, 0, len(reservations))
	for _, res := range reservations {
		responses = append(responses, toReservationResponse(res))
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"reservations": responses})
}

// POST /api/v1/reservations/{id}/cancel
func HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queries == nil {
		logger.Error().Msg("Reservation handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	id, ok := apiutil.ParseID(r.PathValue("id"))
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "reservation id must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationsQueryTimeout)
	defer cancel()

	affected, err := queries.CancelReservation(ctx, appdb.CancelReservationParams{ID: id, UserID: user.ID})
	if err != nil {
		logger.Error().Err(err).Int64("reservation_id", id).Msg("Failed to cancel reservation")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}
	if affected == 0 {
		apiutil.WriteError(w, http.StatusNotFound, "RESERVATION_NOT_FOUND", "Reservation not found or already finished")
		return
	}

	logger.Info().Int64("reservation_id", id).Int64("user_id", user.ID).Msg("Reservation cancelled")
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func fieldName(ctx context.Context, fieldID int64) string {
	field, err := queries.GetActiveField(ctx, fieldID)
	if err != nil {
		return ""
	}
	return field.Name
}
