package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appdb "github.com/tcalvo/mejenga/internal/db"
)

const confirmationEmailTimeout = 5 * time.Second

// SendConfirmationEmail looks up the user's address and delivers the email on
// a background goroutine. Failures are logged, never surfaced to the caller.
func SendConfirmationEmail(ctx context.Context, q *appdb.Queries, sender EmailSender, userID int64, confirmation ConfirmationEmail, logger *zerolog.Logger) {
	if sender == nil || q == nil {
		return
	}
	if confirmation.Subject == "" || confirmation.Body == "" {
		return
	}

	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to load user for confirmation email")
		}
		return
	}
	recipient := strings.TrimSpace(user.Email)
	if recipient == "" {
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), confirmationEmailTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, recipient, confirmation.Subject, confirmation.Body); err != nil && logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("Failed to send confirmation email")
		}
	}()
}
