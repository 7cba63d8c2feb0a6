// Package ledger owns the set of slot-holding occupations of a field and
// decides, atomically, whether a new occupation or game join may be admitted.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	appdb "github.com/tcalvo/mejenga/internal/db"
)

// Kind discriminates what occupies a field for an interval.
type Kind string

const (
	KindReservation Kind = "reservation"
	KindGame        Kind = "game"
)

const (
	ReservationStatusPending   = "pending"
	ReservationStatusPaid      = "paid"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusFailed    = "failed"

	GameStatusOpen      = "open"
	GameStatusFull      = "full"
	GameStatusCancelled = "cancelled"
	GameStatusCompleted = "completed"
)

const (
	defaultMinDuration = 30 * time.Minute
	defaultMaxDuration = 8 * time.Hour

	minPlayers    = 2
	maxPlayers    = 50
	maxGamePrice  = 100000
	minutesPerDay = 24 * 60

	dateLayout = "2006-01-02"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Ledger admits occupation requests against the store. All reads and writes
// of one call happen inside a single immediate transaction, so of two
// concurrent requests for overlapping intervals at most one is admitted.
type Ledger struct {
	store       *appdb.DB
	clock       Clock
	minDuration time.Duration
	maxDuration time.Duration
}

type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithDurationBounds overrides the allowed occupation duration range.
func WithDurationBounds(minDuration, maxDuration time.Duration) Option {
	return func(l *Ledger) {
		if minDuration > 0 && maxDuration >= minDuration {
			l.minDuration = minDuration
			l.maxDuration = maxDuration
		}
	}
}

func New(store *appdb.DB, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger requires a database")
	}
	l := &Ledger{
		store:       store,
		clock:       realClock{},
		minDuration: defaultMinDuration,
		maxDuration: defaultMaxDuration,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// GameDetails carries the game row attributes that ride along with a
// kind=game occupation request.
type GameDetails struct {
	Title          string
	Description    string
	MaxPlayers     int64
	PricePerPlayer *int64
	GameType       string
}

// OccupationRequest asks for a half-open [StartMin, EndMin) slot on a field
// for a calendar date. RequesterID is the authenticated user making the
// request; the ledger never reads identity from ambient state.
type OccupationRequest struct {
	FieldID     int64
	Date        string
	StartMin    int64
	EndMin      int64
	Kind        Kind
	RequesterID int64

	// LinkedGameID ties a reservation to an existing game, optional.
	LinkedGameID *int64

	// Game is required when Kind is KindGame.
	Game *GameDetails
}

// Occupation is an admitted claim. Exactly one of Reservation or Game is set,
// matching Kind.
type Occupation struct {
	ID          int64
	Kind        Kind
	FieldID     int64
	Date        string
	StartMin    int64
	EndMin      int64
	Status      string
	TotalAmount int64

	Reservation *appdb.Reservation
	Game        *appdb.Game
}

// ParticipantRecord reports a successful game join.
type ParticipantRecord struct {
	ID             int64
	GameID         int64
	UserID         int64
	JoinedAt       time.Time
	GameStatus     string
	SpotsRemaining int64
}

// RequestOccupation validates the request, then atomically checks every
// slot-holding occupation on (field, date) across both kinds for overlap and
// inserts the new occupation if the slot is free. Reservations are priced at
// hourlyRate x durationHours before returning.
func (l *Ledger) RequestOccupation(ctx context.Context, req OccupationRequest) (Occupation, error) {
	if err := l.validateRequest(req); err != nil {
		return Occupation{}, err
	}

	var occupation Occupation
	err := l.store.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		field, err := q.GetActiveField(ctx, req.FieldID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrResourceNotFound
			}
			return err
		}

		occupations, err := q.ListHoldingOccupations(ctx, appdb.ListHoldingOccupationsParams{
			FieldID: req.FieldID,
			Date:    req.Date,
		})
		if err != nil {
			return err
		}
		for _, existing := range occupations {
			if existing.StartMin < req.EndMin && req.StartMin < existing.EndMin {
				return ConflictError{Kind: Kind(existing.Kind)}
			}
		}

		switch req.Kind {
		case KindReservation:
			totalAmount := field.HourlyRate * (req.EndMin - req.StartMin) / 60
			if totalAmount <= 0 {
				return ErrInvalidAmount
			}
			created, err := q.CreateReservation(ctx, appdb.CreateReservationParams{
				FieldID:         req.FieldID,
				UserID:          req.RequesterID,
				GameID:          toNullInt64(req.LinkedGameID),
				ReservationDate: req.Date,
				StartMin:        req.StartMin,
				EndMin:          req.EndMin,
				TotalAmount:     totalAmount,
			})
			if err != nil {
				return err
			}
			occupation = Occupation{
				ID:          created.ID,
				Kind:        KindReservation,
				FieldID:     created.FieldID,
				Date:        created.ReservationDate,
				StartMin:    created.StartMin,
				EndMin:      created.EndMin,
				Status:      created.PaymentStatus,
				TotalAmount: created.TotalAmount,
				Reservation: &created,
			}

		case KindGame:
			details := req.Game
			gameType := details.GameType
			if gameType == "" {
				gameType = "casual"
			}
			created, err := q.CreateGame(ctx, appdb.CreateGameParams{
				FieldID:        req.FieldID,
				OrganizerID:    req.RequesterID,
				Title:          details.Title,
				Description:    toNullString(details.Description),
				GameDate:       req.Date,
				StartMin:       req.StartMin,
				EndMin:         req.EndMin,
				MaxPlayers:     details.MaxPlayers,
				PricePerPlayer: toNullInt64(details.PricePerPlayer),
				GameType:       gameType,
			})
			if err != nil {
				return err
			}
			occupation = Occupation{
				ID:       created.ID,
				Kind:     KindGame,
				FieldID:  created.FieldID,
				Date:     created.GameDate,
				StartMin: created.StartMin,
				EndMin:   created.EndMin,
				Status:   created.Status,
				Game:     &created,
			}
		}
		return nil
	})
	if err != nil {
		return Occupation{}, classify(err)
	}

	log.Ctx(ctx).Info().
		Str("kind", string(occupation.Kind)).
		Int64("field_id", occupation.FieldID).
		Str("date", occupation.Date).
		Int64("start_min", occupation.StartMin).
		Int64("end_min", occupation.EndMin).
		Int64("occupation_id", occupation.ID).
		Msg("Occupation admitted")
	return occupation, nil
}

// AdmitParticipant adds userID to an open game. The status check, duplicate
// check, capacity check, insert, and the open-to-full flip all happen in one
// transaction, so two concurrent joins cannot both take the last spot.
func (l *Ledger) AdmitParticipant(ctx context.Context, gameID, userID int64) (ParticipantRecord, error) {
	if gameID <= 0 {
		return ParticipantRecord{}, ValidationError{Field: "game_id", Reason: "must be a positive integer"}
	}
	if userID <= 0 {
		return ParticipantRecord{}, ValidationError{Field: "user_id", Reason: "must be a positive integer"}
	}

	var record ParticipantRecord
	err := l.store.RunInTx(ctx, func(txdb *appdb.DB) error {
		q := txdb.Queries

		game, err := q.GetGameByID(ctx, gameID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGameNotFound
			}
			return err
		}

		if game.Status != GameStatusOpen {
			return ErrGameNotOpen
		}

		startAt, err := occupationStart(game.GameDate, game.StartMin)
		if err != nil {
			return err
		}
		if !startAt.After(l.clock.Now()) {
			return ErrGameExpiredOrStarted
		}

		joined, err := q.GameParticipantExists(ctx, appdb.GameParticipantExistsParams{
			GameID: gameID,
			UserID: userID,
		})
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}

		count, err := q.CountGameParticipants(ctx, gameID)
		if err != nil {
			return err
		}
		if count >= game.MaxPlayers {
			return ErrGameFull
		}

		participant, err := q.AddGameParticipant(ctx, appdb.AddGameParticipantParams{
			GameID: gameID,
			UserID: userID,
		})
		if err != nil {
			return err
		}

		newCount := count + 1
		status := GameStatusOpen
		if newCount >= game.MaxPlayers {
			status = GameStatusFull
		}
		if err := q.UpdateGameOnJoin(ctx, appdb.UpdateGameOnJoinParams{
			CurrentPlayers: newCount,
			Status:         status,
			ID:             gameID,
		}); err != nil {
			return err
		}

		record = ParticipantRecord{
			ID:             participant.ID,
			GameID:         gameID,
			UserID:         userID,
			JoinedAt:       participant.JoinedAt,
			GameStatus:     status,
			SpotsRemaining: game.MaxPlayers - newCount,
		}
		return nil
	})
	if err != nil {
		return ParticipantRecord{}, classify(err)
	}

	log.Ctx(ctx).Info().
		Int64("game_id", record.GameID).
		Int64("user_id", record.UserID).
		Str("game_status", record.GameStatus).
		Int64("spots_remaining", record.SpotsRemaining).
		Msg("Participant admitted")
	return record, nil
}

func (l *Ledger) validateRequest(req OccupationRequest) error {
	if req.FieldID <= 0 {
		return ValidationError{Field: "field_id", Reason: "must be a positive integer"}
	}
	if req.RequesterID <= 0 {
		return ValidationError{Field: "requester_id", Reason: "must be a positive integer"}
	}
	if req.Kind != KindReservation && req.Kind != KindGame {
		return ValidationError{Field: "kind", Reason: "must be reservation or game"}
	}
	if req.StartMin < 0 || req.StartMin >= minutesPerDay {
		return ValidationError{Field: "start_time", Reason: "must fall within the day"}
	}
	if req.EndMin <= 0 || req.EndMin > minutesPerDay {
		return ValidationError{Field: "end_time", Reason: "must fall within the day"}
	}
	if req.EndMin <= req.StartMin {
		return ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	duration := time.Duration(req.EndMin-req.StartMin) * time.Minute
	if duration < l.minDuration {
		return ValidationError{Field: "end_time", Reason: "duration is below the minimum"}
	}
	if duration > l.maxDuration {
		return ValidationError{Field: "end_time", Reason: "duration exceeds the maximum"}
	}

	startAt, err := occupationStart(req.Date, req.StartMin)
	if err != nil {
		return err
	}
	if !startAt.After(l.clock.Now()) {
		return ValidationError{Field: "start_time", Reason: "must be in the future"}
	}

	if req.Kind == KindGame {
		details := req.Game
		if details == nil {
			return ValidationError{Field: "game", Reason: "details are required"}
		}
		if details.Title == "" {
			return ValidationError{Field: "title", Reason: "is required"}
		}
		if details.MaxPlayers < minPlayers || details.MaxPlayers > maxPlayers {
			return ValidationError{Field: "max_players", Reason: "must be between 2 and 50"}
		}
		if details.PricePerPlayer != nil && (*details.PricePerPlayer < 0 || *details.PricePerPlayer > maxGamePrice) {
			return ValidationError{Field: "price_per_player", Reason: "must be between 0 and 100000"}
		}
	}
	if req.Kind == KindReservation && req.LinkedGameID != nil && *req.LinkedGameID <= 0 {
		return ValidationError{Field: "game_id", Reason: "must be a positive integer"}
	}

	return nil
}

// occupationStart resolves date + minutes-of-day to an instant in server
// local time.
func occupationStart(date string, startMin int64) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return day.Add(time.Duration(startMin) * time.Minute), nil
}

// classify passes domain rejections through untouched and wraps everything
// else as a retryable storage failure.
func classify(err error) error {
	var validationErr ValidationError
	var conflictErr ConflictError
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &conflictErr),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrGameNotFound),
		errors.Is(err, ErrGameNotOpen),
		errors.Is(err, ErrGameExpiredOrStarted),
		errors.Is(err, ErrGameFull),
		errors.Is(err, ErrAlreadyJoined):
		return err
	default:
		return StorageError{Err: err}
	}
}

func toNullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
