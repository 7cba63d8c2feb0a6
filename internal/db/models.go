package db

import (
	"database/sql"
	"time"
)

type User struct {
	ID                 int64
	Name               string
	Email              string
	APIToken           sql.NullString
	StripeID           sql.NullString
	SubscriptionStatus sql.NullString
	CreatedAt          time.Time
}

type Field struct {
	ID           int64
	OwnerID      int64
	Name         string
	Address      sql.NullString
	ContactPhone sql.NullString
	HourlyRate   int64
	IsActive     bool
	CreatedAt    time.Time
}

// Reservation and Game times are minutes of day on a YYYY-MM-DD date.
type Reservation struct {
	ID                    int64
	FieldID               int64
	UserID                int64
	GameID                sql.NullInt64
	ReservationDate       string
	StartMin              int64
	EndMin                int64
	TotalAmount           int64
	PaymentStatus         string
	StripePaymentIntentID sql.NullString
	CreatedAt             time.Time
}

type Game struct {
	ID             int64
	FieldID        int64
	OrganizerID    int64
	Title          string
	Description    sql.NullString
	GameDate       string
	StartMin       int64
	EndMin         int64
	MaxPlayers     int64
	PricePerPlayer sql.NullInt64
	GameType       string
	CurrentPlayers int64
	Status         string
	CreatedAt      time.Time
}

type GameParticipant struct {
	ID       int64
	GameID   int64
	UserID   int64
	JoinedAt time.Time
}

// HoldingOccupation is one row of the unified slot-holding view across
// reservations and games.
type HoldingOccupation struct {
	Kind     string
	StartMin int64
	EndMin   int64
}
