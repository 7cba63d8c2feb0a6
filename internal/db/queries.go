package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries run the same
// inside and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getUserByID = `
SELECT id, name, email, api_token, stripe_id, subscription_status, created_at
FROM users
WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.APIToken, &u.StripeID, &u.SubscriptionStatus, &u.CreatedAt)
	return u, err
}

const getUserByAPIToken = `
SELECT id, name, email, api_token, stripe_id, subscription_status, created_at
FROM users
WHERE api_token = ?
`

func (q *Queries) GetUserByAPIToken(ctx context.Context, token string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByAPIToken, token)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.APIToken, &u.StripeID, &u.SubscriptionStatus, &u.CreatedAt)
	return u, err
}

type SetUserStripeIDParams struct {
	StripeID string
	ID       int64
}

const setUserStripeID = `
UPDATE users
SET stripe_id = ?
WHERE id = ?
`

func (q *Queries) SetUserStripeID(ctx context.Context, arg SetUserStripeIDParams) error {
	_, err := q.db.ExecContext(ctx, setUserStripeID, arg.StripeID, arg.ID)
	return err
}

const getActiveField = `
SELECT id, owner_id, name, address, contact_phone, hourly_rate, is_active, created_at
FROM fields
WHERE id = ? AND is_active = 1
`

func (q *Queries) GetActiveField(ctx context.Context, id int64) (Field, error) {
	row := q.db.QueryRowContext(ctx, getActiveField, id)
	var f Field
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Address, &f.ContactPhone, &f.HourlyRate, &f.IsActive, &f.CreatedAt)
	return f, err
}

type ListActiveFieldsParams struct {
	Limit  int64
	Offset int64
}

const listActiveFields = `
SELECT id, owner_id, name, address, contact_phone, hourly_rate, is_active, created_at
FROM fields
WHERE is_active = 1
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`

func (q *Queries) ListActiveFields(ctx context.Context, arg ListActiveFieldsParams) ([]Field, error) {
	rows, err := q.db.QueryContext(ctx, listActiveFields, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Address, &f.ContactPhone, &f.HourlyRate, &f.IsActive, &f.CreatedAt); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

const countActiveFields = `
SELECT COUNT(*) FROM fields WHERE is_active = 1
`

func (q *Queries) CountActiveFields(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countActiveFields).Scan(&count)
	return count, err
}

type CreateFieldParams struct {
	OwnerID      int64
	Name         string
	Address      sql.NullString
	ContactPhone sql.NullString
	HourlyRate   int64
}

const createField = `
INSERT INTO fields (owner_id, name, address, contact_phone, hourly_rate)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateField(ctx context.Context, arg CreateFieldParams) (Field, error) {
	result, err := q.db.ExecContext(ctx, createField, arg.OwnerID, arg.Name, arg.Address, arg.ContactPhone, arg.HourlyRate)
	if err != nil {
		return Field{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Field{}, err
	}
	row := q.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, address, contact_phone, hourly_rate, is_active, created_at
FROM fields WHERE id = ?`, id)
	var f Field
	err = row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Address, &f.ContactPhone, &f.HourlyRate, &f.IsActive, &f.CreatedAt)
	return f, err
}

type ListHoldingOccupationsParams struct {
	FieldID int64
	Date    string
}

// Reservations in pending/paid and games in open/full all hold their slot;
// a reservation blocks a game on the same field and date and vice versa.
const listHoldingOccupations = `
SELECT 'reservation' AS kind, start_min, end_min
FROM reservations
WHERE field_id = ? AND reservation_date = ? AND payment_status IN ('pending', 'paid')
UNION ALL
SELECT 'game' AS kind, start_min, end_min
FROM games
WHERE field_id = ? AND game_date = ? AND status IN ('open', 'full')
`

func (q *Queries) ListHoldingOccupations(ctx context.Context, arg ListHoldingOccupationsParams) ([]HoldingOccupation, error) {
	rows, err := q.db.QueryContext(ctx, listHoldingOccupations, arg.FieldID, arg.Date, arg.FieldID, arg.Date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupations []HoldingOccupation
	for rows.Next() {
		var o HoldingOccupation
		if err := rows.Scan(&o.Kind, &o.StartMin, &o.EndMin); err != nil {
			return nil, err
		}
		occupations = append(occupations, o)
	}
	return occupations, rows.Err()
}

type CreateReservationParams struct {
	FieldID         int64
	UserID          int64
	GameID          sql.NullInt64
	ReservationDate string
	StartMin        int64
	EndMin          int64
	TotalAmount     int64
}

const createReservation = `
INSERT INTO reservations (field_id, user_id, game_id, reservation_date, start_min, end_min, total_amount, payment_status)
VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')
`

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	result, err := q.db.ExecContext(ctx, createReservation,
		arg.FieldID, arg.UserID, arg.GameID, arg.ReservationDate, arg.StartMin, arg.EndMin, arg.TotalAmount)
	if err != nil {
		return Reservation{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Reservation{}, err
	}
	return q.GetReservationByID(ctx, id)
}

const getReservationByID = `
SELECT id, field_id, user_id, game_id, reservation_date, start_min, end_min,
       total_amount, payment_status, stripe_payment_intent_id, created_at
FROM reservations
WHERE id = ?
`

func (q *Queries) GetReservationByID(ctx context.Context, id int64) (Reservation, error) {
	row := q.db.QueryRowContext(ctx, getReservationByID, id)
	var r Reservation
	err := row.Scan(&r.ID, &r.FieldID, &r.UserID, &r.GameID, &r.ReservationDate, &r.StartMin, &r.EndMin,
		&r.TotalAmount, &r.PaymentStatus, &r.StripePaymentIntentID, &r.CreatedAt)
	return r, err
}

type ListReservationsByUserParams struct {
	UserID int64
	Limit  int64
	Offset int64
}

const listReservationsByUser = `
SELECT id, field_id, user_id, game_id, reservation_date, start_min, end_min,
       total_amount, payment_status, stripe_payment_intent_id, created_at
FROM reservations
WHERE user_id = ?
ORDER BY reservation_date DESC, start_min DESC
LIMIT ? OFFSET ?
`

func (q *Queries) ListReservationsByUser(ctx context.Context, arg ListReservationsByUserParams) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx, listReservationsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.FieldID, &r.UserID, &r.GameID, &r.ReservationDate, &r.StartMin, &r.EndMin,
			&r.TotalAmount, &r.PaymentStatus, &r.StripePaymentIntentID, &r.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type SetReservationPaymentIntentParams struct {
	PaymentIntentID string
	ID              int64
}

const setReservationPaymentIntent = `
UPDATE reservations
SET stripe_payment_intent_id = ?
WHERE id = ?
`

func (q *Queries) SetReservationPaymentIntent(ctx context.Context, arg SetReservationPaymentIntentParams) error {
	_, err := q.db.ExecContext(ctx, setReservationPaymentIntent, arg.PaymentIntentID, arg.ID)
	return err
}

type CancelReservationParams struct {
	ID     int64
	UserID int64
}

const cancelReservation = `
UPDATE reservations
SET payment_status = 'cancelled'
WHERE id = ? AND user_id = ? AND payment_status IN ('pending', 'paid')
`

// CancelReservation transitions a holding reservation to cancelled and
// reports how many rows changed (zero when the reservation is missing, owned
// by someone else, or already terminal).
func (q *Queries) CancelReservation(ctx context.Context, arg CancelReservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelReservation, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markReservationFailed = `
UPDATE reservations
SET payment_status = 'failed'
WHERE id = ? AND payment_status = 'pending'
`

func (q *Queries) MarkReservationFailed(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markReservationFailed, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const expirePendingReservations = `
UPDATE reservations
SET payment_status = 'failed'
WHERE payment_status = 'pending' AND created_at < ?
`

// ExpirePendingReservations fails every pending reservation created before
// the cutoff, freeing the slots they held.
func (q *Queries) ExpirePendingReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, expirePendingReservations, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type CreateGameParams struct {
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
}

const createGame = `
INSERT INTO games (field_id, organizer_id, title, description, game_date, start_min, end_min,
                   max_players, price_per_player, game_type, current_players, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 'open')
`

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (Game, error) {
	result, err := q.db.ExecContext(ctx, createGame,
		arg.FieldID, arg.OrganizerID, arg.Title, arg.Description, arg.GameDate, arg.StartMin, arg.EndMin,
		arg.MaxPlayers, arg.PricePerPlayer, arg.GameType)
	if err != nil {
		return Game{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Game{}, err
	}
	return q.GetGameByID(ctx, id)
}

const getGameByID = `
SELECT id, field_id, organizer_id, title, description, game_date, start_min, end_min,
       max_players, price_per_player, game_type, current_players, status, created_at
FROM games
WHERE id = ?
`

func (q *Queries) GetGameByID(ctx context.Context, id int64) (Game, error) {
	row := q.db.QueryRowContext(ctx, getGameByID, id)
	var g Game
	err := row.Scan(&g.ID, &g.FieldID, &g.OrganizerID, &g.Title, &g.Description, &g.GameDate, &g.StartMin, &g.EndMin,
		&g.MaxPlayers, &g.PricePerPlayer, &g.GameType, &g.CurrentPlayers, &g.Status, &g.CreatedAt)
	return g, err
}

type ListUpcomingGamesParams struct {
	Date     string
	StartMin int64
	Limit    int64
	Offset   int64
}

const listUpcomingGames = `
SELECT id, field_id, organizer_id, title, description, game_date, start_min, end_min,
       max_players, price_per_player, game_type, current_players, status, created_at
FROM games
WHERE status = 'open' AND (game_date > ? OR (game_date = ? AND start_min > ?))
ORDER BY game_date ASC, start_min ASC
LIMIT ? OFFSET ?
`

func (q *Queries) ListUpcomingGames(ctx context.Context, arg ListUpcomingGamesParams) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listUpcomingGames, arg.Date, arg.Date, arg.StartMin, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.FieldID, &g.OrganizerID, &g.Title, &g.Description, &g.GameDate, &g.StartMin, &g.EndMin,
			&g.MaxPlayers, &g.PricePerPlayer, &g.GameType, &g.CurrentPlayers, &g.Status, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

const countGameParticipants = `
SELECT COUNT(*) FROM game_participants WHERE game_id = ?
`

func (q *Queries) CountGameParticipants(ctx context.Context, gameID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countGameParticipants, gameID).Scan(&count)
	return count, err
}

type GameParticipantExistsParams struct {
	GameID int64
	UserID int64
}

const gameParticipantExists = `
SELECT COUNT(*) FROM game_participants WHERE game_id = ? AND user_id = ?
`

func (q *Queries) GameParticipantExists(ctx context.Context, arg GameParticipantExistsParams) (bool, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, gameParticipantExists, arg.GameID, arg.UserID).Scan(&count)
	return count > 0, err
}

type AddGameParticipantParams struct {
	GameID int64
	UserID int64
}

const addGameParticipant = `
INSERT INTO game_participants (game_id, user_id)
VALUES (?, ?)
`

func (q *Queries) AddGameParticipant(ctx context.Context, arg AddGameParticipantParams) (GameParticipant, error) {
	result, err := q.db.ExecContext(ctx, addGameParticipant, arg.GameID, arg.UserID)
	if err != nil {
		return GameParticipant{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return GameParticipant{}, err
	}
	row := q.db.QueryRowContext(ctx, `
SELECT id, game_id, user_id, joined_at FROM game_participants WHERE id = ?`, id)
	var p GameParticipant
	err = row.Scan(&p.ID, &p.GameID, &p.UserID, &p.JoinedAt)
	return p, err
}

type UpdateGameOnJoinParams struct {
	CurrentPlayers int64
	Status         string
	ID             int64
}

const updateGameOnJoin = `
UPDATE games
SET current_players = ?, status = ?
WHERE id = ?
`

func (q *Queries) UpdateGameOnJoin(ctx context.Context, arg UpdateGameOnJoinParams) error {
	_, err := q.db.ExecContext(ctx, updateGameOnJoin, arg.CurrentPlayers, arg.Status, arg.ID)
	return err
}
