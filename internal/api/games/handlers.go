// internal/api/games/handlers.go
package games

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/api/apiutil"
	appdb "github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/email"
	"github.com/tcalvo/mejenga/internal/ledger"
	"github.com/tcalvo/mejenga/internal/ratelimit"
)

var (
	queries  *appdb.Queries
	admitter *ledger.Ledger
	sender   email.EmailSender
	limiter  *ratelimit.Limiter
	initOnce sync.Once
)

const (
	gamesQueryTimeout = 5 * time.Second

	defaultPageLimit = 20
	maxPageLimit     = 100

	trustProxyHeaders = false

	dateLayout = "2006-01-02"
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *appdb.Queries, l *ledger.Ledger, emailSender email.EmailSender, rateLimiter *ratelimit.Limiter) {
	if q == nil || l == nil {
		return
	}
	initOnce.Do(func() {
		queries = q
		admitter = l
		sender = emailSender
		limiter = rateLimiter
	})
}

type createGameRequest struct {
	FieldID        int64  `json:"field_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	MaxPlayers     int64  `json:"max_players"`
	PricePerPlayer *int64 `json:"price_per_player,omitempty"`
	GameType       string `json:"game_type"`
}

type gameResponse struct {
	ID             int64  `json:"id"`
	FieldID        int64  `json:"field_id"`
	OrganizerID    int64  `json:"organizer_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	MaxPlayers     int64  `json:"max_players"`
	CurrentPlayers int64  `json:"current_players"`
	PricePerPlayer *int64 `json:"price_per_player,omitempty"`
	GameType       string `json:"game_type"`
	Status         string `json:"status"`
}

func toGameResponse(g appdb.Game) gameResponse {
	response := gameResponse{
		ID:             g.ID,
		FieldID:        g.FieldID,
		OrganizerID:    g.OrganizerID,
		Title:          g.Title,
		Description:    g.Description.String,
		Date:           g.GameDate,
		StartTime:      apiutil.FormatClock(g.StartMin),
		EndTime:        apiutil.FormatClock(g.EndMin),
		MaxPlayers:     g.MaxPlayers,
		CurrentPlayers: g.CurrentPlayers,
		GameType:       g.GameType,
		Status:         g.Status,
	}
	if g.PricePerPlayer.Valid {
		price := g.PricePerPlayer.Int64
		response.PricePerPlayer = &price
	}
	return response
}

// POST /api/v1/games
func HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if admitter == nil {
		logger.Error().Msg("Game handlers not initialized")
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

	var req createGameRequest
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

	ctx, cancel := context.WithTimeout(r.Context(), gamesQueryTimeout)
	defer cancel()

	occupation, err := admitter.RequestOccupation(ctx, ledger.OccupationRequest{
		FieldID:     req.FieldID,
		Date:        req.Date,
		StartMin:    startMin,
		EndMin:      endMin,
		Kind:        ledger.KindGame,
		RequesterID: user.ID,
		Game: &ledger.GameDetails{
			Title:          req.Title,
			Description:    req.Description,
			MaxPlayers:     req.MaxPlayers,
			PricePerPlayer: req.PricePerPlayer,
			GameType:       req.GameType,
		},
	})
	if err != nil {
		apiutil.WriteLedgerError(w, r, err)
		return
	}

	// The organizer always takes the first spot of their own game.
	record, err := admitter.AdmitParticipant(ctx, occupation.ID, user.ID)
	if err != nil {
		logger.Error().Err(err).Int64("game_id", occupation.ID).Msg("Failed to seat organizer in new game")
		apiutil.WriteLedgerError(w, r, err)
		return
	}

	game := *occupation.Game
	game.CurrentPlayers = 1
	game.Status = record.GameStatus

	logger.Info().Int64("game_id", game.ID).Int64("organizer_id", user.ID).Msg("Game created")
	apiutil.WriteJSON(w, http.StatusCreated, map[string]any{"game": toGameResponse(game)})
}

// GET /api/v1/games
func HandleListGames(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Game handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	limit, offset := apiutil.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"),
		defaultPageLimit, maxPageLimit)

	now := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), gamesQueryTimeout)
	defer cancel()

	games, err := queries.ListUpcomingGames(ctx, appdb.ListUpcomingGamesParams{
		Date:     now.Format(dateLayout),
		StartMin: int64(now.Hour()*60 + now.Minute()),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list games")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}

	responses := make([]gameResponse, 0, len(games))
	for _, g := range games {
		responses = append(responses, toGameResponse(g))
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"games": responses})
}

// POST /api/v1/games/{id}/join
func HandleJoinGame(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if admitter == nil {
		logger.Error().Msg("Game handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	gameID, ok := apiutil.ParseID(r.PathValue("id"))
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "game id must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gamesQueryTimeout)
	defer cancel()

	record, err := admitter.AdmitParticipant(ctx, gameID, user.ID)
	if err != nil {
		apiutil.WriteLedgerError(w, r, err)
		return
	}

	if sender != nil && queries != nil {
		if game, err := queries.GetGameByID(ctx, gameID); err == nil {
			confirmation := email.BuildGameJoinConfirmation(email.GameDetails{
				FieldName:      fieldName(ctx, game.FieldID),
				Date:           game.GameDate,
				TimeRange:      email.FormatMinuteRange(game.StartMin, game.EndMin),
				SpotsRemaining: record.SpotsRemaining,
			})
			email.SendConfirmationEmail(ctx, queries, sender, user.ID, confirmation, logger)
		}
	}

	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"joined":          true,
		"game_id":         record.GameID,
		"game_status":     record.GameStatus,
		"spots_remaining": record.SpotsRemaining,
	})
}

func fieldName(ctx context.Context, fieldID int64) string {
	field, err := queries.GetActiveField(ctx, fieldID)
	if err != nil {
		return ""
	}
	return field.Name
}
