package apiutil

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/ledger"
)

// WriteLedgerError maps a ledger rejection to the response code and HTTP
// status the routes expose. Unknown errors are logged and reported as a
// generic server error.
func WriteLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr ledger.ValidationError
	var conflictErr ledger.ConflictError
	var storageErr ledger.StorageError

	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", validationErr.Error())
	case errors.As(err, &conflictErr):
		if conflictErr.Kind == ledger.KindGame {
			WriteError(w, http.StatusConflict, "GAME_CONFLICT", "There is already a game scheduled during this time")
			return
		}
		WriteError(w, http.StatusConflict, "TIME_CONFLICT", "This time slot is already reserved")
	case errors.Is(err, ledger.ErrResourceNotFound):
		WriteError(w, http.StatusNotFound, "FIELD_NOT_FOUND", "Soccer field not found or inactive")
	case errors.Is(err, ledger.ErrInvalidAmount):
		WriteError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Invalid reservation amount")
	case errors.Is(err, ledger.ErrGameNotFound):
		WriteError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
	case errors.Is(err, ledger.ErrGameNotOpen):
		WriteError(w, http.StatusConflict, "GAME_NOT_OPEN", "This game is no longer accepting players")
	case errors.Is(err, ledger.ErrGameExpiredOrStarted):
		WriteError(w, http.StatusConflict, "GAME_STARTED", "Cannot join a game that has already started or passed")
	case errors.Is(err, ledger.ErrGameFull):
		WriteError(w, http.StatusConflict, "GAME_FULL", "This game is full")
	case errors.Is(err, ledger.ErrAlreadyJoined):
		WriteError(w, http.StatusConflict, "ALREADY_JOINED", "You are already participating in this game")
	case errors.As(err, &storageErr):
		log.Ctx(r.Context()).Error().Err(err).Msg("Storage unavailable")
		WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("Unhandled ledger error")
		WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
	}
}
