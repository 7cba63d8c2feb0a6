package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceNotFound is returned when the requested field does not
	// exist or is inactive.
	ErrResourceNotFound = errors.New("field not found or inactive")

	// ErrInvalidAmount is returned when a reservation's computed total is
	// not positive, which means the field's rate is misconfigured.
	ErrInvalidAmount = errors.New("invalid reservation amount")

	ErrGameNotFound         = errors.New("game not found")
	ErrGameNotOpen          = errors.New("game is no longer accepting players")
	ErrGameExpiredOrStarted = errors.New("game has already started or passed")
	ErrGameFull             = errors.New("game is full")
	ErrAlreadyJoined        = errors.New("already participating in this game")
)

// ValidationError reports malformed or out-of-range input. It is the caller's
// fault and not retryable as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ConflictError reports that the requested interval overlaps an occupation
// that currently holds the slot. Kind identifies what is holding it; a
// reservation blocks a game and vice versa.
type ConflictError struct {
	Kind Kind
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("time slot already held by a %s", e.Kind)
}

// StorageError wraps a persistent-store failure. The whole call is atomic and
// has no side effect on failure, so the caller may safely retry.
type StorageError struct {
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}
