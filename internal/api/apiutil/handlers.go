package apiutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/api/authn"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Code    string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes the {"error", "code"} response shape every route shares.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]string{
		"error": message,
		"code":  code,
	}
	if err := WriteJSON(w, status, payload); err != nil {
		log.Error().Err(err).Str("code", code).Msg("Failed to write error response")
	}
}

// RequireUser returns the authenticated user or writes a 401 and reports
// false.
func RequireUser(w http.ResponseWriter, r *http.Request) (*authn.User, bool) {
	user := authn.UserFromContext(r.Context())
	if user == nil {
		log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Request rejected: unauthenticated")
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "You must be logged in")
		return nil, false
	}
	return user, true
}
