// internal/api/fields/handlers.go
package fields

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/api/apiutil"
	appdb "github.com/tcalvo/mejenga/internal/db"
)

var (
	queries     *appdb.Queries
	queriesOnce sync.Once
)

const (
	fieldsQueryTimeout = 5 * time.Second

	defaultPageLimit = 50
	maxPageLimit     = 100

	// Costa Rican numbers unless the caller supplies a country prefix.
	defaultPhoneRegion = "CR"
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *appdb.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

type fieldResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	HourlyRate   int64  `json:"hourly_rate"`
}

func toFieldResponse(f appdb.Field) fieldResponse {
	return fieldResponse{
		ID:           f.ID,
		Name:         f.Name,
		Address:      f.Address.String,
		ContactPhone: f.ContactPhone.String,
		HourlyRate:   f.HourlyRate,
	}
}

// GET /api/v1/fields
func HandleListFields(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	limit, offset := apiutil.ParsePagination(
		r.URL.Query().Get("limit"), r.URL.Query().Get("offset"),
		defaultPageLimit, maxPageLimit)

	ctx, cancel := context.WithTimeout(r.Context(), fieldsQueryTimeout)
	defer cancel()

	fields, err := queries.ListActiveFields(ctx, appdb.ListActiveFieldsParams{Limit: limit, Offset: offset})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list fields")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}
	total, err := queries.CountActiveFields(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count fields")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}

	responses := make([]fieldResponse, 0, len(fields))
	for _, f := range fields {
		responses = append(responses, toFieldResponse(f))
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"fields": responses,
		"total":  total,
	})
}

type createFieldRequest struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactPhone string `json:"contact_phone"`
	HourlyRate   int64  `json:"hourly_rate"`
}

// POST /api/v1/fields
func HandleCreateField(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "SERVER_ERROR", "Something went wrong. Please try again")
		return
	}

	var req createFieldRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "name is required")
		return
	}
	if req.HourlyRate <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "hourly_rate must be a positive amount")
		return
	}

	contactPhone, ok := normalizePhone(req.ContactPhone)
	if !ok {
		apiutil.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", "contact_phone is not a valid phone number")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fieldsQueryTimeout)
	defer cancel()

	field, err := queries.CreateField(ctx, appdb.CreateFieldParams{
		OwnerID:      user.ID,
		Name:         req.Name,
		Address:      toNullString(strings.TrimSpace(req.Address)),
		ContactPhone: toNullString(contactPhone),
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create field")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Please try again")
		return
	}

	logger.Info().Int64("field_id", field.ID).Int64("owner_id", user.ID).Msg("Field created")
	apiutil.WriteJSON(w, http.StatusCreated, map[string]any{"field": toFieldResponse(field)})
}

// normalizePhone validates and formats an optional phone number in E.164.
func normalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	parsed, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
