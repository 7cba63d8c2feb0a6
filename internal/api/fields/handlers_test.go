package fields_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tcalvo/mejenga/internal/api/authn"
	"github.com/tcalvo/mejenga/internal/api/fields"
	"github.com/tcalvo/mejenga/internal/db"
)

var (
	database *db.DB
	ownerID  int64
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "fields-handlers")
	if err != nil {
		fmt.Fprintln(os.Stderr, "temp dir:", err)
		os.Exit(1)
	}

	database, err = db.New(filepath.Join(dir, "test.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		os.Exit(1)
	}

	result, err := database.ExecContext(context.Background(),
		`INSERT INTO users (name, email) VALUES ('Owner', 'owner@example.com')`)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed user:", err)
		os.Exit(1)
	}
	ownerID, _ = result.LastInsertId()

	fields.InitHandlers(database.Queries)

	code := m.Run()
	database.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func doRequest(t *testing.T, asUser int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	if asUser > 0 {
		r = r.WithContext(authn.ContextWithUser(r.Context(), &authn.User{
			ID:    asUser,
			Name:  "Owner",
			Email: "owner@example.com",
		}))
	}
	w := httptest.NewRecorder()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/fields", fields.HandleListFields)
	mux.HandleFunc("POST /api/v1/fields", fields.HandleCreateField)
	mux.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return payload
}

func TestHandleCreateField(t *testing.T) {
	w := doRequest(t, ownerID, http.MethodPost, "/api/v1/fields", map[string]any{
		"name":          "Cancha La Sabana",
		"address":       "San José, La Sabana",
		"contact_phone": "8888-8888",
		"hourly_rate":   5000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	field := decodeBody(t, w)["field"].(map[string]any)
	if field["name"] != "Cancha La Sabana" {
		t.Errorf("name = %v", field["name"])
	}
	// Local numbers are normalized to E.164 with the CR country code
	if field["contact_phone"] != "+50688888888" {
		t.Errorf("contact_phone = %v, want +50688888888", field["contact_phone"])
	}
	if field["hourly_rate"] != float64(5000) {
		t.Errorf("hourly_rate = %v, want 5000", field["hourly_rate"])
	}
}

func TestHandleCreateField_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"hourly_rate": 5000}},
		{"zero rate", map[string]any{"name": "Cancha", "hourly_rate": 0}},
		{"bad phone", map[string]any{"name": "Cancha", "hourly_rate": 5000, "contact_phone": "not-a-phone"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, ownerID, http.MethodPost, "/api/v1/fields", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if decodeBody(t, w)["code"] != "INVALID_INPUT" {
				t.Errorf("code = %v, want INVALID_INPUT", decodeBody(t, w)["code"])
			}
		})
	}
}

func TestHandleCreateField_Unauthenticated(t *testing.T) {
	w := doRequest(t, 0, http.MethodPost, "/api/v1/fields", map[string]any{"name": "Cancha", "hourly_rate": 5000})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestHandleListFields(t *testing.T) {
	w := doRequest(t, ownerID, http.MethodPost, "/api/v1/fields", map[string]any{
		"name":        "Cancha Norte",
		"hourly_rate": 6000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", w.Code, w.Body.String())
	}

	w = doRequest(t, 0, http.MethodGet, "/api/v1/fields", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	payload := decodeBody(t, w)
	list, ok := payload["fields"].([]any)
	if !ok || len(list) == 0 {
		t.Fatalf("expected fields, got %v", payload)
	}
	if payload["total"].(float64) < 1 {
		t.Errorf("total = %v, want >= 1", payload["total"])
	}
}
