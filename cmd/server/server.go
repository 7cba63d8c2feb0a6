// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tcalvo/mejenga/internal/api"
	"github.com/tcalvo/mejenga/internal/api/billing"
	"github.com/tcalvo/mejenga/internal/api/fields"
	"github.com/tcalvo/mejenga/internal/api/games"
	"github.com/tcalvo/mejenga/internal/api/reservations"
	"github.com/tcalvo/mejenga/internal/config"
	appdb "github.com/tcalvo/mejenga/internal/db"
)

func newServer(cfg *config.Config, queries *appdb.Queries) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithAuth(queries),
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Field routes
	mux.HandleFunc("GET /api/v1/fields", fields.HandleListFields)
	mux.HandleFunc("POST /api/v1/fields", fields.HandleCreateField)

	// Reservation routes
	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleCreateReservation)
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleListMyReservations)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", reservations.HandleCancelReservation)

	// Game routes
	mux.HandleFunc("POST /api/v1/games", games.HandleCreateGame)
	mux.HandleFunc("GET /api/v1/games", games.HandleListGames)
	mux.HandleFunc("POST /api/v1/games/{id}/join", games.HandleJoinGame)

	// Billing routes
	mux.HandleFunc("POST /api/v1/billing/checkout-link", billing.HandleCreateCheckout)
}
