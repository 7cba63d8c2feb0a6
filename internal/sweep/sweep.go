// Package sweep releases stale pending reservations so their time windows
// become bookable again.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/scheduler"
)

const sweepTimeout = 2 * time.Minute

// Engine expires reservations that stayed pending past their TTL.
type Engine struct {
	database *db.DB
	ttl      time.Duration
}

func NewEngine(database *db.DB, pendingTTL time.Duration) (*Engine, error) {
	if database == nil {
		return nil, fmt.Errorf("sweep engine requires database")
	}
	if pendingTTL <= 0 {
		return nil, fmt.Errorf("sweep engine requires a positive pending TTL")
	}
	return &Engine{database: database, ttl: pendingTTL}, nil
}

// Run marks every reservation still pending past the TTL as failed and
// returns how many were released.
func (e *Engine) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-e.ttl)

	var released int64
	err := e.database.RunInTx(ctx, func(tx *db.DB) error {
		n, err := tx.Queries.ExpirePendingReservations(ctx, cutoff)
		if err != nil {
			return err
		}
		released = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire pending reservations: %w", err)
	}
	return released, nil
}

// RegisterExpiryJob schedules the sweep on the app scheduler.
func RegisterExpiryJob(database *db.DB, cronExpr string, pendingTTL time.Duration) error {
	engine, err := NewEngine(database, pendingTTL)
	if err != nil {
		return err
	}

	jobName := "reservation_expiry"
	jobLogger := log.With().
		Str("component", "reservation_expiry_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err = scheduler.AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		released, err := engine.Run(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Reservation expiry sweep failed")
			return
		}
		if released > 0 {
			jobLogger.Info().Int64("released", released).Msg("Released stale pending reservations")
		}
	})
	return err
}
