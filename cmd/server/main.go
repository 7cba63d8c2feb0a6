// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tcalvo/mejenga/internal/api/billing"
	"github.com/tcalvo/mejenga/internal/api/fields"
	"github.com/tcalvo/mejenga/internal/api/games"
	"github.com/tcalvo/mejenga/internal/api/reservations"
	"github.com/tcalvo/mejenga/internal/config"
	"github.com/tcalvo/mejenga/internal/db"
	"github.com/tcalvo/mejenga/internal/email"
	"github.com/tcalvo/mejenga/internal/ledger"
	"github.com/tcalvo/mejenga/internal/payments"
	"github.com/tcalvo/mejenga/internal/ratelimit"
	"github.com/tcalvo/mejenga/internal/scheduler"
	"github.com/tcalvo/mejenga/internal/sweep"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config/app.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	admitter, err := ledger.New(database, ledger.WithDurationBounds(
		time.Duration(cfg.Booking.MinDurationMinutes)*time.Minute,
		time.Duration(cfg.Booking.MaxDurationMinutes)*time.Minute,
	))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build ledger")
	}

	var provider payments.Provider
	if cfg.Stripe.SecretKey != "" {
		stripeProvider, err := payments.NewStripeProvider(cfg.Stripe.SecretKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize payments")
		}
		provider = stripeProvider
	} else {
		log.Warn().Msg("Stripe secret key not set; payments disabled")
	}

	var sender email.EmailSender
	if cfg.Email.AccessKeyID != "" && cfg.Email.SecretAccessKey != "" {
		sesClient, err := email.NewSESClient(cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize email")
		}
		sender = sesClient
	} else {
		log.Warn().Msg("AWS credentials not set; email disabled")
	}

	limiter := ratelimit.New(nil)
	defer limiter.Close()

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	pendingTTL := time.Duration(cfg.Expiry.PendingTTLMinutes) * time.Minute
	if err := sweep.RegisterExpiryJob(database, cfg.Expiry.Cron, pendingTTL); err != nil {
		log.Fatal().Err(err).Msg("Failed to register expiry job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	fields.InitHandlers(database.Queries)
	reservations.InitHandlers(database.Queries, admitter, provider, sender, limiter)
	games.InitHandlers(database.Queries, admitter, sender, limiter)
	if provider != nil {
		billing.InitHandlers(database.Queries, provider, billing.Settings{
			SubscriptionAmount:   cfg.Stripe.SubscriptionAmount,
			SubscriptionCurrency: cfg.Stripe.SubscriptionCurrency,
			RedirectURL:          cfg.App.BaseURL + "/billing/return",
		})
	}

	server := newServer(cfg, database.Queries)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
