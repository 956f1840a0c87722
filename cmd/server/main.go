package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"familydose/internal/config"
	"familydose/internal/database"
	"familydose/internal/drugapi"
	"familydose/internal/handlers"
	"familydose/internal/jobs"
	"familydose/internal/lock"
	"familydose/internal/logger"
	"familydose/internal/notify"
	"familydose/internal/repository"
	"familydose/internal/security"
	"familydose/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.Init(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database ready", zap.String("type", cfg.DatabaseType))

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
		log.Warn("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	clock := clockwork.NewRealClock()
	wall := service.NewWallClock(clock, cfg.Location)
	repos := repository.New(db)
	locks := lock.NewKeyed(cfg.LockTimeout)

	var drugs service.DrugLookup
	if cfg.DrugAPIBaseURL != "" {
		drugs = drugapi.New(ctx, drugapi.Config{
			BaseURL:      cfg.DrugAPIBaseURL,
			APIKey:       cfg.DrugAPIKey,
			ClientID:     cfg.DrugAPIClientID,
			ClientSecret: cfg.DrugAPIClientSecret,
			TokenURL:     cfg.DrugAPITokenURL,
			Timeout:      10 * time.Second,
		}, log)
	} else {
		log.Info("drug lookup disabled: DRUG_API_BASE_URL is not set")
	}

	var notifier service.Notifier
	ses, err := notify.NewSESNotifier(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, log)
	if err != nil {
		log.Warn("low-stock email disabled", zap.Error(err))
	} else {
		notifier = ses
	}

	slots := service.NewSlotService(db, repos, locks, cfg.SlotCapacity, cfg.RefillThreshold, notifier, log)
	svc := handlers.Services{
		Auth:     service.NewAuthService(repos.Users, security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), log),
		Accounts: service.NewAccountService(db, repos, locks, cfg.HashCost, log),
		Catalog:  service.NewCatalogService(db, repos, locks, drugs, log),
		Slots:    slots,
		Schedule: service.NewScheduleService(db, repos, locks, slots, wall, log),
		Ledger:   service.NewLedgerService(db, repos, locks, wall, log),
	}

	limiter := security.NewRateLimiter(clock, 10, time.Minute)
	go limiter.Run(ctx)

	scheduler, err := jobs.StartRefillDigest(ctx, slots, cfg.RefillDigestCron, clock, cfg.Location, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handlers.NewRouter(svc, limiter, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.Int("slot_capacity", cfg.SlotCapacity),
			zap.String("timezone", cfg.Location.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
