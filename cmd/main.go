package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"academypay/internal/bootstrap"
	"academypay/internal/config"
	cronpkg "academypay/internal/cron"
	"academypay/internal/debitorder"
	"academypay/internal/handler/api"
	"academypay/internal/metrics"
	"academypay/internal/notify"
	"academypay/internal/payfast"
	"academypay/internal/payment"
	"academypay/internal/pkg/dedup"
	"academypay/internal/repository"
	"academypay/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--migrate-only") {
		if err := runMigrations(logger); err != nil {
			logger.Fatal("Database migration failed", zap.Error(err))
		}
		logger.Info("Database migration completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	paymentRepo := repository.NewPaymentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	mandateRepo := repository.NewMandateRepository(db)

	// --- Notification Deduper (Redis with in-memory fallback) ---
	itnDeduper, dedupErr := dedup.New(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		"academypay:itn",
		24*time.Hour,
	)
	if dedupErr != nil {
		logger.Warn("Redis unavailable for notification dedup, using in-memory fallback", zap.Error(dedupErr))
	}

	// --- Notifiers ---
	var reporter notify.Reporter = notify.Nop{}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, "", logger)
		if err != nil {
			logger.Warn("Telegram reports disabled", zap.Error(err))
		} else {
			reporter = tg
		}
	}
	var sender notify.Sender = notify.Nop{}
	if cfg.Mail.Host != "" {
		sender = notify.NewMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Pass, cfg.Mail.From)
	}

	// --- Metrics ---
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// --- PayFast ---
	var confirmer payment.Confirmer
	if cfg.PayFast.Confirm {
		confirmer = payfast.NewValidator(cfg.PayFast.Sandbox)
	} else {
		logger.Warn("PayFast server-to-server confirmation disabled")
	}
	gateway := payment.NewPayFastGateway(cfg.PayFast, confirmer)
	processor := payment.NewProcessor(gateway, paymentRepo, bookingRepo, payment.Options{
		Dedup:        itnDeduper,
		Reporter:     reporter,
		Sender:       sender,
		Organisation: cfg.Payment.Organisation,
	}, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, router.Deps{
		Payments: processor,
		Finder:   paymentRepo,
		Repos: &api.Repos{
			Payment: paymentRepo,
			Booking: bookingRepo,
			Mandate: mandateRepo,
		},
		PayFast:        cfg.PayFast,
		APIKey:         cfg.API.Key,
		TrustedProxies: cfg.Server.TrustedProxies,
		Registerer:     prometheus.DefaultRegisterer,
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger,
	})

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, cronpkg.Deps{
		Payments: processor,
		Stats:    paymentRepo,
		Mandates: mandateRepo,
		Debits:   debitorder.NewSimulator(time.Now().UnixNano()),
		Reporter: reporter,
		Sender:   sender,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting academypay server",
			zap.String("addr", addr),
			zap.Bool("sandbox", cfg.PayFast.Sandbox),
		)
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Flush receipts still being sent
	processor.Wait()

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runMigrations(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, "production", logger)
	if err != nil {
		return err
	}
	return bootstrap.MigrateAndSeed(db)
}
