package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // IANA zones for user timezones on minimal images

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"reminder_service/internal/app"
	"reminder_service/internal/infra/api"
	"reminder_service/internal/infra/auth"
	"reminder_service/internal/infra/config"
	idb "reminder_service/internal/infra/database"
	"reminder_service/internal/infra/logger"
	"reminder_service/internal/infra/messaging"
	"reminder_service/internal/infra/scheduler"
)

func main() {
	fmt.Println("Reminder service starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	baseLogger := logrus.NewEntry(logger.Get())
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
	}).Info("Configuration loaded")

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Database Connection
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := idb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established and migrations applied.")

	// Initialize Repositories
	markerRepo := idb.NewSQLMarkerRepository(db)
	preferenceRepo := idb.NewSQLPreferenceRepository(db)
	snapshotRepo := idb.NewSQLSnapshotRepository(db)

	// Initialize Messaging Gateway
	credentials := messaging.NewCredentialResolver(nil)
	if _, err := credentials.ResolveAPICredentials(); err != nil {
		mainLogger.WithError(err).Warn("Messaging gateway is not configured, dispatch will answer 500")
	}
	gateway := messaging.NewTwilioClient(cfg.MessagingAPIBaseURL, credentials, cfg.OutboundTimeout, baseLogger)

	// Initialize AuthGate
	var verifier auth.TokenVerifier
	if cfg.IntrospectionURL != "" {
		verifier = auth.NewIntrospectionVerifier(cfg.IntrospectionURL, cfg.IdentityClientID, cfg.IdentityClientSecret, cfg.OutboundTimeout)
		mainLogger.Info("Bearer tokens verified through introspection endpoint.")
	} else {
		verifier = auth.NewJWTVerifier(cfg.IdentityJWTSecret)
		mainLogger.Info("Bearer tokens verified locally as HS256 JWTs.")
	}
	if cfg.ReminderSecret == "" {
		mainLogger.Warn("No REMINDER_SECRET or CRON_SECRET set, secret mode is disabled")
	}
	gate := auth.NewGate(cfg.ReminderSecret, verifier, baseLogger)

	// Initialize Services
	preferenceService := app.NewPreferenceServiceImpl(preferenceRepo, cfg.DefaultTimezone, baseLogger)
	notificationService := app.NewNotificationServiceImpl(gateway, preferenceService, snapshotRepo, baseLogger)

	// Initialize ReminderScheduler
	dispatchClient := api.NewDispatchClient(cfg.DispatchBaseURL, cfg.OutboundTimeout, baseLogger)
	reminderScheduler := scheduler.NewReminderScheduler(
		preferenceService,
		notificationService,
		dispatchClient,
		markerRepo,
		cfg.SchedulerInterval,
		cfg.MarkerLease,
		cfg.OutboundTimeout,
		baseLogger,
	)
	reminderScheduler.Start()

	// Initialize HTTP Server
	server := api.NewServer(
		cfg.HTTPAddr,
		cfg.CORSAllowedOrigins,
		gate,
		notificationService,
		preferenceService,
		reminderScheduler,
		baseLogger,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()
	mainLogger.Info("Application setup complete. HTTP server and scheduler are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		mainLogger.WithField("signal", sig.String()).Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			mainLogger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	// Sessions end first so no scheduled send hits a closing listener.
	reminderScheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	mainLogger.Info("Application shut down gracefully.")
}
