// Package main provides the API server entry point for the Live Vibe backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/live-vibe/internal/adapter"
	"github.com/live-vibe/internal/api"
	"github.com/live-vibe/internal/config"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/messaging"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/ratelimit"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/storage"
)

func main() {
	fmt.Println("Live Vibe API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	publisher, err := messaging.Connect(&cfg.Nats)
	if err != nil {
		// notifications are still stored, only the fan-out is lost
		logger.WithError(err).Warn("NATS unavailable, notification publishing disabled")
	}
	defer publisher.Close()

	logger.Info("Connections established")

	// Provider adapters. Kling submissions share a Redis-backed request
	// budget with the worker's status polls.
	tracker, err := ratelimit.NewBudgetTracker(&ratelimit.BudgetTrackerConfig{
		Redis:          redis.Client(),
		TotalBudget:    cfg.Kling.RequestBudget,
		ReservedBudget: cfg.Kling.ReservedBudget,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kling budget tracker")
	}
	pacer, err := ratelimit.NewPacer(&ratelimit.PacerConfig{
		Tracker: tracker,
		OnThrottle: func(p ratelimit.Priority) {
			metrics.CollectThrottle("kling", p.String())
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kling pacer")
	}

	kling := adapter.NewKlingClient(&cfg.Kling, pacer)
	square := adapter.NewSquareClient(&cfg.Square)
	files := adapter.NewStorageClient(&cfg.Supabase)
	buckets := service.BucketsFromConfig(&cfg.Supabase)

	// Initialize repositories
	profileRepo := storage.NewProfileRepository(postgres)
	artRepo := storage.NewArtRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	availabilityRepo := storage.NewAvailabilityRepository(postgres)
	bookingRepo := storage.NewBookingRepository(postgres)
	planRepo := storage.NewPlanRepository(postgres)
	subscriptionRepo := storage.NewSubscriptionRepository(postgres)
	paymentRepo := storage.NewPaymentRepository(postgres)
	projectRepo := storage.NewAIProjectRepository(postgres)
	usageRepo := storage.NewUsageRepository(postgres)
	notificationRepo := storage.NewNotificationRepository(postgres)
	authUserRepo := storage.NewAuthUserRepository(postgres)

	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	logger.Info("Initializing services...")

	notificationService := service.NewNotificationService(notificationRepo, publisher)
	subscriptionService := service.NewSubscriptionService(service.SubscriptionDeps{
		Tx:            postgres,
		Plans:         planRepo,
		Subscriptions: subscriptionRepo,
		Payments:      paymentRepo,
		Usage:         usageRepo,
		Profiles:      profileRepo,
		Gateway:       square,
		Notifications: notificationService,
		Cache:         cacheService,
		PlanTTL:       cfg.Cache.PlanTTL,
	})
	bookingService := service.NewBookingService(
		postgres,
		bookingRepo,
		eventRepo,
		paymentRepo,
		square,
		subscriptionRepo,
		notificationService,
		cfg.Commission.DefaultRate,
	)
	aiStudioService := service.NewAIStudioService(
		postgres,
		projectRepo,
		usageRepo,
		kling,
		files,
		subscriptionRepo,
		buckets,
	)

	server := api.NewServer(&api.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     60 * time.Second, // uploads are proxied to storage
		IdleTimeout:      60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		JWTSecret:        cfg.Supabase.JWTSecret,
		AnonymousRPS:     cfg.RateLimit.AnonymousRPS,
		AuthenticatedRPS: cfg.RateLimit.AuthenticatedRPS,
	}, api.Services{
		AuthTable:     service.NewAuthTableService(authUserRepo),
		Profiles:      service.NewProfileService(profileRepo, files, buckets),
		Art:           service.NewArtService(artRepo, files, subscriptionRepo, buckets),
		Events:        service.NewEventService(eventRepo, availabilityRepo),
		Bookings:      bookingService,
		Subscriptions: subscriptionService,
		AIStudio:      aiStudioService,
		Notifications: notificationService,
		Health: map[string]api.HealthChecker{
			"postgres": postgres,
			"redis":    redis,
		},
	})

	logger.Info("Services initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pruneRateLimiter(ctx, server.RateLimiter())

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// pruneRateLimiter drops idle per-client limiters until ctx ends
func pruneRateLimiter(ctx context.Context, rl *api.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(); n > 0 {
				logging.WithField("removed", n).Debug("Pruned idle rate limiters")
			}
		}
	}
}
