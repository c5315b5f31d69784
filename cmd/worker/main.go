// Package main provides the background worker entry point for the Live Vibe
// backend: it polls AI video generation tasks and runs scheduled sweeps.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/s-larionov/process-manager"

	"github.com/live-vibe/internal/adapter"
	"github.com/live-vibe/internal/config"
	"github.com/live-vibe/internal/job"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/messaging"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/ratelimit"
	"github.com/live-vibe/internal/service"
	"github.com/live-vibe/internal/storage"
	"github.com/live-vibe/internal/worker"
)

func main() {
	fmt.Println("Live Vibe Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithField("process", "worker")
	ctx := logging.WithLogger(context.Background(), logger)

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
		logger.WithError(err).Warn("NATS unavailable, notification publishing disabled")
	}
	defer publisher.Close()

	// Status polls draw from the reserved part of the Kling budget so a burst
	// of submissions on the API side cannot starve them.
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

	projectRepo := storage.NewAIProjectRepository(postgres)
	usageRepo := storage.NewUsageRepository(postgres)
	subscriptionRepo := storage.NewSubscriptionRepository(postgres)

	notificationService := service.NewNotificationService(storage.NewNotificationRepository(postgres), publisher)
	subscriptionService := service.NewSubscriptionService(service.SubscriptionDeps{
		Tx:            postgres,
		Plans:         storage.NewPlanRepository(postgres),
		Subscriptions: subscriptionRepo,
		Payments:      storage.NewPaymentRepository(postgres),
		Usage:         usageRepo,
		Profiles:      storage.NewProfileRepository(postgres),
		Gateway:       adapter.NewSquareClient(&cfg.Square),
		Notifications: notificationService,
		PlanTTL:       cfg.Cache.PlanTTL,
	})
	aiStudioService := service.NewAIStudioService(
		postgres,
		projectRepo,
		usageRepo,
		kling,
		adapter.NewStorageClient(&cfg.Supabase),
		subscriptionRepo,
		service.BucketsFromConfig(&cfg.Supabase),
	)

	poller, err := worker.NewGenerationPoller(&worker.GenerationPollerConfig{
		Projects:     projectRepo,
		Tasks:        kling,
		Notifier:     notificationService,
		PollInterval: cfg.Kling.PollInterval,
		MaxAttempts:  cfg.Kling.MaxPollAttempts,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create generation poller")
	}

	scheduler := job.NewScheduler()
	if err := scheduler.Add(cfg.Scheduler.SubscriptionExpirySpec, job.NewSubscriptionExpiryJob(subscriptionService)); err != nil {
		logger.WithError(err).Fatal("Failed to schedule subscription expiry")
	}
	if err := scheduler.Add(cfg.Scheduler.StaleSubmissionSpec, job.NewStaleSubmissionJob(aiStudioService)); err != nil {
		logger.WithError(err).Fatal("Failed to schedule stale submission sweep")
	}

	// Metrics and health are served by the process manager
	manager := process.NewManager()
	manager.AddWorker(process.NewServerWorker("metrics", newMetricsServer(cfg.Metrics.Listen, poller)))

	if err := poller.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start generation poller")
	}
	scheduler.Start()
	manager.StartAll()

	logger.WithFields(map[string]interface{}{
		"metrics":      cfg.Metrics.Listen,
		"pollInterval": cfg.Kling.PollInterval.String(),
		"expirySpec":   cfg.Scheduler.SubscriptionExpirySpec,
	}).Info("Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker...")

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := poller.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Generation poller did not stop cleanly")
		}
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Scheduler did not stop cleanly")
		}
		manager.StopAll()
	}()

	manager.AwaitAll()
	logger.Info("Worker exited")
}

// newMetricsServer serves /metrics and a /health endpoint that reports
// whether the poller has run recently.
func newMetricsServer(listen string, poller *worker.GenerationPoller) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !poller.IsRunning() {
			http.Error(w, "poller stopped", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok, last poll %s\n", poller.LastPoll().UTC().Format(time.RFC3339))
	})

	return &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
