package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/curbwise/alerts-api/internal/config"
	"github.com/curbwise/alerts-api/internal/email"
	adminHandler "github.com/curbwise/alerts-api/internal/handler/admin"
	healthHandler "github.com/curbwise/alerts-api/internal/handler/health"
	triggerHandler "github.com/curbwise/alerts-api/internal/handler/trigger"
	"github.com/curbwise/alerts-api/internal/middleware"
	"github.com/curbwise/alerts-api/internal/repository/postgres"
	"github.com/curbwise/alerts-api/internal/router"
	"github.com/curbwise/alerts-api/internal/service/freqcap"
	healthService "github.com/curbwise/alerts-api/internal/service/health"
	leaseService "github.com/curbwise/alerts-api/internal/service/lease"
	scheduleService "github.com/curbwise/alerts-api/internal/service/schedule"
	senderService "github.com/curbwise/alerts-api/internal/service/sender"
	"github.com/curbwise/alerts-api/internal/worker"
	"github.com/curbwise/alerts-api/pkg/logger"
	"github.com/curbwise/alerts-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize logger
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	log := logger.FromZerolog(zlog.Logger)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis for frequency cap counters
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(baseRepo)
	leaseRepo := postgres.NewLeaseRepository(baseRepo)
	jobRunRepo := postgres.NewJobRunRepository(baseRepo)
	alertRepo := postgres.NewAlertRepository(baseRepo)
	subscriberRepo := postgres.NewSubscriberRepository(baseRepo)
	jobAlertRepo := postgres.NewJobAlertRepository(baseRepo)

	// Initialize metrics and email provider
	m := metrics.NewMetrics("curbwise_delivery")
	provider := email.NewSMTPProvider(cfg.SMTP)

	// Initialize services
	alerter := healthService.NewEmailAlerter(provider, cfg.Alerting.OperatorEmail)
	monitor := healthService.NewMonitor(jobRunRepo, alerter, log, m)
	leaseSvc := leaseService.NewService(leaseRepo, log, m)
	sendSvc := senderService.NewService(deliveryRepo, provider, log, m)
	capChecker := freqcap.NewChecker(redisClient, cfg.FreqCap.DailyLimit)

	scheduler := scheduleService.NewService(
		leaseSvc,
		sendSvc,
		subscriberRepo,
		alertRepo,
		capChecker,
		monitor,
		cfg.Scheduler.LeaseTTL,
		log,
		m,
	)

	// Every monitored job with its expected cadence
	registry := buildRegistry()
	sweeper := healthService.NewSweeper(monitor, registry, alerter, jobAlertRepo, cfg.Alerting.Cooldown, log, m)

	digests := scheduleService.NewDigestBuilder(alertRepo, subscriberRepo)
	reconciler := worker.NewReconciler(deliveryRepo, provider, digests, leaseSvc, monitor, worker.ReconcilerConfig{
		GracePeriod: cfg.Reconcile.GracePeriod,
		BatchSize:   cfg.Reconcile.BatchSize,
		LeaseTTL:    cfg.Scheduler.LeaseTTL,
	}, log)
	healthSweep := worker.NewHealthSweepJob(sweeper, leaseSvc, monitor, cfg.Scheduler.LeaseTTL, log)

	// Initialize handlers and router
	authMiddleware := middleware.NewTriggerAuthMiddleware(cfg.Trigger.Secret)
	triggerH := triggerHandler.NewHandler(scheduler, reconciler, healthSweep)
	adminH := adminHandler.NewHandler(sendSvc, digests)
	healthH := healthHandler.NewHandler(db, monitor, registry)

	r := router.NewRouter(authMiddleware, triggerH, adminH, healthH, router.Config{
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	zlog.Info().Int("port", cfg.Server.Port).Msg("delivery coordination service started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zlog.Info().Msg("server exited properly")
}

func buildRegistry() *healthService.Registry {
	specs := []healthService.JobSpec{
		{Name: worker.ReconcileJobName, ExpectedInterval: time.Hour, AlertThreshold: 3},
		{Name: worker.HealthSweepJobName, ExpectedInterval: 15 * time.Minute, AlertThreshold: 3},
	}
	for _, slot := range scheduleService.AllSlots() {
		specs = append(specs, healthService.JobSpec{
			Name:             slot.JobName,
			ExpectedInterval: 24 * time.Hour,
			AlertThreshold:   2,
		})
	}
	return healthService.NewRegistry(specs...)
}
