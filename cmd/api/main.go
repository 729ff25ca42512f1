package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/email"
	"github.com/homebase/referral-api/internal/handler"
	billingHandler "github.com/homebase/referral-api/internal/handler/billing"
	"github.com/homebase/referral-api/internal/handler/health"
	payoutHandler "github.com/homebase/referral-api/internal/handler/payout"
	referralHandler "github.com/homebase/referral-api/internal/handler/referral"
	reviewHandler "github.com/homebase/referral-api/internal/handler/review"
	"github.com/homebase/referral-api/internal/middleware"
	"github.com/homebase/referral-api/internal/repository/postgres"
	"github.com/homebase/referral-api/internal/router"
	billingService "github.com/homebase/referral-api/internal/service/billing"
	creditService "github.com/homebase/referral-api/internal/service/credit"
	eventService "github.com/homebase/referral-api/internal/service/event"
	payoutService "github.com/homebase/referral-api/internal/service/payout"
	referralService "github.com/homebase/referral-api/internal/service/referral"
	reviewService "github.com/homebase/referral-api/internal/service/review"
	"github.com/homebase/referral-api/internal/service/reward"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/messaging/redis"
	"github.com/homebase/referral-api/pkg/metrics"
	"github.com/homebase/referral-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appMetrics := metrics.NewMetrics("homebase", "referral")

	base := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(base)
	referralRepo := postgres.NewReferralRepository(base)
	payoutRepo := postgres.NewPayoutRepository(base)
	historyRepo := postgres.NewBillingHistoryRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	reviewRepo := postgres.NewReviewFlagRepository(base)

	programs, err := reward.NewRegistry(cfg.Rewards)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rewards configuration")
	}

	emailSvc := email.NewSMTPService(cfg.SMTP)
	eventSvc := eventService.NewService(outboxRepo)
	creditSvc := creditService.NewService(accountRepo, referralRepo, programs, eventSvc, appMetrics, appLogger)
	payoutSvc := payoutService.NewService(accountRepo, referralRepo, payoutRepo, programs, eventSvc, emailSvc, appMetrics, appLogger)
	billingSvc := billingService.NewService(accountRepo, referralRepo, historyRepo, creditSvc, payoutSvc, appMetrics, appLogger)
	referralSvc := referralService.NewService(accountRepo, referralRepo, programs, creditSvc, eventSvc, appLogger)
	reviewSvc := reviewService.NewService(reviewRepo, appLogger)

	handler.RegisterValidators()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	webhookAuth := middleware.NewWebhookAuth(cfg.Webhook.TokenHash)

	r := router.NewRouter(
		authMiddleware,
		webhookAuth,
		health.NewHandler(db),
		billingHandler.NewHandler(billingSvc),
		referralHandler.NewHandler(referralSvc),
		payoutHandler.NewHandler(payoutSvc),
		reviewHandler.NewHandler(reviewSvc),
		appLogger,
		router.Config{
			RateLimitRPS:   float64(cfg.Server.RateLimitRPS),
			RateLimitBurst: cfg.Server.RateLimitBurst,
			MetricsPrefix:  "referral_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, appLogger, appMetrics)
	go outboxProcessor.Start(ctx)

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
}
