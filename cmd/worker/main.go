package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/email"
	"github.com/homebase/referral-api/internal/repository/postgres"
	eventService "github.com/homebase/referral-api/internal/service/event"
	payoutService "github.com/homebase/referral-api/internal/service/payout"
	"github.com/homebase/referral-api/internal/service/reward"
	internalWorker "github.com/homebase/referral-api/internal/worker"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/messaging/redis"
	"github.com/homebase/referral-api/pkg/metrics"
	"github.com/homebase/referral-api/pkg/worker"
)

// The worker binary runs the outbox processor and the payout transfer
// runner. It shares the API's config file but deployment env vars win.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	env, err := config.LoadWorkerEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load worker environment")
	}
	if err := env.Apply(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to apply worker environment")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appMetrics := metrics.NewMetrics("homebase", "referral_worker")

	base := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(base)
	referralRepo := postgres.NewReferralRepository(base)
	payoutRepo := postgres.NewPayoutRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	programs, err := reward.NewRegistry(cfg.Rewards)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rewards configuration")
	}

	emailSvc := email.NewSMTPService(cfg.SMTP)
	eventSvc := eventService.NewService(outboxRepo)
	payoutSvc := payoutService.NewService(accountRepo, referralRepo, payoutRepo, programs, eventSvc, emailSvc, appMetrics, appLogger)

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

	transferClient := payoutService.NewHTTPTransferClient(cfg.Transfer)
	payoutRunner := internalWorker.NewPayoutRunner(payoutSvc, transferClient, internalWorker.PayoutRunnerConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
	}, appMetrics, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		outboxProcessor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		payoutRunner.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down worker")
	cancel()
	wg.Wait()
}
