package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	payoutService "github.com/homebase/referral-api/internal/service/payout"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

type PayoutRunnerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// PayoutRunner drains pending agent payouts through the transfer provider.
// Each claimed payout gets exactly one transfer attempt per claim; the
// outcome is recorded on the payout row and a failed payout stays failed
// until an operator retries it.
type PayoutRunner struct {
	payouts  *payoutService.Service
	transfer payoutService.TransferClient
	config   PayoutRunnerConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewPayoutRunner(
	payouts *payoutService.Service,
	transfer payoutService.TransferClient,
	config PayoutRunnerConfig,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *PayoutRunner {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	return &PayoutRunner{
		payouts:  payouts,
		transfer: transfer,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

func (r *PayoutRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("starting payout runner")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down payout runner")
			return
		case <-ticker.C:
			if err := r.runBatch(ctx); err != nil {
				r.logger.Error(err, "payout batch failed")
			}
		}
	}
}

func (r *PayoutRunner) runBatch(ctx context.Context) error {
	claimed, err := r.payouts.ClaimPending(ctx, r.config.BatchSize)
	if err != nil {
		return err
	}

	for _, p := range claimed {
		timer := prometheus.NewTimer(r.metrics.TransferLatency)
		transferErr := r.transfer.Transfer(ctx, p)
		timer.ObserveDuration()

		outcome := "success"
		if transferErr != nil {
			outcome = "failure"
			r.logger.Error(transferErr, "payout transfer failed",
				"payout_id", p.ID.String(),
				"agent_id", p.AgentID.String(),
			)
		}
		r.metrics.PayoutTransfers.WithLabelValues(outcome).Inc()

		if err := r.payouts.CompleteTransfer(ctx, p, transferErr); err != nil {
			r.logger.Error(err, "failed to record transfer outcome", "payout_id", p.ID.String())
		}
	}
	return nil
}
