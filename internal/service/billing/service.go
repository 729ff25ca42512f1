package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	"github.com/homebase/referral-api/internal/service/credit"
	"github.com/homebase/referral-api/internal/service/payout"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

// Service is the billing-cycle integration point. For each billing event it
// updates the referee's account, appends the audit record, and fans out to
// the credit or payout engine depending on who referred the account.
type Service struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	history   repository.BillingHistoryRepository
	credits   *credit.Service
	payouts   *payout.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	referrals repository.ReferralRepository,
	history repository.BillingHistoryRepository,
	credits *credit.Service,
	payouts *payout.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		history:   history,
		credits:   credits,
		payouts:   payouts,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessEvent applies one billing event. Events for a single account must
// arrive in period order; an event whose period_start does not advance the
// account's watermark is rejected with Conflict so the provider's retry
// does not corrupt the vesting clock.
func (s *Service) ProcessEvent(ctx context.Context, evt *model.BillingEvent) (*model.BillingHistoryEvent, error) {
	if err := validateEvent(evt); err != nil {
		s.metrics.BillingEventsRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	account, err := s.accounts.Get(ctx, evt.AccountID)
	if err != nil {
		s.metrics.BillingEventsRejected.WithLabelValues("unknown_account").Inc()
		return nil, err
	}

	last, err := s.history.LatestPeriodStart(ctx, evt.AccountID)
	if err != nil {
		return nil, err
	}
	if last != nil && !evt.PeriodStart.After(*last) {
		s.metrics.BillingEventsRejected.WithLabelValues("out_of_order").Inc()
		return nil, apperrors.Conflict("billing event out of period order", nil)
	}

	if err := s.applySubscriptionStatus(ctx, account, evt.Status); err != nil {
		return nil, err
	}

	hist := &model.BillingHistoryEvent{
		AccountID:   evt.AccountID,
		InvoiceID:   evt.InvoiceID,
		PeriodStart: evt.PeriodStart,
		PeriodEnd:   evt.PeriodEnd,
		Status:      evt.Status,
		AmountCents: evt.AmountCents,
	}
	if err := s.history.Append(ctx, hist); err != nil {
		return nil, err
	}

	start := time.Now()
	s.fanOut(ctx, account, evt.Status)
	s.metrics.BillingFanoutLatency.Observe(time.Since(start).Seconds())

	s.metrics.BillingEventsProcessed.WithLabelValues(string(evt.Status)).Inc()
	return hist, nil
}

// ProcessBatch applies a set of billing events, one account's failure never
// aborting the rest. Returns the first error per failed account keyed by
// account id, for webhook-level reporting.
func (s *Service) ProcessBatch(ctx context.Context, events []*model.BillingEvent) map[string]error {
	failures := make(map[string]error)
	for _, evt := range events {
		if _, err := s.ProcessEvent(ctx, evt); err != nil {
			s.logger.Error(err, "billing event failed",
				"account_id", evt.AccountID.String(),
				"invoice_id", evt.InvoiceID,
			)
			failures[evt.AccountID.String()] = err
		}
	}
	return failures
}

// fanOut routes the cycle result to the referral relationship where this
// account is the referee, if any. Referrer-side failures are logged and
// skipped; credit numbers are eventually consistent.
func (s *Service) fanOut(ctx context.Context, referee *model.Account, result model.CycleResult) {
	rel, err := s.referrals.GetByReferee(ctx, referee.ID)
	if apperrors.IsNotFound(err) {
		return
	}
	if err != nil {
		s.logger.Error(err, "failed to load referral relationship", "referee_id", referee.ID.String())
		return
	}
	if rel.Terminal() {
		return
	}

	referrer, err := s.accounts.Get(ctx, rel.ReferrerID)
	if err != nil {
		s.logger.Error(err, "referrer lookup failed, skipping cycle", "referrer_id", rel.ReferrerID.String())
		return
	}

	if referrer.Role == model.RoleAgent {
		if err := s.payouts.OnBillingCycle(ctx, rel, result); err != nil {
			s.logger.Error(err, "payout eligibility update failed", "relationship_id", rel.ID.String())
		}
		return
	}

	s.maintainRelationship(ctx, rel, result)
	if _, err := s.credits.RecomputeCredits(ctx, referrer.ID); err != nil {
		s.logger.Error(err, "credit recompute failed, keeping last known value", "referrer_id", referrer.ID.String())
	}
}

// maintainRelationship keeps non-agent relationship status in step with the
// referee's billing outcomes.
func (s *Service) maintainRelationship(ctx context.Context, rel *model.ReferralRelationship, result model.CycleResult) {
	changed := false
	switch result {
	case model.CyclePaid:
		if rel.Status == model.ReferralTrial {
			rel.Status = model.ReferralActive
			changed = true
		}
	case model.CycleVoided:
		rel.Status = model.ReferralVoided
		changed = true
	}
	if !changed {
		return
	}
	if err := s.referrals.Update(ctx, rel); err != nil {
		s.logger.Error(err, "failed to update relationship status", "relationship_id", rel.ID.String())
	}
}

func (s *Service) applySubscriptionStatus(ctx context.Context, account *model.Account, result model.CycleResult) error {
	// Grandfathered accounts keep their status regardless of cycle results.
	if account.SubscriptionStatus == model.SubscriptionGrandfathered {
		return nil
	}

	var next model.SubscriptionStatus
	switch result {
	case model.CyclePaid:
		next = model.SubscriptionActive
	case model.CycleFailed:
		next = model.SubscriptionPastDue
	case model.CycleVoided:
		next = model.SubscriptionCanceled
	default:
		return apperrors.BadRequest(fmt.Sprintf("unknown cycle result %q", result), nil)
	}

	if next == account.SubscriptionStatus {
		return nil
	}
	if err := s.accounts.UpdateSubscriptionStatus(ctx, account.ID, next); err != nil {
		return err
	}
	account.SubscriptionStatus = next
	return nil
}

// HistoryByAccount returns the account's billing audit trail in period order.
func (s *Service) HistoryByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.BillingHistoryEvent, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.history.ListByAccount(ctx, accountID)
}

func validateEvent(evt *model.BillingEvent) error {
	switch evt.Status {
	case model.CyclePaid, model.CycleFailed, model.CycleVoided:
	default:
		return apperrors.BadRequest(fmt.Sprintf("unknown cycle result %q", evt.Status), nil)
	}
	if !evt.PeriodEnd.After(evt.PeriodStart) {
		return apperrors.BadRequest("period_end must be after period_start", nil)
	}
	return nil
}
