package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	"github.com/homebase/referral-api/internal/service/event"
	"github.com/homebase/referral-api/internal/service/reward"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

// Service recomputes referral credit for homeowner and contractor
// referrers. current_credit_cents on the account is a derived projection of
// the referral ledger; the ledger is the source of truth and a recompute
// overwrites whatever was stored before.
type Service struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	programs  *reward.Registry
	events    *event.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	referrals repository.ReferralRepository,
	programs *reward.Registry,
	events *event.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		programs:  programs,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

type creditsUpdatedPayload struct {
	ReferrerID   uuid.UUID `json:"referrer_id"`
	EarnedCents  int64     `json:"earned_cents"`
	AppliedCents int64     `json:"applied_cents"`
}

// RecomputeCredits derives the credit the referrer should currently
// receive: count of active referrals times the per-referral value, clamped
// to the role/tier cap. Idempotent; a plan downgrade clamps on the next
// call, never leaving a stale value above the new cap.
func (s *Service) RecomputeCredits(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	account, err := s.accounts.Get(ctx, referrerID)
	if err != nil {
		return 0, err
	}

	program, err := s.programs.ForRole(account.Role)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve reward program: %w", err)
	}
	if account.Role == model.RoleAgent {
		// Agents earn one-time commissions, not recurring credit.
		return account.CurrentCreditCents, nil
	}

	count, err := s.referrals.CountActiveByReferrer(ctx, referrerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active referrals: %w", err)
	}

	earned := int64(count) * program.PerReferralCents()
	limit, err := program.Cap(account.PlanTier)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve credit cap: %w", err)
	}

	applied := earned
	if limit.Bounded && applied > limit.Cents {
		applied = limit.Cents
		s.metrics.CreditClampApplied.Inc()
	}

	if applied == account.CurrentCreditCents {
		s.metrics.CreditRecomputes.WithLabelValues("unchanged").Inc()
		return applied, nil
	}

	if err := s.accounts.UpdateCredits(ctx, referrerID, applied); err != nil {
		return 0, fmt.Errorf("failed to write credits: %w", err)
	}

	s.metrics.CreditRecomputes.WithLabelValues("updated").Inc()
	s.metrics.CurrentCreditCents.WithLabelValues(string(account.Role)).Set(float64(applied))

	if err := s.events.Emit(ctx, model.EventCreditsUpdated, creditsUpdatedPayload{
		ReferrerID:   referrerID,
		EarnedCents:  earned,
		AppliedCents: applied,
	}); err != nil {
		// Credits are already written; the event is best effort.
		s.logger.Error(err, "failed to emit credits updated event")
	}

	s.logger.Debug("recomputed referral credits",
		"referrer_id", referrerID.String(),
		"earned_cents", earned,
		"applied_cents", applied,
	)
	return applied, nil
}
