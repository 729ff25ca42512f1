package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	"github.com/homebase/referral-api/internal/service/credit"
	"github.com/homebase/referral-api/internal/service/event"
	"github.com/homebase/referral-api/internal/service/reward"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
)

const (
	summaryTTL     = 30 * time.Second
	summaryCleanup = 5 * time.Minute
)

// Service manages the referral ledger: registration at signup, the referrer
// summary read model, and the terminal fraud void.
type Service struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	programs  *reward.Registry
	credits   *credit.Service
	events    *event.Service
	summaries *gocache.Cache
	logger    *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	referrals repository.ReferralRepository,
	programs *reward.Registry,
	credits *credit.Service,
	events *event.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		programs:  programs,
		credits:   credits,
		events:    events,
		summaries: gocache.New(summaryTTL, summaryCleanup),
		logger:    logger,
	}
}

// Register records that refereeID signed up with the given referral code.
// A referee has exactly one referrer; a second registration is a Conflict.
func (s *Service) Register(ctx context.Context, refereeID uuid.UUID, code string) (*model.ReferralRelationship, error) {
	referrer, err := s.accounts.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.ID == refereeID {
		return nil, apperrors.BadRequest("cannot refer yourself", nil)
	}

	referee, err := s.accounts.Get(ctx, refereeID)
	if err != nil {
		return nil, err
	}

	status := model.ReferralTrial
	if referee.SubscriptionStatus == model.SubscriptionActive {
		status = model.ReferralActive
	}

	rel := &model.ReferralRelationship{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		RefereeID:  referee.ID,
		SignupDate: time.Now(),
		Status:     status,
	}
	if err := s.referrals.Create(ctx, rel); err != nil {
		return nil, err
	}

	s.summaries.Delete(referrer.ID.String())
	if status == model.ReferralActive {
		if _, err := s.credits.RecomputeCredits(ctx, referrer.ID); err != nil {
			s.logger.Error(err, "credit recompute after registration failed", "referrer_id", referrer.ID.String())
		}
	}
	return rel, nil
}

// Summary builds the referrer-facing read model. Served from a short-lived
// cache; the underlying ledger remains the source of truth. Callers always
// get their own copy, so mutating a returned summary cannot corrupt the
// cached one.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*model.ReferralSummary, error) {
	if cached, found := s.summaries.Get(userID.String()); found {
		return cloneSummary(cached.(model.ReferralSummary)), nil
	}

	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	program, err := s.programs.ForRole(account.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reward program: %w", err)
	}

	count, err := s.referrals.CountActiveByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := model.ReferralSummary{
		ReferralCode:       account.ReferralCode,
		ReferralCount:      count,
		EarnedCreditCents:  int64(count) * program.PerReferralCents(),
		CurrentCreditCents: account.CurrentCreditCents,
	}
	if limit, err := program.Cap(account.PlanTier); err == nil && limit.Bounded {
		summary.CreditCapCents = &limit.Cents
	}

	s.summaries.Set(userID.String(), summary, gocache.DefaultExpiration)
	return cloneSummary(summary), nil
}

func cloneSummary(s model.ReferralSummary) *model.ReferralSummary {
	out := s
	if s.CreditCapCents != nil {
		limit := *s.CreditCapCents
		out.CreditCapCents = &limit
	}
	return &out
}

type voidedPayload struct {
	RelationshipID uuid.UUID `json:"relationship_id"`
	ReferrerID     uuid.UUID `json:"referrer_id"`
	Reason         string    `json:"reason"`
}

// Void terminates a relationship after a fraud determination. Terminal and
// idempotent: voiding a voided relationship is a no-op, and every later
// billing cycle for the referee leaves it untouched.
func (s *Service) Void(ctx context.Context, relationshipID uuid.UUID, reason string) error {
	rel, err := s.referrals.Get(ctx, relationshipID)
	if err != nil {
		return err
	}
	if rel.Terminal() {
		return nil
	}

	rel.Status = model.ReferralVoided
	rel.ConsecutiveMonthsPaid = 0
	if err := s.referrals.Update(ctx, rel); err != nil {
		return err
	}

	s.summaries.Delete(rel.ReferrerID.String())
	if _, err := s.credits.RecomputeCredits(ctx, rel.ReferrerID); err != nil {
		s.logger.Error(err, "credit recompute after void failed", "referrer_id", rel.ReferrerID.String())
	}

	if err := s.events.Emit(ctx, model.EventReferralVoided, voidedPayload{
		RelationshipID: rel.ID,
		ReferrerID:     rel.ReferrerID,
		Reason:         reason,
	}); err != nil {
		s.logger.Error(err, "failed to emit referral voided event")
	}
	return nil
}

// ListByReferrer exposes the raw ledger rows for a referrer.
func (s *Service) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*model.ReferralRelationship, error) {
	return s.referrals.ListByReferrer(ctx, referrerID)
}
