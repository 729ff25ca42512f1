package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/email"
	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	"github.com/homebase/referral-api/internal/service/event"
	"github.com/homebase/referral-api/internal/service/reward"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

// TransferClient moves money to the agent. Implemented against the external
// payout provider; failures are recorded on the payout, never retried inline.
type TransferClient interface {
	Transfer(ctx context.Context, payout *model.AgentPayout) error
}

// Service tracks the vesting clock on agent-sourced referral relationships
// and creates at most one AgentPayout per relationship once the referee has
// paid the configured number of consecutive months.
type Service struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	payouts   repository.PayoutRepository
	programs  *reward.Registry
	events    *event.Service
	emailSvc  email.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	referrals repository.ReferralRepository,
	payouts repository.PayoutRepository,
	programs *reward.Registry,
	events *event.Service,
	emailSvc email.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		payouts:   payouts,
		programs:  programs,
		events:    events,
		emailSvc:  emailSvc,
		metrics:   metrics,
		logger:    logger,
	}
}

type payoutEventPayload struct {
	PayoutID       uuid.UUID `json:"payout_id"`
	RelationshipID uuid.UUID `json:"relationship_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	AmountCents    int64     `json:"amount_cents"`
}

// OnBillingCycle advances the relationship's state machine for one billing
// cycle of the referee. Voided relationships are inert. A paid cycle
// increments the vesting clock; a failed cycle resets it to zero (partial
// progress before a failure never counts again); a voided cycle means the
// referee's own subscription was canceled and terminates the relationship.
func (s *Service) OnBillingCycle(ctx context.Context, rel *model.ReferralRelationship, result model.CycleResult) error {
	if rel.Terminal() {
		return nil
	}

	switch result {
	case model.CyclePaid:
		rel.ConsecutiveMonthsPaid++
		if rel.Status == model.ReferralTrial {
			rel.Status = model.ReferralActive
		}
		if rel.ConsecutiveMonthsPaid >= s.programs.VestingMonths() &&
			rel.Status != model.ReferralPaid && rel.Status != model.ReferralEligible {
			if err := s.createPayout(ctx, rel); err != nil {
				return err
			}
			rel.Status = model.ReferralEligible
		}

	case model.CycleFailed:
		rel.ConsecutiveMonthsPaid = 0

	case model.CycleVoided:
		rel.ConsecutiveMonthsPaid = 0
		rel.Status = model.ReferralVoided

	default:
		return apperrors.BadRequest(fmt.Sprintf("unknown cycle result %q", result), nil)
	}

	if err := s.referrals.Update(ctx, rel); err != nil {
		return fmt.Errorf("failed to persist relationship: %w", err)
	}
	return nil
}

// createPayout creates the single pending payout for a vested relationship.
// The repository's uniqueness guard makes a double create a Conflict, so a
// concurrent or replayed cycle cannot mint a second commission.
func (s *Service) createPayout(ctx context.Context, rel *model.ReferralRelationship) error {
	if existing, err := s.payouts.GetByRelationship(ctx, rel.ID); err == nil && existing != nil {
		return nil
	} else if err != nil && !apperrors.IsNotFound(err) {
		return fmt.Errorf("failed to check existing payout: %w", err)
	}

	program, err := s.programs.ForRole(model.RoleAgent)
	if err != nil {
		return err
	}

	payout := &model.AgentPayout{
		ID:                     uuid.New(),
		ReferralRelationshipID: rel.ID,
		AgentID:                rel.ReferrerID,
		AmountCents:            program.CommissionCents(),
		Status:                 model.PayoutPending,
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		if apperrors.IsConflict(err) {
			// Lost the race to another writer; the invariant held.
			return nil
		}
		return err
	}

	s.metrics.PayoutsCreated.Inc()
	if err := s.events.Emit(ctx, model.EventPayoutCreated, payoutEventPayload{
		PayoutID:       payout.ID,
		RelationshipID: rel.ID,
		AgentID:        payout.AgentID,
		AmountCents:    payout.AmountCents,
	}); err != nil {
		s.logger.Error(err, "failed to emit payout created event")
	}

	s.logger.Info("agent payout created",
		"payout_id", payout.ID.String(),
		"agent_id", payout.AgentID.String(),
		"amount_cents", payout.AmountCents,
	)
	return nil
}

// CompleteTransfer records the outcome of an external transfer attempt. A
// failure sets the payout to failed with the provider's message and leaves
// the vesting clock alone. Success marks the payout and relationship paid
// and notifies the agent.
func (s *Service) CompleteTransfer(ctx context.Context, payout *model.AgentPayout, transferErr error) error {
	if transferErr != nil {
		msg := transferErr.Error()
		if err := s.payouts.UpdateStatus(ctx, payout.ID, model.PayoutFailed, &msg, nil); err != nil {
			return err
		}
		if err := s.events.Emit(ctx, model.EventPayoutFailed, payoutEventPayload{
			PayoutID:       payout.ID,
			RelationshipID: payout.ReferralRelationshipID,
			AgentID:        payout.AgentID,
			AmountCents:    payout.AmountCents,
		}); err != nil {
			s.logger.Error(err, "failed to emit payout failed event")
		}
		if agent, err := s.accounts.Get(ctx, payout.AgentID); err == nil {
			if err := s.emailSvc.SendPayoutFailed(ctx, agent.Email, msg); err != nil {
				s.logger.Error(err, "failed to send payout failure notice", "agent_id", agent.ID.String())
			}
		}
		return nil
	}

	now := time.Now()
	if err := s.payouts.UpdateStatus(ctx, payout.ID, model.PayoutPaid, nil, &now); err != nil {
		return err
	}

	rel, err := s.referrals.Get(ctx, payout.ReferralRelationshipID)
	if err == nil && rel.Status == model.ReferralEligible {
		rel.Status = model.ReferralPaid
		if err := s.referrals.Update(ctx, rel); err != nil {
			s.logger.Error(err, "failed to mark relationship paid")
		}
	}

	if err := s.events.Emit(ctx, model.EventPayoutPaid, payoutEventPayload{
		PayoutID:       payout.ID,
		RelationshipID: payout.ReferralRelationshipID,
		AgentID:        payout.AgentID,
		AmountCents:    payout.AmountCents,
	}); err != nil {
		s.logger.Error(err, "failed to emit payout paid event")
	}

	agent, err := s.accounts.Get(ctx, payout.AgentID)
	if err != nil {
		s.logger.Error(err, "failed to load agent for payout notice")
		return nil
	}
	if err := s.emailSvc.SendPayoutPaid(ctx, agent.Email, payout.AmountCents); err != nil {
		s.logger.Error(err, "failed to send payout notice", "agent_id", agent.ID.String())
	}
	return nil
}

// Retry resets a failed payout to pending so the transfer worker picks it
// up again. Only failed payouts are retryable.
func (s *Service) Retry(ctx context.Context, payoutID uuid.UUID) (*model.AgentPayout, error) {
	payout, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !payout.Retryable() {
		return nil, apperrors.Conflict(fmt.Sprintf("payout is %s, only failed payouts are retryable", payout.Status), nil)
	}
	if err := s.payouts.UpdateStatus(ctx, payoutID, model.PayoutPending, nil, nil); err != nil {
		return nil, err
	}
	payout.Status = model.PayoutPending
	payout.ErrorMessage = nil
	return payout, nil
}

// ListByAgent returns the agent's payouts, newest first.
func (s *Service) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*model.AgentPayout, error) {
	return s.payouts.ListByAgent(ctx, agentID)
}

// ClaimPending marks up to limit pending payouts as processing and returns
// them for transfer. The claim is a single atomic repository operation, so
// concurrent worker replicas never transfer the same payout twice.
func (s *Service) ClaimPending(ctx context.Context, limit int) ([]*model.AgentPayout, error) {
	return s.payouts.ClaimPending(ctx, limit)
}
