package payout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/email"
	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository/memory"
	"github.com/homebase/referral-api/internal/service/event"
	"github.com/homebase/referral-api/internal/service/reward"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "payout")

type fixture struct {
	accounts  *memory.AccountRepository
	referrals *memory.ReferralRepository
	payouts   *memory.PayoutRepository
	outbox    *memory.OutboxRepository
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	programs, err := reward.NewRegistry(config.RewardsConfig{
		PerReferralCents: 100,
		HomeownerCaps: map[string]int64{
			model.TierBase:        500,
			model.TierPremium:     2000,
			model.TierPremiumPlus: 4000,
		},
		ContractorCaps: map[string]int64{
			model.TierBasic: 2000,
			model.TierPro:   4000,
		},
		AgentCommissionCents: 1000,
		VestingMonths:        4,
	})
	require.NoError(t, err)

	f := &fixture{
		accounts:  memory.NewAccountRepository(),
		referrals: memory.NewReferralRepository(),
		payouts:   memory.NewPayoutRepository(),
		outbox:    memory.NewOutboxRepository(),
	}
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	f.svc = NewService(f.accounts, f.referrals, f.payouts, programs,
		event.NewService(f.outbox), email.NoopService{}, testMetrics, log)
	return f
}

func (f *fixture) seedAgentRelationship(t *testing.T) *model.ReferralRelationship {
	t.Helper()
	ctx := context.Background()

	agent := &model.Account{
		ID:                 uuid.New(),
		Email:              "agent@example.com",
		Role:               model.RoleAgent,
		SubscriptionStatus: model.SubscriptionActive,
		ReferralCode:       uuid.New().String()[:8],
	}
	require.NoError(t, f.accounts.Create(ctx, agent))

	rel := &model.ReferralRelationship{
		ID:         uuid.New(),
		ReferrerID: agent.ID,
		RefereeID:  uuid.New(),
		Status:     model.ReferralTrial,
	}
	require.NoError(t, f.referrals.Create(ctx, rel))
	return rel
}

func paidCycles(t *testing.T, f *fixture, rel *model.ReferralRelationship, n int) *model.ReferralRelationship {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		current, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		require.NoError(t, f.svc.OnBillingCycle(ctx, current, model.CyclePaid))
	}
	updated, err := f.referrals.Get(ctx, rel.ID)
	require.NoError(t, err)
	return updated
}

func TestOnBillingCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("paid cycles advance the vesting clock", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)

		updated := paidCycles(t, f, rel, 3)
		assert.Equal(t, 3, updated.ConsecutiveMonthsPaid)
		assert.Equal(t, model.ReferralActive, updated.Status)

		pending, err := f.payouts.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending, "no payout before the fourth paid month")
	})

	t.Run("fourth paid month creates exactly one pending payout", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)

		updated := paidCycles(t, f, rel, 4)
		assert.Equal(t, 4, updated.ConsecutiveMonthsPaid)
		assert.Equal(t, model.ReferralEligible, updated.Status)

		pending, err := f.payouts.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, int64(1000), pending[0].AmountCents)
		assert.Equal(t, rel.ReferrerID, pending[0].AgentID)
	})

	t.Run("further paid cycles never mint a second payout", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)

		paidCycles(t, f, rel, 7)

		pending, err := f.payouts.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("failed cycle resets the clock", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)

		updated := paidCycles(t, f, rel, 3)
		require.NoError(t, f.svc.OnBillingCycle(ctx, updated, model.CycleFailed))

		updated, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.ConsecutiveMonthsPaid)

		// The clock restarts from zero: three more paid months are not enough.
		updated = paidCycles(t, f, rel, 3)
		assert.Equal(t, 3, updated.ConsecutiveMonthsPaid)
		pending, err := f.payouts.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("voided cycle terminates the relationship", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)

		updated := paidCycles(t, f, rel, 2)
		require.NoError(t, f.svc.OnBillingCycle(ctx, updated, model.CycleVoided))

		updated, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReferralVoided, updated.Status)
		assert.Equal(t, 0, updated.ConsecutiveMonthsPaid)
	})

	t.Run("voided relationships are inert", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)
		rel.Status = model.ReferralVoided
		require.NoError(t, f.referrals.Update(ctx, rel))

		require.NoError(t, f.svc.OnBillingCycle(ctx, rel, model.CyclePaid))

		updated, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.ConsecutiveMonthsPaid)
		assert.Equal(t, model.ReferralVoided, updated.Status)
	})

	t.Run("unknown cycle result", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)
		err := f.svc.OnBillingCycle(ctx, rel, model.CycleResult("refunded"))
		assert.Error(t, err)
	})
}

func TestCompleteTransfer(t *testing.T) {
	ctx := context.Background()

	vestedPayout := func(t *testing.T, f *fixture) (*model.ReferralRelationship, *model.AgentPayout) {
		rel := f.seedAgentRelationship(t)
		paidCycles(t, f, rel, 4)
		pending, err := f.payouts.ListPending(ctx, 1)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		updated, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		return updated, pending[0]
	}

	t.Run("success marks payout and relationship paid", func(t *testing.T) {
		f := newFixture(t)
		rel, p := vestedPayout(t, f)

		require.NoError(t, f.svc.CompleteTransfer(ctx, p, nil))

		stored, err := f.payouts.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutPaid, stored.Status)
		assert.NotNil(t, stored.PaidAt)

		updatedRel, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReferralPaid, updatedRel.Status)
	})

	t.Run("failure records the error and keeps the clock", func(t *testing.T) {
		f := newFixture(t)
		rel, p := vestedPayout(t, f)

		require.NoError(t, f.svc.CompleteTransfer(ctx, p, errors.New("provider unavailable")))

		stored, err := f.payouts.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, "provider unavailable", *stored.ErrorMessage)

		updatedRel, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, updatedRel.ConsecutiveMonthsPaid, "transfer failure never rewinds vesting")
		assert.Equal(t, model.ReferralEligible, updatedRel.Status)
	})
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("failed payout goes back to pending", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)
		paidCycles(t, f, rel, 4)
		pending, err := f.payouts.ListPending(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, f.svc.CompleteTransfer(ctx, pending[0], errors.New("timeout")))

		retried, err := f.svc.Retry(ctx, pending[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutPending, retried.Status)
		assert.Nil(t, retried.ErrorMessage)
	})

	t.Run("pending payout is not retryable", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)
		paidCycles(t, f, rel, 4)
		pending, err := f.payouts.ListPending(ctx, 1)
		require.NoError(t, err)

		_, err = f.svc.Retry(ctx, pending[0].ID)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("paid payout is not retryable", func(t *testing.T) {
		f := newFixture(t)
		rel := f.seedAgentRelationship(t)
		paidCycles(t, f, rel, 4)
		pending, err := f.payouts.ListPending(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, f.svc.CompleteTransfer(ctx, pending[0], nil))

		_, err = f.svc.Retry(ctx, pending[0].ID)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("unknown payout", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Retry(ctx, uuid.New())
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestClaimPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		rel := f.seedAgentRelationship(t)
		paidCycles(t, f, rel, 4)
	}

	claimed, err := f.svc.ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
	for _, p := range claimed {
		assert.Equal(t, model.PayoutProcessing, p.Status)
	}

	remaining, err := f.payouts.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	second, err := f.svc.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, second, 1, "a claimed payout is never handed out twice")
	for _, p := range claimed {
		assert.NotEqual(t, p.ID, second[0].ID)
	}

	third, err := f.svc.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestOutboxEventsEmitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rel := f.seedAgentRelationship(t)
	paidCycles(t, f, rel, 4)

	pending, err := f.payouts.ListPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.CompleteTransfer(ctx, pending[0], nil))

	var types []string
	for _, e := range f.outbox.Events() {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventPayoutCreated)
	assert.Contains(t, types, model.EventPayoutPaid)
}
