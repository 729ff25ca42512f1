package referral

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository/memory"
	"github.com/homebase/referral-api/internal/service/credit"
	"github.com/homebase/referral-api/internal/service/event"
	"github.com/homebase/referral-api/internal/service/reward"
	apperrors "github.com/homebase/referral-api/pkg/errors"
	"github.com/homebase/referral-api/pkg/logger"
	"github.com/homebase/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "referral")

type fixture struct {
	accounts  *memory.AccountRepository
	referrals *memory.ReferralRepository
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
		outbox:    memory.NewOutboxRepository(),
	}
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	eventSvc := event.NewService(f.outbox)
	creditSvc := credit.NewService(f.accounts, f.referrals, programs, eventSvc, testMetrics, log)
	f.svc = NewService(f.accounts, f.referrals, programs, creditSvc, eventSvc, log)
	return f
}

func (f *fixture) seedAccount(t *testing.T, role model.Role, tier, code string, status model.SubscriptionStatus) *model.Account {
	t.Helper()
	acc := &model.Account{
		ID:                 uuid.New(),
		Email:              code + "@example.com",
		Role:               role,
		SubscriptionStatus: status,
		PlanTier:           tier,
		ReferralCode:       code,
	}
	require.NoError(t, f.accounts.Create(context.Background(), acc))
	return acc
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("trialing referee starts in trial", func(t *testing.T) {
		f := newFixture(t)
		referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionTrialing)

		rel, err := f.svc.Register(ctx, referee.ID, "REF1")
		require.NoError(t, err)
		assert.Equal(t, referrer.ID, rel.ReferrerID)
		assert.Equal(t, model.ReferralTrial, rel.Status)
		assert.Equal(t, 0, rel.ConsecutiveMonthsPaid)
	})

	t.Run("active referee starts active and earns credit", func(t *testing.T) {
		f := newFixture(t)
		referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionActive)

		rel, err := f.svc.Register(ctx, referee.ID, "REF1")
		require.NoError(t, err)
		assert.Equal(t, model.ReferralActive, rel.Status)

		stored, err := f.accounts.Get(ctx, referrer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), stored.CurrentCreditCents)
	})

	t.Run("self referral rejected", func(t *testing.T) {
		f := newFixture(t)
		acc := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)

		_, err := f.svc.Register(ctx, acc.ID, "REF1")
		assert.Error(t, err)
	})

	t.Run("second referrer rejected", func(t *testing.T) {
		f := newFixture(t)
		f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		f.seedAccount(t, model.RoleContractor, model.TierBasic, "REF2", model.SubscriptionActive)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF3", model.SubscriptionTrialing)

		_, err := f.svc.Register(ctx, referee.ID, "REF1")
		require.NoError(t, err)

		_, err = f.svc.Register(ctx, referee.ID, "REF2")
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionTrialing)

		_, err := f.svc.Register(ctx, referee.ID, "NOPE")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("reflects active referrals and cap", func(t *testing.T) {
		f := newFixture(t)
		referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		for i := 0; i < 8; i++ {
			referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, uuid.New().String()[:8], model.SubscriptionActive)
			_, err := f.svc.Register(ctx, referee.ID, "REF1")
			require.NoError(t, err)
		}

		summary, err := f.svc.Summary(ctx, referrer.ID)
		require.NoError(t, err)
		assert.Equal(t, "REF1", summary.ReferralCode)
		assert.Equal(t, 8, summary.ReferralCount)
		assert.Equal(t, int64(800), summary.EarnedCreditCents)
		assert.Equal(t, int64(500), summary.CurrentCreditCents, "stored credit is clamped")
		require.NotNil(t, summary.CreditCapCents)
		assert.Equal(t, int64(500), *summary.CreditCapCents)
	})

	t.Run("agent summary has no cap", func(t *testing.T) {
		f := newFixture(t)
		agent := f.seedAccount(t, model.RoleAgent, "", "AGT1", model.SubscriptionActive)

		summary, err := f.svc.Summary(ctx, agent.ID)
		require.NoError(t, err)
		assert.Nil(t, summary.CreditCapCents)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Summary(ctx, uuid.New())
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestVoid(t *testing.T) {
	ctx := context.Background()

	t.Run("voids and revokes credit", func(t *testing.T) {
		f := newFixture(t)
		referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionActive)
		rel, err := f.svc.Register(ctx, referee.ID, "REF1")
		require.NoError(t, err)

		require.NoError(t, f.svc.Void(ctx, rel.ID, "fraudulent signup"))

		updated, err := f.referrals.Get(ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReferralVoided, updated.Status)
		assert.Equal(t, 0, updated.ConsecutiveMonthsPaid)

		stored, err := f.accounts.Get(ctx, referrer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.CurrentCreditCents)

		var types []string
		for _, e := range f.outbox.Events() {
			types = append(types, e.EventType)
		}
		assert.Contains(t, types, model.EventReferralVoided)
	})

	t.Run("idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
		referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionActive)
		rel, err := f.svc.Register(ctx, referee.ID, "REF1")
		require.NoError(t, err)

		require.NoError(t, f.svc.Void(ctx, rel.ID, "fraud"))
		require.NoError(t, f.svc.Void(ctx, rel.ID, "fraud again"))
	})

	t.Run("unknown relationship", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.Void(ctx, uuid.New(), "fraud")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestSummaryCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)

	summary, err := f.svc.Summary(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ReferralCount)

	referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionActive)
	_, err = f.svc.Register(ctx, referee.ID, "REF1")
	require.NoError(t, err)

	summary, err = f.svc.Summary(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReferralCount, "registration invalidates the cached summary")
}

func TestSummaryCallerCannotMutateCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	referrer := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF1", model.SubscriptionActive)
	referee := f.seedAccount(t, model.RoleHomeowner, model.TierBase, "REF2", model.SubscriptionActive)
	_, err := f.svc.Register(ctx, referee.ID, "REF1")
	require.NoError(t, err)

	first, err := f.svc.Summary(ctx, referrer.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CreditCapCents)

	first.ReferralCount = 99
	first.ReferralCode = "HACKED"
	*first.CreditCapCents = 1

	second, err := f.svc.Summary(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ReferralCount)
	assert.Equal(t, "REF1", second.ReferralCode)
	require.NotNil(t, second.CreditCapCents)
	assert.Equal(t, int64(500), *second.CreditCapCents)
}
