package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
)

// All repository interfaces in one file
type (
	// AccountRepository handles account record operations. Accounts are never
	// hard-deleted.
	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByReferralCode(ctx context.Context, code string) (*model.Account, error)
		Update(ctx context.Context, account *model.Account) error
		UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status model.SubscriptionStatus) error
		UpdateCredits(ctx context.Context, id uuid.UUID, credits int64) error
		List(ctx context.Context, filters *model.AccountFilters) ([]*model.Account, error)
	}

	// ReferralRepository is the referral ledger.
	ReferralRepository interface {
		Create(ctx context.Context, rel *model.ReferralRelationship) error
		Get(ctx context.Context, id uuid.UUID) (*model.ReferralRelationship, error)
		GetByReferee(ctx context.Context, refereeID uuid.UUID) (*model.ReferralRelationship, error)
		ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*model.ReferralRelationship, error)
		CountActiveByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error)
		Update(ctx context.Context, rel *model.ReferralRelationship) error
	}

	// PayoutRepository handles agent payouts. Create must reject a second
	// payout for the same relationship with a Conflict error. ClaimPending
	// must move each pending payout to processing atomically so two callers
	// can never claim the same row.
	PayoutRepository interface {
		Create(ctx context.Context, payout *model.AgentPayout) error
		Get(ctx context.Context, id uuid.UUID) (*model.AgentPayout, error)
		GetByRelationship(ctx context.Context, relationshipID uuid.UUID) (*model.AgentPayout, error)
		ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*model.AgentPayout, error)
		ListPending(ctx context.Context, limit int) ([]*model.AgentPayout, error)
		ClaimPending(ctx context.Context, limit int) ([]*model.AgentPayout, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus, errMsg *string, paidAt *time.Time) error
	}

	// BillingHistoryRepository is append-only.
	BillingHistoryRepository interface {
		Append(ctx context.Context, event *model.BillingHistoryEvent) error
		LatestPeriodStart(ctx context.Context, accountID uuid.UUID) (*time.Time, error)
		ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.BillingHistoryEvent, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error
	}

	ReviewFlagRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.ReviewFlag, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReviewFlagStatus, notes string) error
	}
)
