package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	apperrors "github.com/homebase/referral-api/pkg/errors"
)

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, role, subscription_status, trial_ends_at,
			max_houses_allowed, plan_tier, referral_code, current_credit_cents,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Role,
		account.SubscriptionStatus,
		account.TrialEndsAt,
		account.MaxHousesAllowed,
		account.PlanTier,
		account.ReferralCode,
		account.CurrentCreditCents,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `
		SELECT id, email, role, subscription_status, trial_ends_at,
		       max_houses_allowed, plan_tier, referral_code, current_credit_cents,
		       created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	query := `
		SELECT id, email, role, subscription_status, trial_ends_at,
		       max_houses_allowed, plan_tier, referral_code, current_credit_cents,
		       created_at, updated_at
		FROM accounts
		WHERE referral_code = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET email = $1, subscription_status = $2, trial_ends_at = $3,
		    max_houses_allowed = $4, plan_tier = $5, updated_at = $6
		WHERE id = $7
	`
	account.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.SubscriptionStatus,
		account.TrialEndsAt,
		account.MaxHousesAllowed,
		account.PlanTier,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return r.requireRow(result)
}

func (r *accountRepository) UpdateSubscriptionStatus(ctx context.Context, id uuid.UUID, status model.SubscriptionStatus) error {
	query := `
		UPDATE accounts
		SET subscription_status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return r.requireRow(result)
}

func (r *accountRepository) UpdateCredits(ctx context.Context, id uuid.UUID, credits int64) error {
	if credits < 0 {
		return apperrors.Conflict("credits must not be negative", nil)
	}
	query := `
		UPDATE accounts
		SET current_credit_cents = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, credits, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update credits: %w", err)
	}
	return r.requireRow(result)
}

func (r *accountRepository) List(ctx context.Context, filters *model.AccountFilters) ([]*model.Account, error) {
	query := `
		SELECT id, email, role, subscription_status, trial_ends_at,
		       max_houses_allowed, plan_tier, referral_code, current_credit_cents,
		       created_at, updated_at
		FROM accounts
		WHERE ($1 = '' OR role = $1)
		  AND ($2 = '' OR subscription_status = $2)
		ORDER BY created_at DESC
	`
	role, status := "", ""
	if filters != nil {
		role = string(filters.Role)
		status = string(filters.SubscriptionStatus)
	}

	var accounts []*model.Account
	err := r.db.SelectContext(ctx, &accounts, query, role, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("account", nil)
	}
	return nil
}
