package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	apperrors "github.com/homebase/referral-api/pkg/errors"
)

const uniqueViolation = "23505"

type referralRepository struct {
	BaseRepository
}

func NewReferralRepository(base BaseRepository) repository.ReferralRepository {
	return &referralRepository{base}
}

func (r *referralRepository) Create(ctx context.Context, rel *model.ReferralRelationship) error {
	query := `
		INSERT INTO referral_relationships (
			id, referrer_id, referee_id, signup_date, status,
			consecutive_months_paid, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.CreatedAt = time.Now()
	rel.UpdatedAt = rel.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		rel.ID,
		rel.ReferrerID,
		rel.RefereeID,
		rel.SignupDate,
		rel.Status,
		rel.ConsecutiveMonthsPaid,
		rel.CreatedAt,
		rel.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.Conflict("referee already has a referrer", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create referral relationship: %w", err)
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReferralRelationship, error) {
	query := `
		SELECT id, referrer_id, referee_id, signup_date, status,
		       consecutive_months_paid, created_at, updated_at
		FROM referral_relationships
		WHERE id = $1
	`
	var rel model.ReferralRelationship
	err := r.db.GetContext(ctx, &rel, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("referral relationship", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral relationship: %w", err)
	}
	return &rel, nil
}

func (r *referralRepository) GetByReferee(ctx context.Context, refereeID uuid.UUID) (*model.ReferralRelationship, error) {
	query := `
		SELECT id, referrer_id, referee_id, signup_date, status,
		       consecutive_months_paid, created_at, updated_at
		FROM referral_relationships
		WHERE referee_id = $1
	`
	var rel model.ReferralRelationship
	err := r.db.GetContext(ctx, &rel, query, refereeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("referral relationship", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral by referee: %w", err)
	}
	return &rel, nil
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*model.ReferralRelationship, error) {
	query := `
		SELECT id, referrer_id, referee_id, signup_date, status,
		       consecutive_months_paid, created_at, updated_at
		FROM referral_relationships
		WHERE referrer_id = $1
		ORDER BY signup_date DESC
	`
	var rels []*model.ReferralRelationship
	err := r.db.SelectContext(ctx, &rels, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return rels, nil
}

func (r *referralRepository) CountActiveByReferrer(ctx context.Context, referrerID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM referral_relationships
		WHERE referrer_id = $1 AND status = $2
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, referrerID, model.ReferralActive)
	if err != nil {
		return 0, fmt.Errorf("failed to count active referrals: %w", err)
	}
	return count, nil
}

func (r *referralRepository) Update(ctx context.Context, rel *model.ReferralRelationship) error {
	if rel.ConsecutiveMonthsPaid < 0 {
		return apperrors.Conflict("consecutive months paid must not be negative", nil)
	}
	query := `
		UPDATE referral_relationships
		SET status = $1, consecutive_months_paid = $2, updated_at = $3
		WHERE id = $4
	`
	rel.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		rel.Status,
		rel.ConsecutiveMonthsPaid,
		rel.UpdatedAt,
		rel.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral relationship: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("referral relationship", nil)
	}
	return nil
}
