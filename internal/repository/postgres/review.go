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

type reviewFlagRepository struct {
	BaseRepository
}

func NewReviewFlagRepository(base BaseRepository) repository.ReviewFlagRepository {
	return &reviewFlagRepository{base}
}

func (r *reviewFlagRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReviewFlag, error) {
	query := `
		SELECT id, review_id, status, notes, created_at, updated_at
		FROM review_flags
		WHERE id = $1
	`
	var flag model.ReviewFlag
	err := r.db.GetContext(ctx, &flag, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("review flag", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review flag: %w", err)
	}
	return &flag, nil
}

func (r *reviewFlagRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReviewFlagStatus, notes string) error {
	query := `
		UPDATE review_flags
		SET status = $1, notes = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, notes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update review flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("review flag", nil)
	}
	return nil
}
