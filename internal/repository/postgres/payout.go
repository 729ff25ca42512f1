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

type payoutRepository struct {
	BaseRepository
}

func NewPayoutRepository(base BaseRepository) repository.PayoutRepository {
	return &payoutRepository{base}
}

// Create inserts the payout. The unique index on referral_relationship_id is
// the at-most-one-payout guard; a violation surfaces as Conflict.
func (r *payoutRepository) Create(ctx context.Context, payout *model.AgentPayout) error {
	query := `
		INSERT INTO agent_payouts (
			id, referral_relationship_id, agent_id, amount_cents,
			status, error_message, created_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	payout.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		payout.ID,
		payout.ReferralRelationshipID,
		payout.AgentID,
		payout.AmountCents,
		payout.Status,
		payout.ErrorMessage,
		payout.CreatedAt,
		payout.PaidAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.Conflict("payout already exists for relationship", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (r *payoutRepository) Get(ctx context.Context, id uuid.UUID) (*model.AgentPayout, error) {
	query := `
		SELECT id, referral_relationship_id, agent_id, amount_cents,
		       status, error_message, created_at, paid_at
		FROM agent_payouts
		WHERE id = $1
	`
	var payout model.AgentPayout
	err := r.db.GetContext(ctx, &payout, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("payout", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return &payout, nil
}

func (r *payoutRepository) GetByRelationship(ctx context.Context, relationshipID uuid.UUID) (*model.AgentPayout, error) {
	query := `
		SELECT id, referral_relationship_id, agent_id, amount_cents,
		       status, error_message, created_at, paid_at
		FROM agent_payouts
		WHERE referral_relationship_id = $1
	`
	var payout model.AgentPayout
	err := r.db.GetContext(ctx, &payout, query, relationshipID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("payout", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout by relationship: %w", err)
	}
	return &payout, nil
}

func (r *payoutRepository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]*model.AgentPayout, error) {
	query := `
		SELECT id, referral_relationship_id, agent_id, amount_cents,
		       status, error_message, created_at, paid_at
		FROM agent_payouts
		WHERE agent_id = $1
		ORDER BY created_at DESC
	`
	var payouts []*model.AgentPayout
	err := r.db.SelectContext(ctx, &payouts, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

func (r *payoutRepository) ListPending(ctx context.Context, limit int) ([]*model.AgentPayout, error) {
	query := `
		SELECT id, referral_relationship_id, agent_id, amount_cents,
		       status, error_message, created_at, paid_at
		FROM agent_payouts
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var payouts []*model.AgentPayout
	err := r.db.SelectContext(ctx, &payouts, query, model.PayoutPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payouts: %w", err)
	}
	return payouts, nil
}

// ClaimPending flips up to limit pending payouts to processing in a single
// statement. SKIP LOCKED keeps the select and the update atomic per row, so
// concurrent worker replicas never claim the same payout.
func (r *payoutRepository) ClaimPending(ctx context.Context, limit int) ([]*model.AgentPayout, error) {
	query := `
		UPDATE agent_payouts
		SET status = $1
		WHERE id IN (
			SELECT id
			FROM agent_payouts
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, referral_relationship_id, agent_id, amount_cents,
		          status, error_message, created_at, paid_at
	`
	var payouts []*model.AgentPayout
	err := r.db.SelectContext(ctx, &payouts, query, model.PayoutProcessing, model.PayoutPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending payouts: %w", err)
	}
	return payouts, nil
}

func (r *payoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PayoutStatus, errMsg *string, paidAt *time.Time) error {
	query := `
		UPDATE agent_payouts
		SET status = $1, error_message = $2, paid_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, errMsg, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to update payout status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("payout", nil)
	}
	return nil
}
