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
)

type billingHistoryRepository struct {
	BaseRepository
}

func NewBillingHistoryRepository(base BaseRepository) repository.BillingHistoryRepository {
	return &billingHistoryRepository{base}
}

// Append writes an audit row. Rows are never updated or deleted.
func (r *billingHistoryRepository) Append(ctx context.Context, event *model.BillingHistoryEvent) error {
	query := `
		INSERT INTO billing_history_events (
			id, account_id, invoice_id, period_start, period_end,
			status, amount_cents, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.AccountID,
		event.InvoiceID,
		event.PeriodStart,
		event.PeriodEnd,
		event.Status,
		event.AmountCents,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append billing history event: %w", err)
	}
	return nil
}

func (r *billingHistoryRepository) LatestPeriodStart(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT period_start
		FROM billing_history_events
		WHERE account_id = $1
		ORDER BY period_start DESC
		LIMIT 1
	`
	var ts time.Time
	err := r.db.GetContext(ctx, &ts, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest period start: %w", err)
	}
	return &ts, nil
}

func (r *billingHistoryRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.BillingHistoryEvent, error) {
	query := `
		SELECT id, account_id, invoice_id, period_start, period_end,
		       status, amount_cents, created_at
		FROM billing_history_events
		WHERE account_id = $1
		ORDER BY period_start ASC
	`
	var events []*model.BillingHistoryEvent
	err := r.db.SelectContext(ctx, &events, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing history: %w", err)
	}
	return events, nil
}
