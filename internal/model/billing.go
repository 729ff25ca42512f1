package model

import (
	"time"

	"github.com/google/uuid"
)

type CycleResult string

const (
	CyclePaid   CycleResult = "paid"
	CycleFailed CycleResult = "failed"
	CycleVoided CycleResult = "voided"
)

// BillingEvent is the inbound notification that a subscription period
// resolved, delivered by the billing provider once per period per account.
type BillingEvent struct {
	AccountID   uuid.UUID   `json:"account_id"`
	InvoiceID   string      `json:"invoice_id"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	Status      CycleResult `json:"status"`
	AmountCents int64       `json:"amount_cents"`
}

// BillingHistoryEvent is the append-only audit record of a processed billing
// event, kept for user-facing billing history. Rows are never mutated. The
// latest period_start per account doubles as the ordering watermark.
type BillingHistoryEvent struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	AccountID   uuid.UUID   `json:"account_id" db:"account_id"`
	InvoiceID   string      `json:"invoice_id" db:"invoice_id"`
	PeriodStart time.Time   `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time   `json:"period_end" db:"period_end"`
	Status      CycleResult `json:"status" db:"status"`
	AmountCents int64       `json:"amount_cents" db:"amount_cents"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}
