package model

import (
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutFailed     PayoutStatus = "failed"
)

// AgentPayout is the one-time commission owed to an agent once a referred
// account has paid four consecutive months. At most one payout exists per
// referral relationship; the unique constraint on ReferralRelationshipID
// enforces it at the write boundary.
type AgentPayout struct {
	ID                     uuid.UUID    `json:"id" db:"id"`
	ReferralRelationshipID uuid.UUID    `json:"referral_relationship_id" db:"referral_relationship_id"`
	AgentID                uuid.UUID    `json:"agent_id" db:"agent_id"`
	AmountCents            int64        `json:"amount_cents" db:"amount_cents"`
	Status                 PayoutStatus `json:"status" db:"status"`
	ErrorMessage           *string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt              time.Time    `json:"created_at" db:"created_at"`
	PaidAt                 *time.Time   `json:"paid_at,omitempty" db:"paid_at"`
}

// Retryable reports whether the payout may be reset to pending for another
// transfer attempt. A transfer failure is a financial-transfer problem, not
// a re-evaluation of eligibility.
func (p *AgentPayout) Retryable() bool {
	return p.Status == PayoutFailed
}
