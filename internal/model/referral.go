package model

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	// ReferralTrial means the referee is still in their free trial.
	ReferralTrial ReferralStatus = "trial"
	// ReferralActive means the referee is paying.
	ReferralActive ReferralStatus = "active"
	// ReferralEligible means the vesting threshold was reached and a payout
	// exists but has not been confirmed paid. Agent-sourced referrals only.
	ReferralEligible ReferralStatus = "eligible"
	// ReferralPaid means the agent commission was transferred.
	ReferralPaid ReferralStatus = "paid"
	// ReferralVoided is terminal: the relationship was flagged fraudulent or
	// the referee's subscription was canceled. No further transitions.
	ReferralVoided ReferralStatus = "voided"
)

// ReferralRelationship links a referee to the single referrer whose code was
// used at signup. ConsecutiveMonthsPaid is the agent-commission vesting
// clock: it increments once per successful billing cycle for the referee and
// resets to zero on any failed cycle.
type ReferralRelationship struct {
	ID                    uuid.UUID      `json:"id" db:"id"`
	ReferrerID            uuid.UUID      `json:"referrer_id" db:"referrer_id"`
	RefereeID             uuid.UUID      `json:"referee_id" db:"referee_id"`
	SignupDate            time.Time      `json:"signup_date" db:"signup_date"`
	Status                ReferralStatus `json:"status" db:"status"`
	ConsecutiveMonthsPaid int            `json:"consecutive_months_paid" db:"consecutive_months_paid"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the relationship accepts further billing-cycle
// processing.
func (r *ReferralRelationship) Terminal() bool {
	return r.Status == ReferralVoided
}

// ReferralSummary is the read model served to referrers.
type ReferralSummary struct {
	ReferralCode       string `json:"referral_code"`
	ReferralCount      int    `json:"referral_count"`
	EarnedCreditCents  int64  `json:"earned_credit_cents"`
	CurrentCreditCents int64  `json:"current_credit_cents"`
	CreditCapCents     *int64 `json:"credit_cap_cents,omitempty"`
}
