package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleHomeowner  Role = "homeowner"
	RoleContractor Role = "contractor"
	RoleAgent      Role = "agent"
)

type SubscriptionStatus string

const (
	SubscriptionTrialing      SubscriptionStatus = "trialing"
	SubscriptionActive        SubscriptionStatus = "active"
	SubscriptionPastDue       SubscriptionStatus = "past_due"
	SubscriptionCanceled      SubscriptionStatus = "canceled"
	SubscriptionGrandfathered SubscriptionStatus = "grandfathered"
)

// Plan tiers. Homeowners are on base/premium/premium_plus, contractors on
// basic/pro. Agents carry no tier; their program pays a flat commission.
const (
	TierBase        = "base"
	TierPremium     = "premium"
	TierPremiumPlus = "premium_plus"
	TierBasic       = "basic"
	TierPro         = "pro"
)

// Account is the per-user subscription and referral state. Accounts are
// never hard-deleted; subscription status carries the soft lifecycle.
type Account struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Email              string             `json:"email" db:"email"`
	Role               Role               `json:"role" db:"role"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	MaxHousesAllowed   int                `json:"max_houses_allowed" db:"max_houses_allowed"`
	PlanTier           string             `json:"plan_tier" db:"plan_tier"`
	ReferralCode       string             `json:"referral_code" db:"referral_code"`
	CurrentCreditCents int64              `json:"current_credit_cents" db:"current_credit_cents"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Trialing accounts must carry a future trial end at creation time.
func (a *Account) Valid() bool {
	if a.SubscriptionStatus == SubscriptionTrialing {
		return a.TrialEndsAt != nil
	}
	return true
}

type AccountFilters struct {
	Role               Role
	SubscriptionStatus SubscriptionStatus
	Search             string
}
