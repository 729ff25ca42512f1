package reward

import (
	"fmt"

	"github.com/homebase/referral-api/internal/config"
	"github.com/homebase/referral-api/internal/model"
)

// Cap is the monthly recurring credit cap for a referrer. Bounded is false
// for programs without a recurring credit (agents).
type Cap struct {
	Cents   int64
	Bounded bool
}

// Program describes the reward scheme for one account role. The three
// implementations form a closed set; unknown roles or tiers are rejected
// when the registry is built, not branched on at request time.
type Program interface {
	Role() model.Role
	// Cap returns the recurring credit cap for the given plan tier.
	Cap(tier string) (Cap, error)
	// PerReferralCents is the recurring credit earned per active referral.
	PerReferralCents() int64
	// CommissionCents is the one-time payout per vested referral.
	CommissionCents() int64
}

type homeownerProgram struct {
	caps        map[string]int64
	perReferral int64
}

func (p homeownerProgram) Role() model.Role { return model.RoleHomeowner }

func (p homeownerProgram) Cap(tier string) (Cap, error) {
	cents, ok := p.caps[tier]
	if !ok {
		return Cap{}, fmt.Errorf("unknown homeowner tier %q", tier)
	}
	return Cap{Cents: cents, Bounded: true}, nil
}

func (p homeownerProgram) PerReferralCents() int64 { return p.perReferral }
func (p homeownerProgram) CommissionCents() int64  { return 0 }

type contractorProgram struct {
	caps        map[string]int64
	perReferral int64
}

func (p contractorProgram) Role() model.Role { return model.RoleContractor }

func (p contractorProgram) Cap(tier string) (Cap, error) {
	cents, ok := p.caps[tier]
	if !ok {
		return Cap{}, fmt.Errorf("unknown contractor tier %q", tier)
	}
	return Cap{Cents: cents, Bounded: true}, nil
}

func (p contractorProgram) PerReferralCents() int64 { return p.perReferral }
func (p contractorProgram) CommissionCents() int64  { return 0 }

type agentProgram struct {
	commission int64
}

func (p agentProgram) Role() model.Role        { return model.RoleAgent }
func (p agentProgram) Cap(string) (Cap, error) { return Cap{Bounded: false}, nil }
func (p agentProgram) PerReferralCents() int64 { return 0 }
func (p agentProgram) CommissionCents() int64  { return p.commission }

// Registry resolves roles to their reward program. Built once from config
// at startup.
type Registry struct {
	byRole        map[model.Role]Program
	vestingMonths int
}

func NewRegistry(cfg config.RewardsConfig) (*Registry, error) {
	if cfg.PerReferralCents <= 0 {
		return nil, fmt.Errorf("per_referral_cents must be positive")
	}
	if cfg.AgentCommissionCents <= 0 {
		return nil, fmt.Errorf("agent_commission_cents must be positive")
	}
	if cfg.VestingMonths <= 0 {
		return nil, fmt.Errorf("vesting_months must be positive")
	}
	for _, tier := range []string{model.TierBase, model.TierPremium, model.TierPremiumPlus} {
		if _, ok := cfg.HomeownerCaps[tier]; !ok {
			return nil, fmt.Errorf("homeowner cap for tier %q missing", tier)
		}
	}
	for _, tier := range []string{model.TierBasic, model.TierPro} {
		if _, ok := cfg.ContractorCaps[tier]; !ok {
			return nil, fmt.Errorf("contractor cap for tier %q missing", tier)
		}
	}

	return &Registry{
		byRole: map[model.Role]Program{
			model.RoleHomeowner:  homeownerProgram{caps: cfg.HomeownerCaps, perReferral: cfg.PerReferralCents},
			model.RoleContractor: contractorProgram{caps: cfg.ContractorCaps, perReferral: cfg.PerReferralCents},
			model.RoleAgent:      agentProgram{commission: cfg.AgentCommissionCents},
		},
		vestingMonths: cfg.VestingMonths,
	}, nil
}

func (r *Registry) ForRole(role model.Role) (Program, error) {
	p, ok := r.byRole[role]
	if !ok {
		return nil, fmt.Errorf("no reward program for role %q", role)
	}
	return p, nil
}

// VestingMonths is the number of consecutive paid months before an agent
// commission becomes payable.
func (r *Registry) VestingMonths() int {
	return r.vestingMonths
}
