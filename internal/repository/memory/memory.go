// Package memory holds in-memory repository implementations backing the
// service test suites. They honor the same error contract as the postgres
// repositories: NotFound for missing rows, Conflict for uniqueness and
// non-negativity violations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homebase/referral-api/internal/model"
	"github.com/homebase/referral-api/internal/repository"
	apperrors "github.com/homebase/referral-api/pkg/errors"
)

type AccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[uuid.UUID]*model.Account)}
}

func (r *AccountRepository) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	for _, a := range r.accounts {
		if a.ReferralCode == account.ReferralCode {
			return apperrors.Conflict("referral code already in use", nil)
		}
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *AccountRepository) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *AccountRepository) GetByReferralCode(_ context.Context, code string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("account", nil)
}

func (r *AccountRepository) Update(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return apperrors.NotFound("account", nil)
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *AccountRepository) UpdateSubscriptionStatus(_ context.Context, id uuid.UUID, status model.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return apperrors.NotFound("account", nil)
	}
	a.SubscriptionStatus = status
	return nil
}

func (r *AccountRepository) UpdateCredits(_ context.Context, id uuid.UUID, credits int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if credits < 0 {
		return apperrors.Conflict("credits cannot be negative", nil)
	}
	a, ok := r.accounts[id]
	if !ok {
		return apperrors.NotFound("account", nil)
	}
	a.CurrentCreditCents = credits
	return nil
}

func (r *AccountRepository) List(_ context.Context, filters *model.AccountFilters) ([]*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Account
	for _, a := range r.accounts {
		if filters != nil {
			if filters.Role != "" && a.Role != filters.Role {
				continue
			}
			if filters.SubscriptionStatus != "" && a.SubscriptionStatus != filters.SubscriptionStatus {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

type ReferralRepository struct {
	mu   sync.Mutex
	rels map[uuid.UUID]*model.ReferralRelationship
}

func NewReferralRepository() *ReferralRepository {
	return &ReferralRepository{rels: make(map[uuid.UUID]*model.ReferralRelationship)}
}

func (r *ReferralRepository) Create(_ context.Context, rel *model.ReferralRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	for _, existing := range r.rels {
		if existing.RefereeID == rel.RefereeID {
			return apperrors.Conflict("referee already has a referrer", nil)
		}
	}
	cp := *rel
	r.rels[rel.ID] = &cp
	return nil
}

func (r *ReferralRepository) Get(_ context.Context, id uuid.UUID) (*model.ReferralRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.rels[id]
	if !ok {
		return nil, apperrors.NotFound("referral relationship", nil)
	}
	cp := *rel
	return &cp, nil
}

func (r *ReferralRepository) GetByReferee(_ context.Context, refereeID uuid.UUID) (*model.ReferralRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rel := range r.rels {
		if rel.RefereeID == refereeID {
			cp := *rel
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("referral relationship", nil)
}

func (r *ReferralRepository) ListByReferrer(_ context.Context, referrerID uuid.UUID) ([]*model.ReferralRelationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReferralRelationship
	for _, rel := range r.rels {
		if rel.ReferrerID == referrerID {
			cp := *rel
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignupDate.Before(out[j].SignupDate) })
	return out, nil
}

func (r *ReferralRepository) CountActiveByReferrer(_ context.Context, referrerID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rel := range r.rels {
		if rel.ReferrerID == referrerID && rel.Status == model.ReferralActive {
			count++
		}
	}
	return count, nil
}

func (r *ReferralRepository) Update(_ context.Context, rel *model.ReferralRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rel.ConsecutiveMonthsPaid < 0 {
		return apperrors.Conflict("consecutive months paid cannot be negative", nil)
	}
	if _, ok := r.rels[rel.ID]; !ok {
		return apperrors.NotFound("referral relationship", nil)
	}
	cp := *rel
	r.rels[rel.ID] = &cp
	return nil
}

type PayoutRepository struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*model.AgentPayout
}

func NewPayoutRepository() *PayoutRepository {
	return &PayoutRepository{payouts: make(map[uuid.UUID]*model.AgentPayout)}
}

func (r *PayoutRepository) Create(_ context.Context, payout *model.AgentPayout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	for _, p := range r.payouts {
		if p.ReferralRelationshipID == payout.ReferralRelationshipID {
			return apperrors.Conflict("payout already exists for relationship", nil)
		}
	}
	payout.CreatedAt = time.Now()
	cp := *payout
	r.payouts[payout.ID] = &cp
	return nil
}

func (r *PayoutRepository) Get(_ context.Context, id uuid.UUID) (*model.AgentPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, apperrors.NotFound("payout", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *PayoutRepository) GetByRelationship(_ context.Context, relationshipID uuid.UUID) (*model.AgentPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payouts {
		if p.ReferralRelationshipID == relationshipID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("payout", nil)
}

func (r *PayoutRepository) ListByAgent(_ context.Context, agentID uuid.UUID) ([]*model.AgentPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AgentPayout
	for _, p := range r.payouts {
		if p.AgentID == agentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PayoutRepository) ListPending(_ context.Context, limit int) ([]*model.AgentPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AgentPayout
	for _, p := range r.payouts {
		if p.Status == model.PayoutPending {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PayoutRepository) ClaimPending(_ context.Context, limit int) ([]*model.AgentPayout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*model.AgentPayout
	for _, p := range r.payouts {
		if p.Status == model.PayoutPending {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]*model.AgentPayout, 0, len(pending))
	for _, p := range pending {
		p.Status = model.PayoutProcessing
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *PayoutRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.PayoutStatus, errMsg *string, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return apperrors.NotFound("payout", nil)
	}
	p.Status = status
	p.ErrorMessage = errMsg
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	return nil
}

type BillingHistoryRepository struct {
	mu     sync.Mutex
	events []*model.BillingHistoryEvent
}

func NewBillingHistoryRepository() *BillingHistoryRepository {
	return &BillingHistoryRepository{}
}

func (r *BillingHistoryRepository) Append(_ context.Context, event *model.BillingHistoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *BillingHistoryRepository) LatestPeriodStart(_ context.Context, accountID uuid.UUID) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for _, e := range r.events {
		if e.AccountID != accountID {
			continue
		}
		if latest == nil || e.PeriodStart.After(*latest) {
			t := e.PeriodStart
			latest = &t
		}
	}
	return latest, nil
}

func (r *BillingHistoryRepository) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*model.BillingHistoryEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.BillingHistoryEvent
	for _, e := range r.events {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *OutboxRepository) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if len(out) >= limit {
			break
		}
		pending := e.Status == string(model.OutboxStatusPending)
		due := e.Status == string(model.OutboxStatusRetry) && e.RetryAt != nil && !e.RetryAt.After(now)
		if pending || due {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		e.Status = string(status)
		e.ErrorMessage = errMsg
		e.RetryAt = retryAt
		if status == model.OutboxStatusRetry {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			now := time.Now()
			e.ProcessedAt = &now
		}
		return nil
	}
	return apperrors.NotFound("outbox event", nil)
}

// Events returns a snapshot of everything written to the outbox.
func (r *OutboxRepository) Events() []*model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

type ReviewFlagRepository struct {
	mu    sync.Mutex
	flags map[uuid.UUID]*model.ReviewFlag
}

func NewReviewFlagRepository() *ReviewFlagRepository {
	return &ReviewFlagRepository{flags: make(map[uuid.UUID]*model.ReviewFlag)}
}

// Seed inserts a flag directly.
func (r *ReviewFlagRepository) Seed(flag *model.ReviewFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *flag
	r.flags[flag.ID] = &cp
}

func (r *ReviewFlagRepository) Get(_ context.Context, id uuid.UUID) (*model.ReviewFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		return nil, apperrors.NotFound("review flag", nil)
	}
	cp := *f
	return &cp, nil
}

func (r *ReviewFlagRepository) UpdateStatus(_ context.Context, id uuid.UUID, status model.ReviewFlagStatus, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flags[id]
	if !ok {
		return apperrors.NotFound("review flag", nil)
	}
	f.Status = status
	f.Notes = notes
	return nil
}

var (
	_ repository.AccountRepository        = (*AccountRepository)(nil)
	_ repository.ReferralRepository       = (*ReferralRepository)(nil)
	_ repository.PayoutRepository         = (*PayoutRepository)(nil)
	_ repository.BillingHistoryRepository = (*BillingHistoryRepository)(nil)
	_ repository.OutboxRepository         = (*OutboxRepository)(nil)
	_ repository.ReviewFlagRepository     = (*ReviewFlagRepository)(nil)
)
