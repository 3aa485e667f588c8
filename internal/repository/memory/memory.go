// Package memory is an in-process implementation of repository.Store. It backs
// tests and single-node development runs without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/repository"
)

// Store keeps every record in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu        sync.Mutex
	accounts  map[string]*domain.Account
	plans     map[string]*domain.FloorPlan
	referrals []*domain.Referral
	events    []*domain.SubscriptionEvent
}

var _ repository.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		plans:    make(map[string]*domain.FloorPlan),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.SubscriptionExpiresAt != nil {
		t := *a.SubscriptionExpiresAt
		c.SubscriptionExpiresAt = &t
	}
	if a.ReferredBy != nil {
		id := *a.ReferredBy
		c.ReferredBy = &id
	}
	return &c
}

func copyPlan(p *domain.FloorPlan) *domain.FloorPlan {
	c := *p
	c.Spec.Features = append([]string(nil), p.Spec.Features...)
	if p.MaterialEstimate != nil {
		e := *p.MaterialEstimate
		c.MaterialEstimate = &e
	}
	if p.ComplianceReport != nil {
		r := *p.ComplianceReport
		r.Checks = make(map[string]domain.ComplianceCheck, len(p.ComplianceReport.Checks))
		for k, v := range p.ComplianceReport.Checks {
			r.Checks[k] = v
		}
		r.Recommendations = append([]string(nil), p.ComplianceReport.Recommendations...)
		r.CriticalIssues = append([]string(nil), p.ComplianceReport.CriticalIssues...)
		c.ComplianceReport = &r
	}
	if p.ShareToken != nil {
		t := *p.ShareToken
		c.ShareToken = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// --- accounts ---

func (s *Store) uniqueTaken(a *domain.Account) bool {
	for id, other := range s.accounts {
		if id == a.ID {
			continue
		}
		if other.Email == a.Email {
			return true
		}
		if a.ReferralCode != "" && other.ReferralCode == a.ReferralCode {
			return true
		}
	}
	return false
}

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok || s.uniqueTaken(a) {
		return repository.ErrDuplicate
	}
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

func (s *Store) FindAccountByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, nil
}

func (s *Store) findAccount(match func(*domain.Account) bool) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if match(a) {
			return copyAccount(a)
		}
	}
	return nil
}

func (s *Store) FindAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	return s.findAccount(func(a *domain.Account) bool { return a.Email == email }), nil
}

func (s *Store) FindAccountByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	if code == "" {
		return nil, nil
	}
	return s.findAccount(func(a *domain.Account) bool { return a.ReferralCode == code }), nil
}

func (s *Store) MutateAccount(_ context.Context, id string, fn func(a *domain.Account) error) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := copyAccount(current)
	if err := fn(a); err != nil {
		return nil, err
	}
	// email and referral linkage are not writable through MutateAccount
	a.Email = current.Email
	a.ReferredBy, a.TotalReferrals, a.ReferralCredits = current.ReferredBy, current.TotalReferrals, current.ReferralCredits
	if s.uniqueTaken(a) {
		return nil, repository.ErrDuplicate
	}
	s.accounts[id] = copyAccount(a)
	return a, nil
}

func (s *Store) sortedAccounts(less func(a, b *domain.Account) bool) []*domain.Account {
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) ListAccounts(_ context.Context, limit, offset int) ([]*domain.Account, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedAccounts(func(a, b *domain.Account) bool { return a.CreatedAt.After(b.CreatedAt) })
	var out []*domain.Account
	for _, a := range page(all, limit, offset) {
		out = append(out, copyAccount(a))
	}
	return out, len(all), nil
}

func (s *Store) TopReferrers(_ context.Context, limit int) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedAccounts(func(a, b *domain.Account) bool {
		if a.TotalReferrals != b.TotalReferrals {
			return a.TotalReferrals > b.TotalReferrals
		}
		if a.ReferralCredits != b.ReferralCredits {
			return a.ReferralCredits > b.ReferralCredits
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	var out []*domain.Account
	for _, a := range all {
		if a.TotalReferrals == 0 || len(out) == limit {
			break
		}
		out = append(out, copyAccount(a))
	}
	return out, nil
}

func (s *Store) CountAccountsByTier(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, a := range s.accounts {
		counts[a.SubscriptionTier]++
	}
	return counts, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.accounts, id)
	for pid, p := range s.plans {
		if p.OwnerID == id {
			delete(s.plans, pid)
		}
	}
	return nil
}

// --- floor plans ---

func (s *Store) CreatePlan(_ context.Context, p *domain.FloorPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[p.ID]; ok {
		return repository.ErrDuplicate
	}
	s.plans[p.ID] = copyPlan(p)
	return nil
}

func (s *Store) FindPlan(_ context.Context, id, ownerID string) (*domain.FloorPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok || (ownerID != "" && p.OwnerID != ownerID) {
		return nil, nil
	}
	return copyPlan(p), nil
}

func (s *Store) FindPlanByShareToken(_ context.Context, token string) (*domain.FloorPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.IsPublic && p.ShareToken != nil && *p.ShareToken == token {
			return copyPlan(p), nil
		}
	}
	return nil, nil
}

func (s *Store) ListPlans(_ context.Context, f domain.PlanFilter) ([]*domain.FloorPlan, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*domain.FloorPlan
	for _, p := range s.plans {
		if p.OwnerID == f.OwnerID && (f.Status == "" || p.Status == f.Status) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	var out []*domain.FloorPlan
	for _, p := range page(all, f.Limit, f.Offset()) {
		out = append(out, copyPlan(p))
	}
	return out, len(all), nil
}

func (s *Store) FinishPlan(_ context.Context, p *domain.FloorPlan) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.plans[p.ID]
	if !ok || current.Status != domain.PlanGenerating {
		return false, nil
	}
	next := copyPlan(current)
	next.Status = p.Status
	next.GeneratedText = p.GeneratedText
	next.MaterialEstimate = p.MaterialEstimate
	next.ComplianceReport = p.ComplianceReport
	next.ErrorMessage = p.ErrorMessage
	next.UpdatedAt = p.UpdatedAt
	next.CompletedAt = p.CompletedAt
	s.plans[p.ID] = copyPlan(next)
	return true, nil
}

func (s *Store) IncrementExportCount(_ context.Context, id string, updatedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.ExportCount++
	p.UpdatedAt = updatedAt
	return p.ExportCount, nil
}

func (s *Store) SharePlan(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range s.plans {
		if other.ID != id && other.ShareToken != nil && *other.ShareToken == token {
			return repository.ErrDuplicate
		}
	}
	p.IsPublic = true
	p.ShareToken = &token
	return nil
}

func (s *Store) DeletePlan(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.plans, id)
	return nil
}

func (s *Store) ListStalePlans(_ context.Context, cutoff time.Time) ([]*domain.FloorPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FloorPlan
	for _, p := range s.plans {
		if p.Status == domain.PlanGenerating && p.CreatedAt.Before(cutoff) {
			out = append(out, copyPlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountPlansByStatus(context.Context) (map[domain.PlanStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.PlanStatus]int)
	for _, p := range s.plans {
		counts[p.Status]++
	}
	return counts, nil
}

// --- referrals ---

func (s *Store) ApplyReferral(_ context.Context, r *domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	referred, ok := s.accounts[r.ReferredID]
	if !ok {
		return repository.ErrNotFound
	}
	referrer, ok := s.accounts[r.ReferrerID]
	if !ok {
		return repository.ErrNotFound
	}
	if referred.ReferredBy != nil {
		return domain.ErrAlreadyReferred
	}

	referrerID := referrer.ID
	referred.ReferredBy = &referrerID
	referred.UpdatedAt = r.CreatedAt
	referrer.TotalReferrals++
	referrer.ReferralCredits += r.CreditsAwarded
	referrer.UpdatedAt = r.CreatedAt

	c := *r
	s.referrals = append(s.referrals, &c)
	return nil
}

func (s *Store) ListReferrals(_ context.Context, referrerID string) ([]domain.ReferralView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ReferralView
	for _, r := range s.referrals {
		if r.ReferrerID != referrerID {
			continue
		}
		v := domain.ReferralView{Referral: *r}
		if a, ok := s.accounts[r.ReferredID]; ok {
			v.ReferredName, v.ReferredEmail = a.Name, a.Email
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- subscription events ---

func (s *Store) CreateEvent(_ context.Context, e *domain.SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.events = append(s.events, &c)
	return nil
}

func (s *Store) ListEvents(_ context.Context, accountID string, limit int) ([]*domain.SubscriptionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SubscriptionEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].AccountID == accountID {
			c := *s.events[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
