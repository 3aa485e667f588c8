// Package repository defines the persistence ports of the service and their
// PostgreSQL implementations. Lookups return (nil, nil) when no row matches.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/planix/backend/internal/domain"
)

// ErrDuplicate is returned when a unique field (email, referral code) is taken.
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned by mutations whose target row does not exist.
var ErrNotFound = errors.New("record not found")

// AccountRepository stores accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	// MutateAccount loads the account, applies fn and persists the result as
	// one atomic unit. Concurrent mutations of the same account are serialized.
	// If fn returns an error nothing is written and the error is returned.
	MutateAccount(ctx context.Context, id string, fn func(a *domain.Account) error) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int, error)
	TopReferrers(ctx context.Context, limit int) ([]*domain.Account, error)
	CountAccountsByTier(ctx context.Context) (map[string]int, error)
	DeleteAccount(ctx context.Context, id string) error
}

// FloorPlanRepository stores floor plan jobs.
type FloorPlanRepository interface {
	CreatePlan(ctx context.Context, p *domain.FloorPlan) error
	// FindPlan returns the plan with id. A non-empty ownerID restricts the match.
	FindPlan(ctx context.Context, id, ownerID string) (*domain.FloorPlan, error)
	FindPlanByShareToken(ctx context.Context, token string) (*domain.FloorPlan, error)
	ListPlans(ctx context.Context, f domain.PlanFilter) ([]*domain.FloorPlan, int, error)
	// FinishPlan persists a terminal plan only if it is still generating in
	// storage. It reports whether the update was applied.
	FinishPlan(ctx context.Context, p *domain.FloorPlan) (bool, error)
	IncrementExportCount(ctx context.Context, id string, updatedAt time.Time) (int, error)
	SharePlan(ctx context.Context, id, token string) error
	DeletePlan(ctx context.Context, id, ownerID string) error
	// ListStalePlans returns generating plans created before cutoff.
	ListStalePlans(ctx context.Context, cutoff time.Time) ([]*domain.FloorPlan, error)
	CountPlansByStatus(ctx context.Context) (map[domain.PlanStatus]int, error)
}

// ReferralRepository stores referral records.
type ReferralRepository interface {
	// ApplyReferral atomically marks the referred account as referred, credits
	// the referrer and stores r. It returns domain.ErrAlreadyReferred if the
	// referred account already has a referrer.
	ApplyReferral(ctx context.Context, r *domain.Referral) error
	ListReferrals(ctx context.Context, referrerID string) ([]domain.ReferralView, error)
}

// SubscriptionRepository stores the subscription change history.
type SubscriptionRepository interface {
	CreateEvent(ctx context.Context, e *domain.SubscriptionEvent) error
	ListEvents(ctx context.Context, accountID string, limit int) ([]*domain.SubscriptionEvent, error)
}

// Store bundles every repository.
type Store interface {
	AccountRepository
	FloorPlanRepository
	ReferralRepository
	SubscriptionRepository
	Ping(ctx context.Context) error
}
