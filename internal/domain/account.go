package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuotaWindow is the length of a monthly usage window.
const QuotaWindow = 30 * 24 * time.Hour

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a registered Planix user together with its subscription,
// usage counters and referral state.
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"` // bcrypt hash, never serialized
	Role         string `json:"role"`

	SubscriptionTier      string     `json:"subscriptionTier"`
	SubscriptionStatus    string     `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`

	PlansUsed         int       `json:"plansUsed"`
	ExportsUsed       int       `json:"exportsUsed"`
	LastPlanResetAt   time.Time `json:"lastPlanResetAt"`
	LastExportResetAt time.Time `json:"lastExportResetAt"`

	ReferralCode    string  `json:"referralCode"`
	ReferredBy      *string `json:"referredBy,omitempty"`
	TotalReferrals  int     `json:"totalReferrals"`
	ReferralCredits int     `json:"referralCredits"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAccount returns a free, active account with fresh usage windows.
func NewAccount(email, name string, now time.Time) *Account {
	return &Account{
		ID:                 NewID(),
		Email:              email,
		Name:               name,
		Role:               RoleUser,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: StatusActive,
		LastPlanResetAt:    now,
		LastExportResetAt:  now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Used returns the current counter for r.
func (a *Account) Used(r Resource) int {
	if r == ResourceExport {
		return a.ExportsUsed
	}
	return a.PlansUsed
}

// ResetAt returns the start of the current usage window for r.
func (a *Account) ResetAt(r Resource) time.Time {
	if r == ResourceExport {
		return a.LastExportResetAt
	}
	return a.LastPlanResetAt
}

func (a *Account) setUsage(r Resource, used int, resetAt time.Time) {
	if r == ResourceExport {
		a.ExportsUsed, a.LastExportResetAt = used, resetAt
		return
	}
	a.PlansUsed, a.LastPlanResetAt = used, resetAt
}

// ApplyReset zeroes the counter for r when a full window has elapsed and
// moves the window start to now. Reset timestamps never move backwards.
func (a *Account) ApplyReset(r Resource, now time.Time) bool {
	start := a.ResetAt(r)
	if now.Sub(start) < QuotaWindow {
		return false
	}
	a.setUsage(r, 0, now)
	return true
}

// Reserve applies the lazy reset and, if the counter is below limit,
// increments it. It returns the window start the reservation belongs to.
func (a *Account) Reserve(r Resource, limit int, now time.Time) (time.Time, bool) {
	a.ApplyReset(r, now)
	used := a.Used(r)
	if limit != Unlimited && used >= limit {
		return a.ResetAt(r), false
	}
	a.setUsage(r, used+1, a.ResetAt(r))
	return a.ResetAt(r), true
}

// Release gives back a reservation made in the window starting at periodStart.
// Reservations from an earlier window are not refunded.
func (a *Account) Release(r Resource, periodStart time.Time) bool {
	if !a.ResetAt(r).Equal(periodStart) {
		return false
	}
	used := a.Used(r)
	if used == 0 {
		return false
	}
	a.setUsage(r, used-1, periodStart)
	return true
}

// ResetUsage zeroes both counters and starts new windows at now.
func (a *Account) ResetUsage(now time.Time) {
	a.setUsage(ResourcePlan, 0, now)
	a.setUsage(ResourceExport, 0, now)
}

// Lapsed reports whether a paid subscription has passed its expiry.
func (a *Account) Lapsed(now time.Time) bool {
	return a.SubscriptionTier != TierFree &&
		a.SubscriptionExpiresAt != nil &&
		now.After(*a.SubscriptionExpiresAt)
}

// EffectiveTier is the tier that limits apply to at now.
func (a *Account) EffectiveTier(now time.Time) string {
	if a.Lapsed(now) {
		return TierFree
	}
	return a.SubscriptionTier
}

// ExpireIfLapsed downgrades a lapsed subscription to free.
func (a *Account) ExpireIfLapsed(now time.Time) bool {
	if !a.Lapsed(now) {
		return false
	}
	a.SubscriptionTier = TierFree
	a.SubscriptionStatus = StatusExpired
	a.SubscriptionExpiresAt = nil
	a.UpdatedAt = now
	return true
}

// ResourceUsage is the quota view of one resource.
type ResourceUsage struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Usage is the quota view of both metered resources.
type Usage struct {
	Plans   ResourceUsage `json:"plans"`
	Exports ResourceUsage `json:"exports"`
}

// UsageAt computes usage as it would be seen by a quota check at now,
// without mutating the account.
func (a Account) UsageAt(tiers *TierTable, now time.Time) Usage {
	tier := tiers.Resolve(a.EffectiveTier(now))
	view := func(r Resource) ResourceUsage {
		a.ApplyReset(r, now)
		limit := tier.Limit(r)
		u := ResourceUsage{
			Used:      a.Used(r),
			Limit:     limit,
			Remaining: Unlimited,
			ResetAt:   a.ResetAt(r).Add(QuotaWindow),
		}
		if limit != Unlimited {
			u.Remaining = max(limit-u.Used, 0)
		}
		return u
	}
	return Usage{Plans: view(ResourcePlan), Exports: view(ResourceExport)}
}

// AccountResponse is the safe API representation of an account.
type AccountResponse struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Name                  string     `json:"name"`
	Role                  string     `json:"role"`
	SubscriptionTier      string     `json:"subscriptionTier"`
	SubscriptionStatus    string     `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
	ReferralCode          string     `json:"referralCode"`
	TotalReferrals        int        `json:"totalReferrals"`
	ReferralCredits       int        `json:"referralCredits"`
	Usage                 *Usage     `json:"usage,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// ToResponse converts an account to its API representation.
func (a *Account) ToResponse() *AccountResponse {
	return &AccountResponse{
		ID:                    a.ID,
		Email:                 a.Email,
		Name:                  a.Name,
		Role:                  a.Role,
		SubscriptionTier:      a.SubscriptionTier,
		SubscriptionStatus:    a.SubscriptionStatus,
		SubscriptionExpiresAt: a.SubscriptionExpiresAt,
		ReferralCode:          a.ReferralCode,
		TotalReferrals:        a.TotalReferrals,
		ReferralCredits:       a.ReferralCredits,
		CreatedAt:             a.CreatedAt,
	}
}

// RegisterRequest is the validated input for creating an account.
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Name         string `json:"name" validate:"required,min=1,max=100"`
	Password     string `json:"password" validate:"omitempty,min=6,max=128"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=32"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// ReferralOutcome reports what happened to a referral code supplied at registration.
type ReferralOutcome struct {
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// AuthResponse is returned after registration or login.
type AuthResponse struct {
	Token    string           `json:"token"`
	Account  *AccountResponse `json:"user"`
	Referral *ReferralOutcome `json:"referral,omitempty"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NewID generates a new random identifier.
func NewID() string {
	return uuid.New().String()
}
