package domain

import (
	"errors"
	"time"
)

// ReferralCredits is the credit amount awarded to a referrer per referral.
const ReferralCredits = 50

// ReferralStatus is the state of a referral record.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralActive    ReferralStatus = "active"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCancelled ReferralStatus = "cancelled"
)

// Referral application failures.
var (
	ErrAlreadyReferred = errors.New("account has already been referred")
	ErrInvalidCode     = errors.New("invalid referral code")
	ErrSelfReferral    = errors.New("cannot use your own referral code")
)

// Referral links a referrer to the account that signed up with their code.
type Referral struct {
	ID             string         `json:"id"`
	ReferrerID     string         `json:"referrerId"`
	ReferredID     string         `json:"referredId"`
	ReferralCode   string         `json:"referralCode"`
	Status         ReferralStatus `json:"status"`
	CreditsEarned  int            `json:"creditsEarned"`
	CreditsAwarded int            `json:"creditsAwarded"`
	ActivatedAt    *time.Time     `json:"activatedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewActiveReferral returns a referral that is activated and credited at now.
func NewActiveReferral(referrerID, referredID, code string, now time.Time) *Referral {
	return &Referral{
		ID:             NewID(),
		ReferrerID:     referrerID,
		ReferredID:     referredID,
		ReferralCode:   code,
		Status:         ReferralActive,
		CreditsEarned:  ReferralCredits,
		CreditsAwarded: ReferralCredits,
		ActivatedAt:    &now,
		CreatedAt:      now,
	}
}

// ReferralView is a referral joined with the referred account's name and email.
type ReferralView struct {
	Referral
	ReferredName  string `json:"referredName"`
	ReferredEmail string `json:"referredEmail"`
}

// ReferralStats summarizes an account's referral activity.
type ReferralStats struct {
	ReferralCode       string         `json:"referralCode"`
	ShareURL           string         `json:"shareUrl"`
	TotalReferrals     int            `json:"totalReferrals"`
	ReferralCredits    int            `json:"referralCredits"`
	ActiveReferrals    int            `json:"activeReferrals"`
	CompletedReferrals int            `json:"completedReferrals"`
	PendingReferrals   int            `json:"pendingReferrals"`
	RecentReferrals    []ReferralView `json:"recentReferrals"`
}

// LeaderboardEntry is one row of the referral leaderboard.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	AccountID       string `json:"userId"`
	Name            string `json:"name"`
	TotalReferrals  int    `json:"totalReferrals"`
	ReferralCredits int    `json:"referralCredits"`
}

// ApplyReferralRequest is the validated input for applying a referral code.
type ApplyReferralRequest struct {
	ReferralCode string `json:"referralCode" validate:"required,min=4,max=32"`
}

// ApplyReferralResponse is returned after a referral code is applied.
type ApplyReferralResponse struct {
	Referral       *Referral `json:"referral"`
	ReferrerName   string    `json:"referrerName"`
	CreditsAwarded int       `json:"creditsAwarded"`
}
