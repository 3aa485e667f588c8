package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/repository"
)

const (
	referralPrefix   = "PLX"
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	leaderboardKey   = "referrals:leaderboard"
	leaderboardTTL   = 60 * time.Second
	recentReferrals  = 10
	leaderboardLimit = 10
)

// NewReferralCode builds a code from the account id and a random suffix.
func NewReferralCode(accountID string) string {
	hex := strings.ToUpper(strings.ReplaceAll(accountID, "-", ""))
	if len(hex) > 6 {
		hex = hex[:6]
	}
	var b strings.Builder
	b.WriteString(referralPrefix)
	b.WriteString(hex)
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String()
}

// ReferralService applies referral codes and reports referral activity.
type ReferralService struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	cache     repository.Cache
	appURL    string
	validate  *validator.Validate
	logger    *slog.Logger
	now       Clock
}

// NewReferralService creates a ReferralService. cache may be nil.
func NewReferralService(
	accounts repository.AccountRepository,
	referrals repository.ReferralRepository,
	cache repository.Cache,
	appURL string,
	logger *slog.Logger,
) *ReferralService {
	return &ReferralService{
		accounts:  accounts,
		referrals: referrals,
		cache:     cache,
		appURL:    strings.TrimRight(appURL, "/"),
		validate:  newValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *ReferralService) SetClock(now Clock) {
	s.now = now
}

// Apply links accountID to the owner of code and credits the referrer.
func (s *ReferralService) Apply(ctx context.Context, accountID, code string) (*domain.ApplyReferralResponse, error) {
	req := domain.ApplyReferralRequest{ReferralCode: strings.ToUpper(strings.TrimSpace(code))}
	if err := s.validate.Struct(&req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound("account not found")
	}
	if account.ReferredBy != nil {
		return nil, conflict(domain.ErrAlreadyReferred)
	}

	referrer, err := s.accounts.FindAccountByReferralCode(ctx, req.ReferralCode)
	if err != nil {
		return nil, domain.ErrInternal("failed to find referral code", err)
	}
	if referrer == nil {
		e := domain.ErrNotFound(domain.ErrInvalidCode.Error())
		e.Err = domain.ErrInvalidCode
		return nil, e
	}
	if referrer.ID == account.ID {
		return nil, conflict(domain.ErrSelfReferral)
	}

	ref := domain.NewActiveReferral(referrer.ID, account.ID, req.ReferralCode, s.now())
	if err := s.referrals.ApplyReferral(ctx, ref); err != nil {
		if errors.Is(err, domain.ErrAlreadyReferred) {
			return nil, conflict(domain.ErrAlreadyReferred)
		}
		return nil, domain.ErrInternal("failed to apply referral", err)
	}
	s.invalidateLeaderboard(ctx)

	s.logger.Info("referral applied", "referrer_id", referrer.ID, "referred_id", account.ID)
	return &domain.ApplyReferralResponse{
		Referral:       ref,
		ReferrerName:   referrer.Name,
		CreditsAwarded: ref.CreditsAwarded,
	}, nil
}

// GenerateCode returns the account's referral code, creating one if missing.
func (s *ReferralService) GenerateCode(ctx context.Context, accountID string) (string, error) {
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return "", domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return "", domain.ErrNotFound("account not found")
	}
	if account.ReferralCode != "" {
		return account.ReferralCode, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		updated, err := s.accounts.MutateAccount(ctx, accountID, func(a *domain.Account) error {
			if a.ReferralCode == "" {
				a.ReferralCode = NewReferralCode(a.ID)
				a.UpdatedAt = s.now()
			}
			return nil
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", domain.ErrInternal("failed to store referral code", err)
		}
		return updated.ReferralCode, nil
	}
	return "", domain.ErrInternal("failed to allocate referral code", nil)
}

// Stats summarizes the referral activity of accountID.
func (s *ReferralService) Stats(ctx context.Context, accountID string) (*domain.ReferralStats, error) {
	code, err := s.GenerateCode(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil || account == nil {
		return nil, domain.ErrInternal("failed to reload account", err)
	}

	views, err := s.referrals.ListReferrals(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list referrals", err)
	}

	stats := &domain.ReferralStats{
		ReferralCode:    code,
		ShareURL:        s.appURL + "/register?ref=" + code,
		TotalReferrals:  account.TotalReferrals,
		ReferralCredits: account.ReferralCredits,
		RecentReferrals: []domain.ReferralView{},
	}
	for _, v := range views {
		switch v.Status {
		case domain.ReferralActive:
			stats.ActiveReferrals++
		case domain.ReferralCompleted:
			stats.CompletedReferrals++
		case domain.ReferralPending:
			stats.PendingReferrals++
		}
	}
	stats.RecentReferrals = append(stats.RecentReferrals, views[:min(len(views), recentReferrals)]...)
	return stats, nil
}

// Leaderboard returns the top referrers. Results are cached briefly.
func (s *ReferralService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = leaderboardLimit
	}
	limit = min(limit, domain.MaxPageLimit)

	var entries []domain.LeaderboardEntry
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, leaderboardKey, &entries)
		if err != nil {
			s.logger.Warn("leaderboard cache read failed", "error", err)
		}
		if hit {
			return entries[:min(len(entries), limit)], nil
		}
	}

	top, err := s.accounts.TopReferrers(ctx, domain.MaxPageLimit)
	if err != nil {
		return nil, domain.ErrInternal("failed to load leaderboard", err)
	}
	entries = make([]domain.LeaderboardEntry, len(top))
	for i, a := range top {
		entries[i] = domain.LeaderboardEntry{
			Rank:            i + 1,
			AccountID:       a.ID,
			Name:            a.Name,
			TotalReferrals:  a.TotalReferrals,
			ReferralCredits: a.ReferralCredits,
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, leaderboardKey, entries, leaderboardTTL); err != nil {
			s.logger.Warn("leaderboard cache write failed", "error", err)
		}
	}
	return entries[:min(len(entries), limit)], nil
}

func (s *ReferralService) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, leaderboardKey); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", "error", err)
	}
}
