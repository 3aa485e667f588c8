package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planix/backend/internal/domain"
)

func TestNewReferralCode(t *testing.T) {
	code := NewReferralCode("0b7c1f0e-aaaa-bbbb-cccc-ddddeeeeffff")
	assert.Regexp(t, codePattern, code)
	assert.Equal(t, "PLX0B7C1F", code[:9])
}

func TestApplyReferral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.register(t, "referrer@example.com")
	friend := h.register(t, "friend@example.com")

	resp, err := h.referrals.Apply(ctx, friend.Account.ID, " "+referrer.Account.ReferralCode+" ")
	require.NoError(t, err)
	assert.Equal(t, referrer.Account.Name, resp.ReferrerName)
	assert.Equal(t, domain.ReferralCredits, resp.CreditsAwarded)
	assert.Equal(t, domain.ReferralActive, resp.Referral.Status)

	f := h.account(t, friend.Account.ID)
	require.NotNil(t, f.ReferredBy)
	assert.Equal(t, referrer.Account.ID, *f.ReferredBy)
}

func TestApplyReferral_SelfReferral(t *testing.T) {
	h := newHarness(t)
	me := h.register(t, "me@example.com")

	_, err := h.referrals.Apply(context.Background(), me.Account.ID, me.Account.ReferralCode)
	requireAppError(t, err, http.StatusConflict)
	assert.True(t, errors.Is(err, domain.ErrSelfReferral))

	a := h.account(t, me.Account.ID)
	assert.Nil(t, a.ReferredBy)
	assert.Zero(t, a.TotalReferrals)
}

func TestApplyReferral_AlreadyReferredLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, "first@example.com")
	second := h.register(t, "second@example.com")
	friend := h.register(t, "friend@example.com")

	_, err := h.referrals.Apply(ctx, friend.Account.ID, first.Account.ReferralCode)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = h.referrals.Apply(ctx, friend.Account.ID, second.Account.ReferralCode)
		requireAppError(t, err, http.StatusConflict)
		assert.ErrorIs(t, err, domain.ErrAlreadyReferred)
	}

	assert.Equal(t, 1, h.account(t, first.Account.ID).TotalReferrals)
	s := h.account(t, second.Account.ID)
	assert.Zero(t, s.TotalReferrals)
	assert.Zero(t, s.ReferralCredits)
}

func TestApplyReferral_InvalidCode(t *testing.T) {
	h := newHarness(t)
	me := h.register(t, "me@example.com")

	_, err := h.referrals.Apply(context.Background(), me.Account.ID, "PLXUNKNOWN1")
	requireAppError(t, err, http.StatusNotFound)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = h.referrals.Apply(context.Background(), me.Account.ID, "ab")
	requireAppError(t, err, http.StatusUnprocessableEntity)
}

func TestGenerateCode_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	me := h.register(t, "me@example.com")

	code, err := h.referrals.GenerateCode(ctx, me.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, me.Account.ReferralCode, code)

	// an account without a code gets one, and keeps it
	_, err = h.store.MutateAccount(ctx, me.Account.ID, func(a *domain.Account) error {
		a.ReferralCode = ""
		return nil
	})
	require.NoError(t, err)

	code, err = h.referrals.GenerateCode(ctx, me.Account.ID)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, code)
	again, err := h.referrals.GenerateCode(ctx, me.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, code, again)
}

func TestReferralStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.register(t, "referrer@example.com")
	for _, email := range []string{"a@example.com", "b@example.com"} {
		friend := h.register(t, email)
		_, err := h.referrals.Apply(ctx, friend.Account.ID, referrer.Account.ReferralCode)
		require.NoError(t, err)
	}

	stats, err := h.referrals.Stats(ctx, referrer.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, referrer.Account.ReferralCode, stats.ReferralCode)
	assert.Equal(t, "http://app.test/register?ref="+stats.ReferralCode, stats.ShareURL)
	assert.Equal(t, 2, stats.TotalReferrals)
	assert.Equal(t, 2*domain.ReferralCredits, stats.ReferralCredits)
	assert.Equal(t, 2, stats.ActiveReferrals)
	assert.Len(t, stats.RecentReferrals, 2)
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	top := h.register(t, "top@example.com")
	second := h.register(t, "second@example.com")

	refer := func(code, email string) {
		friend := h.register(t, email)
		_, err := h.referrals.Apply(ctx, friend.Account.ID, code)
		require.NoError(t, err)
	}
	refer(top.Account.ReferralCode, "f1@example.com")
	refer(top.Account.ReferralCode, "f2@example.com")
	refer(second.Account.ReferralCode, "f3@example.com")

	board, err := h.referrals.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, top.Account.ID, board[0].AccountID)
	assert.Equal(t, 2, board[0].TotalReferrals)

	limited, err := h.referrals.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	// a new referral invalidates the cached board
	refer(second.Account.ReferralCode, "f4@example.com")
	refer(second.Account.ReferralCode, "f5@example.com")
	board, err = h.referrals.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, second.Account.ID, board[0].AccountID)
}
