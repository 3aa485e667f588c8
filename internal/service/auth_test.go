package service

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planix/backend/internal/domain"
)

var codePattern = regexp.MustCompile(`^PLX[0-9A-F]{6}[A-Z0-9]{4}$`)

func TestRegister(t *testing.T) {
	h := newHarness(t)
	resp := h.register(t, "  New.User@Example.COM ")

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "new.user@example.com", resp.Account.Email)
	assert.Equal(t, domain.TierFree, resp.Account.SubscriptionTier)
	assert.Equal(t, domain.StatusActive, resp.Account.SubscriptionStatus)
	assert.Regexp(t, codePattern, resp.Account.ReferralCode)
	require.NotNil(t, resp.Account.Usage)
	assert.Equal(t, 3, resp.Account.Usage.Plans.Remaining)
	assert.Nil(t, resp.Referral)

	claims, err := h.auth.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Account.ID, claims.Sub)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "dup@example.com")

	_, err := h.auth.Register(context.Background(), &domain.RegisterRequest{Email: "DUP@example.com", Name: "Again"})
	requireAppError(t, err, http.StatusConflict)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), &domain.RegisterRequest{Email: "not-an-email", Name: "X"})
	appErr := requireAppError(t, err, http.StatusUnprocessableEntity)
	assert.Contains(t, appErr.Message, "email")

	_, err = h.auth.Register(context.Background(), &domain.RegisterRequest{Email: "a@b.co", Name: "X", Password: "123"})
	requireAppError(t, err, http.StatusUnprocessableEntity)
}

func TestRegister_WithReferralCode(t *testing.T) {
	h := newHarness(t)
	referrer := h.register(t, "referrer@example.com")

	resp, err := h.auth.Register(context.Background(), &domain.RegisterRequest{
		Email:        "friend@example.com",
		Name:         "Friend",
		ReferralCode: referrer.Account.ReferralCode,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Referral)
	assert.True(t, resp.Referral.Applied)

	r := h.account(t, referrer.Account.ID)
	assert.Equal(t, 1, r.TotalReferrals)
	assert.Equal(t, domain.ReferralCredits, r.ReferralCredits)
}

func TestRegister_InvalidReferralCodeStillRegisters(t *testing.T) {
	h := newHarness(t)
	resp, err := h.auth.Register(context.Background(), &domain.RegisterRequest{
		Email:        "friend@example.com",
		Name:         "Friend",
		ReferralCode: "PLXNOPE0000",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Referral)
	assert.False(t, resp.Referral.Applied)
	assert.Equal(t, domain.ErrInvalidCode.Error(), resp.Referral.Error)
	assert.NotEmpty(t, resp.Token)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "login@example.com")

	resp, err := h.auth.Login(ctx, &domain.LoginRequest{Email: "LOGIN@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", resp.Account.Email)

	_, err = h.auth.Login(ctx, &domain.LoginRequest{Email: "login@example.com", Password: "wrong"})
	requireAppError(t, err, http.StatusUnauthorized)

	_, err = h.auth.Login(ctx, &domain.LoginRequest{Email: "ghost@example.com", Password: "secret123"})
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestLogin_PasswordlessAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.auth.Register(ctx, &domain.RegisterRequest{Email: "nopass@example.com", Name: "No Pass"})
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, &domain.LoginRequest{Email: "nopass@example.com", Password: "anything"})
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestVerifyToken_Expiry(t *testing.T) {
	h := newHarness(t)
	resp := h.register(t, "exp@example.com")

	h.clock.Advance(TokenTTL - time.Minute)
	_, err := h.auth.VerifyToken(resp.Token)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	_, err = h.auth.VerifyToken(resp.Token)
	requireAppError(t, err, http.StatusUnauthorized)

	_, err = h.auth.VerifyToken("garbage")
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.auth.SeedAdmin(ctx))
	require.NoError(t, h.auth.SeedAdmin(ctx))

	admin, err := h.store.FindAccountByEmail(ctx, "admin@planix.app")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	page, err := h.auth.ListAccounts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	err = h.auth.DeleteAccount(ctx, admin.ID)
	requireAppError(t, err, http.StatusBadRequest)
}

func TestMeAndResetUsage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp := h.register(t, "me@example.com")

	_, err := h.plans.Create(ctx, resp.Account.ID, planRequest())
	require.NoError(t, err)

	me, err := h.auth.Me(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, me.Usage.Plans.Used)

	me, err = h.auth.ResetUsage(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, me.Usage.Plans.Used)

	_, err = h.auth.Me(ctx, "missing")
	requireAppError(t, err, http.StatusNotFound)
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp := h.register(t, "gone@example.com")

	require.NoError(t, h.auth.DeleteAccount(ctx, resp.Account.ID))
	requireAppError(t, h.auth.DeleteAccount(ctx, resp.Account.ID), http.StatusNotFound)
}
