package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *Store, email, code string) *domain.Account {
	t.Helper()
	a := domain.NewAccount(email, "User "+email, t0)
	a.ReferralCode = code
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func TestCreateAccount_Duplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedAccount(t, s, "a@example.com", "CODE1")

	dupEmail := domain.NewAccount("a@example.com", "Other", t0)
	assert.ErrorIs(t, s.CreateAccount(ctx, dupEmail), repository.ErrDuplicate)

	dupCode := domain.NewAccount("b@example.com", "Other", t0)
	dupCode.ReferralCode = "CODE1"
	assert.ErrorIs(t, s.CreateAccount(ctx, dupCode), repository.ErrDuplicate)
}

func TestFindAccount_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, "a@example.com", "CODE1")

	got, err := s.FindAccountByID(ctx, a.ID)
	require.NoError(t, err)
	got.PlansUsed = 99

	again, _ := s.FindAccountByEmail(ctx, "a@example.com")
	assert.Equal(t, 0, again.PlansUsed)

	missing, err := s.FindAccountByReferralCode(ctx, "NOPE")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMutateAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, "a@example.com", "CODE1")
	seedAccount(t, s, "b@example.com", "CODE2")

	updated, err := s.MutateAccount(ctx, a.ID, func(a *domain.Account) error {
		a.PlansUsed = 2
		a.TotalReferrals = 100
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PlansUsed)
	assert.Equal(t, 0, updated.TotalReferrals, "referral counters are not writable")

	boom := errors.New("boom")
	_, err = s.MutateAccount(ctx, a.ID, func(a *domain.Account) error {
		a.PlansUsed = 3
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ := s.FindAccountByID(ctx, a.ID)
	assert.Equal(t, 2, got.PlansUsed)

	_, err = s.MutateAccount(ctx, a.ID, func(a *domain.Account) error {
		a.ReferralCode = "CODE2"
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = s.MutateAccount(ctx, "missing", func(*domain.Account) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMutateAccount_Serialized(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, "a@example.com", "CODE1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.MutateAccount(ctx, a.ID, func(a *domain.Account) error {
				a.ExportsUsed++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.FindAccountByID(ctx, a.ID)
	assert.Equal(t, 50, got.ExportsUsed)
}

func newPlan(owner string, created time.Time) *domain.FloorPlan {
	return &domain.FloorPlan{
		ID:        domain.NewID(),
		OwnerID:   owner,
		Spec:      domain.PlanSpec{Description: "A small house", Features: []string{"garden"}},
		Status:    domain.PlanGenerating,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestPlans_FindListAndOwnership(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreatePlan(ctx, newPlan("owner", t0.Add(time.Duration(i)*time.Minute))))
	}
	other := newPlan("someone-else", t0)
	require.NoError(t, s.CreatePlan(ctx, other))

	plans, total, err := s.ListPlans(ctx, domain.PlanFilter{OwnerID: "owner", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, plans, 2)
	assert.True(t, plans[0].CreatedAt.After(plans[1].CreatedAt))

	plans, _, _ = s.ListPlans(ctx, domain.PlanFilter{OwnerID: "owner", Page: 3, Limit: 2})
	assert.Len(t, plans, 1)
	plans, _, _ = s.ListPlans(ctx, domain.PlanFilter{OwnerID: "owner", Page: 4, Limit: 2})
	assert.Empty(t, plans)

	got, err := s.FindPlan(ctx, other.ID, "owner")
	assert.NoError(t, err)
	assert.Nil(t, got)
	got, _ = s.FindPlan(ctx, other.ID, "")
	assert.NotNil(t, got)

	assert.ErrorIs(t, s.DeletePlan(ctx, other.ID, "owner"), repository.ErrNotFound)
	assert.NoError(t, s.DeletePlan(ctx, other.ID, "someone-else"))
}

func TestFinishPlan_OnlyFromGenerating(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newPlan("owner", t0)
	require.NoError(t, s.CreatePlan(ctx, p))

	failed := *p
	require.NoError(t, failed.Fail(domain.GenerationTimedOut, t0.Add(time.Minute)))
	ok, err := s.FinishPlan(ctx, &failed)
	require.NoError(t, err)
	assert.True(t, ok)

	late := *p
	require.NoError(t, late.Complete("text", domain.MaterialEstimate{}, domain.ComplianceReport{}, t0.Add(2*time.Minute)))
	ok, err = s.FinishPlan(ctx, &late)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.FindPlan(ctx, p.ID, "")
	assert.Equal(t, domain.PlanFailed, got.Status)
	assert.Equal(t, domain.GenerationTimedOut, got.ErrorMessage)
}

func TestStalePlansAndCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	old := newPlan("owner", t0)
	fresh := newPlan("owner", t0.Add(time.Hour))
	require.NoError(t, s.CreatePlan(ctx, old))
	require.NoError(t, s.CreatePlan(ctx, fresh))

	stale, err := s.ListStalePlans(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	counts, _ := s.CountPlansByStatus(ctx)
	assert.Equal(t, 2, counts[domain.PlanGenerating])
}

func TestShareAndExportCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newPlan("owner", t0)
	require.NoError(t, s.CreatePlan(ctx, p))

	exported := t0.Add(time.Hour)
	n, err := s.IncrementExportCount(ctx, p.ID, exported)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := s.FindPlan(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, exported, got.UpdatedAt)
	_, err = s.IncrementExportCount(ctx, "missing", exported)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.SharePlan(ctx, p.ID, "tok"))
	shared, _ := s.FindPlanByShareToken(ctx, "tok")
	require.NotNil(t, shared)
	assert.True(t, shared.IsPublic)

	q := newPlan("owner", t0)
	require.NoError(t, s.CreatePlan(ctx, q))
	assert.ErrorIs(t, s.SharePlan(ctx, q.ID, "tok"), repository.ErrDuplicate)
}

func TestApplyReferral(t *testing.T) {
	s := New()
	ctx := context.Background()
	referrer := seedAccount(t, s, "ref@example.com", "REF")
	referred := seedAccount(t, s, "new@example.com", "NEW")
	third := seedAccount(t, s, "third@example.com", "THIRD")

	r := domain.NewActiveReferral(referrer.ID, referred.ID, "REF", t0)
	require.NoError(t, s.ApplyReferral(ctx, r))

	again := domain.NewActiveReferral(third.ID, referred.ID, "THIRD", t0)
	assert.ErrorIs(t, s.ApplyReferral(ctx, again), domain.ErrAlreadyReferred)

	got, _ := s.FindAccountByID(ctx, referrer.ID)
	assert.Equal(t, 1, got.TotalReferrals)
	assert.Equal(t, domain.ReferralCredits, got.ReferralCredits)
	gotReferred, _ := s.FindAccountByID(ctx, referred.ID)
	require.NotNil(t, gotReferred.ReferredBy)
	assert.Equal(t, referrer.ID, *gotReferred.ReferredBy)

	views, err := s.ListReferrals(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "new@example.com", views[0].ReferredEmail)

	top, _ := s.TopReferrers(ctx, 10)
	require.Len(t, top, 1)
	assert.Equal(t, referrer.ID, top[0].ID)
}

func TestSubscriptionEvents(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.CreateEvent(ctx, &domain.SubscriptionEvent{
			ID: fmt.Sprint(i), AccountID: "acc", Tier: domain.TierPro, CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}))
	}
	events, err := s.ListEvents(ctx, "acc", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "3", events[0].ID)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache()
	now := t0
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []string{"a", "b"}, time.Minute))
	var got []string
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	now = now.Add(time.Minute)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	var n int
	ok, _ = c.Get(ctx, "k", &n)
	assert.False(t, ok)
}
