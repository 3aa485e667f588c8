package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/planix/backend/internal/compliance"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/generation"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository/memory"
	"github.com/planix/backend/pkg/payment"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGenerator struct {
	text  string
	err   error
	block bool

	// delay and reviewDelay simulate slow upstream calls.
	delay       time.Duration
	reviewDelay time.Duration
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *fakeGenerator) Generate(ctx context.Context, spec domain.PlanSpec, policy generation.Policy) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.delay > 0 {
		if err := sleepCtx(ctx, g.delay); err != nil {
			return "", err
		}
	}
	if g.err != nil {
		if policy == generation.Fallback {
			return generation.CannedPlan(spec), nil
		}
		return "", g.err
	}
	return g.text, nil
}

func (g *fakeGenerator) CheckCompliance(ctx context.Context, text string, _ domain.PlanSpec) domain.ComplianceReport {
	if g.reviewDelay == 0 {
		return compliance.Offline()
	}
	if err := sleepCtx(ctx, g.reviewDelay); err != nil {
		return compliance.Failure()
	}
	return compliance.FromText(text)
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type harness struct {
	store     *memory.Store
	clock     *testClock
	ledger    *quota.Ledger
	gen       *fakeGenerator
	queue     *recordingQueue
	artifacts *fakeArtifacts
	auth      *AuthService
	referrals *ReferralService
	subs      *SubscriptionService
	plans     *FloorPlanService
	gateway   *payment.MockGateway
}

type fakeArtifacts struct {
	keys []string
	err  error
}

func (f *fakeArtifacts) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://files.example.com/" + key, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     memory.New(),
		clock:     &testClock{now: t0},
		gen:       &fakeGenerator{text: "Ground floor: living room. IS 456 applies."},
		queue:     &recordingQueue{},
		artifacts: &fakeArtifacts{},
		gateway:   payment.NewMockGateway("http://app.test", "whsec"),
	}
	tiers := domain.DefaultTiers()
	logger := testLogger()

	h.ledger = quota.NewLedger(h.store, tiers)
	h.ledger.SetClock(h.clock.Now)
	h.referrals = NewReferralService(h.store, h.store, memory.NewCache(), "http://app.test", logger)
	h.referrals.SetClock(h.clock.Now)
	h.auth = NewAuthService("test-secret", "admin@planix.app", "adminpass", h.store, h.referrals, h.ledger, logger)
	h.subs = NewSubscriptionService(h.store, h.store, tiers, h.ledger, h.gateway, logger)
	h.plans = NewFloorPlanService(h.store, h.ledger, h.gen, h.artifacts, "http://app.test", time.Second, logger)
	h.plans.SetQueue(h.queue)
	return h
}

func (h *harness) register(t *testing.T, email string) *domain.AuthResponse {
	t.Helper()
	resp, err := h.auth.Register(context.Background(), &domain.RegisterRequest{
		Email:    email,
		Name:     "User " + email,
		Password: "secret123",
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := h.store.FindAccountByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func planRequest() *domain.CreateFloorPlanRequest {
	return &domain.CreateFloorPlanRequest{
		Title:       "Family home",
		Description: "A two bedroom home with a garden and parking",
		Area:        1200,
		Rooms:       2,
		Bathrooms:   2,
		Location:    "Pune, Maharashtra",
		Features:    []string{"garden"},
	}
}

func requireAppError(t *testing.T, err error, code int) *domain.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
