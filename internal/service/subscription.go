package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository"
	"github.com/planix/backend/pkg/payment"
)

const historyLimit = 50

// SubscriptionService manages tiers, checkout and subscription history.
type SubscriptionService struct {
	accounts repository.AccountRepository
	events   repository.SubscriptionRepository
	tiers    *domain.TierTable
	ledger   *quota.Ledger
	payment  payment.Gateway
	validate *validator.Validate
	logger   *slog.Logger
	now      Clock
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(
	accounts repository.AccountRepository,
	events repository.SubscriptionRepository,
	tiers *domain.TierTable,
	ledger *quota.Ledger,
	gateway payment.Gateway,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		accounts: accounts,
		events:   events,
		tiers:    tiers,
		ledger:   ledger,
		payment:  gateway,
		validate: newValidator(),
		logger:   logger,
		now:      ledger.Now,
	}
}

// Get returns the subscription view. A lapsed paid tier is persisted as
// expired before the view is built.
func (s *SubscriptionService) Get(ctx context.Context, accountID string) (*domain.SubscriptionResponse, error) {
	account, err := s.find(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Lapsed(s.now()) {
		expired := false
		account, err = s.accounts.MutateAccount(ctx, accountID, func(a *domain.Account) error {
			expired = a.ExpireIfLapsed(s.now())
			return nil
		})
		if err != nil {
			return nil, domain.ErrInternal("failed to expire subscription", err)
		}
		if expired {
			s.record(ctx, account, domain.SourceExpiry)
			s.logger.Info("subscription expired", "account_id", accountID)
		}
	}
	return s.view(account), nil
}

// Update switches the caller to tier and resets usage.
func (s *SubscriptionService) Update(ctx context.Context, accountID string, req *domain.UpdateSubscriptionRequest) (*domain.SubscriptionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	return s.changeTier(ctx, accountID, req.Tier, domain.StatusActive, domain.SourceUpdate)
}

// Cancel drops the caller to the free tier with status cancelled.
func (s *SubscriptionService) Cancel(ctx context.Context, accountID string) (*domain.SubscriptionResponse, error) {
	return s.changeTier(ctx, accountID, domain.TierFree, domain.StatusCancelled, domain.SourceCancel)
}

// SimulateUpgrade changes any account's tier without payment (admin only).
func (s *SubscriptionService) SimulateUpgrade(ctx context.Context, req *domain.SimulateUpgradeRequest) (*domain.SubscriptionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	return s.changeTier(ctx, req.AccountID, req.Tier, domain.StatusActive, domain.SourceAdmin)
}

// changeTier sets tier and status, sets or clears the expiry and resets both
// usage windows in one account mutation, then records the event.
func (s *SubscriptionService) changeTier(ctx context.Context, accountID, tierID, status, source string) (*domain.SubscriptionResponse, error) {
	tier, ok := s.tiers.Get(tierID)
	if !ok {
		return nil, domain.ErrBadRequest("unknown tier")
	}

	account, err := s.accounts.MutateAccount(ctx, accountID, func(a *domain.Account) error {
		now := s.now()
		a.SubscriptionTier = tier.ID
		a.SubscriptionStatus = status
		a.SubscriptionExpiresAt = nil
		if tier.Paid() {
			expires := now.Add(domain.SubscriptionPeriod)
			a.SubscriptionExpiresAt = &expires
		}
		a.ResetUsage(now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound("account not found")
		}
		return nil, domain.ErrInternal("failed to update subscription", err)
	}

	s.record(ctx, account, source)
	s.logger.Info("subscription changed", "account_id", accountID, "tier", tier.ID, "status", status, "source", source)
	return s.view(account), nil
}

// Checkout creates a payment link for upgrading to a paid tier.
func (s *SubscriptionService) Checkout(ctx context.Context, accountID string, req *domain.CheckoutRequest) (*domain.PaymentLinkResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	tier, ok := s.tiers.Get(req.Tier)
	if !ok || !tier.Paid() {
		return nil, domain.ErrBadRequest("invalid tier or free tier")
	}
	account, err := s.find(ctx, accountID)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	link, err := s.payment.CreateCheckout(ctx, payment.Checkout{
		AccountID: account.ID,
		Email:     account.Email,
		Tier:      tier.ID,
		OrderID:   orderID,
		Amount:    int64(tier.Price * 100),
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to create payment link", err)
	}
	return &domain.PaymentLinkResponse{PaymentURL: link, OrderID: orderID}, nil
}

// HandleWebhook verifies a payment notification and activates the paid tier
// on a completed checkout. Other event types are acknowledged and ignored.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.payment.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return domain.ErrBadRequest("invalid signature")
		}
		return domain.ErrBadRequest("malformed webhook payload")
	}
	if ev.Type != payment.EventCheckoutCompleted {
		s.logger.Debug("webhook event ignored", "type", ev.Type)
		return nil
	}

	tier, ok := s.tiers.Get(ev.Tier)
	if ev.AccountID == "" || !ok || !tier.Paid() {
		return domain.ErrBadRequest("checkout event is missing account or tier")
	}
	_, err = s.changeTier(ctx, ev.AccountID, tier.ID, domain.StatusActive, domain.SourceCheckout)
	return err
}

// History lists the account's subscription events, newest first.
func (s *SubscriptionService) History(ctx context.Context, accountID string) ([]*domain.SubscriptionEvent, error) {
	events, err := s.events.ListEvents(ctx, accountID, historyLimit)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscription events", err)
	}
	if events == nil {
		events = []*domain.SubscriptionEvent{}
	}
	return events, nil
}

func (s *SubscriptionService) find(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound("account not found")
	}
	return account, nil
}

func (s *SubscriptionService) view(a *domain.Account) *domain.SubscriptionResponse {
	tier := s.tiers.Resolve(a.EffectiveTier(s.now()))
	features := append([]string{}, tier.Features...)
	return &domain.SubscriptionResponse{
		Tier:      tier.ID,
		Name:      tier.Name,
		Status:    a.SubscriptionStatus,
		ExpiresAt: a.SubscriptionExpiresAt,
		Usage:     s.ledger.Usage(a),
		Features:  features,
	}
}

// record writes a subscription event. Failures are only logged.
func (s *SubscriptionService) record(ctx context.Context, a *domain.Account, source string) {
	ev := &domain.SubscriptionEvent{
		ID:        domain.NewID(),
		AccountID: a.ID,
		Tier:      a.SubscriptionTier,
		Status:    a.SubscriptionStatus,
		Source:    source,
		ExpiresAt: a.SubscriptionExpiresAt,
		CreatedAt: s.now(),
	}
	if err := s.events.CreateEvent(ctx, ev); err != nil {
		s.logger.Error("failed to record subscription event", "account_id", a.ID, "error", err)
	}
}
