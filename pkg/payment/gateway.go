// Package payment creates hosted checkout links and verifies provider webhooks.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// EventCheckoutCompleted is the webhook event type that activates a paid tier.
const EventCheckoutCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Checkout describes one hosted checkout for a paid tier.
type Checkout struct {
	AccountID string
	Email     string
	Tier      string
	OrderID   string
	// Amount is in the smallest currency unit and only used by gateways
	// without configured prices.
	Amount int64
}

// Event is a verified webhook notification.
type Event struct {
	Type      string
	AccountID string
	Tier      string
	OrderID   string
}

// Gateway defines the interface for payment providers.
type Gateway interface {
	// CreateCheckout returns the URL the customer is redirected to.
	CreateCheckout(ctx context.Context, c Checkout) (string, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// MockGateway is used when no provider is configured. Its webhooks are plain
// JSON events signed with a shared secret.
type MockGateway struct {
	baseURL string
	secret  string
}

// NewMockGateway creates a MockGateway. An empty secret accepts any signature.
func NewMockGateway(baseURL, secret string) *MockGateway {
	return &MockGateway{baseURL: baseURL, secret: secret}
}

func (g *MockGateway) CreateCheckout(_ context.Context, c Checkout) (string, error) {
	q := url.Values{}
	q.Set("order_id", c.OrderID)
	q.Set("tier", c.Tier)
	return g.baseURL + "/checkout/mock?" + q.Encode(), nil
}

type mockEvent struct {
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

func (g *MockGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.secret != "" && signature != g.secret {
		return nil, ErrInvalidSignature
	}
	var ev mockEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	return &Event{
		Type:      ev.Type,
		AccountID: ev.Metadata[MetaAccountID],
		Tier:      ev.Metadata[MetaTier],
		OrderID:   ev.Metadata[MetaOrderID],
	}, nil
}

// Metadata keys attached to checkout sessions.
const (
	MetaAccountID = "account_id"
	MetaTier      = "tier"
	MetaOrderID   = "order_id"
)
