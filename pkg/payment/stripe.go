package payment

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds Stripe credentials and the price of each paid tier.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Prices maps a tier id to a Stripe price id.
	Prices     map[string]string
	SuccessURL string
	CancelURL  string
}

// StripeGateway creates subscription Checkout sessions.
type StripeGateway struct {
	cfg StripeConfig
}

// NewStripeGateway sets the global Stripe key and returns a gateway.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{cfg: cfg}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, c Checkout) (string, error) {
	priceID := g.cfg.Prices[c.Tier]
	if priceID == "" {
		return "", fmt.Errorf("no stripe price configured for tier %q", c.Tier)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(c.AccountID),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
	}
	if c.Email != "" {
		params.CustomerEmail = stripe.String(c.Email)
	}
	params.Context = ctx
	params.AddMetadata(MetaAccountID, c.AccountID)
	params.AddMetadata(MetaTier, c.Tier)
	params.AddMetadata(MetaOrderID, c.OrderID)

	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	out.AccountID = sess.Metadata[MetaAccountID]
	if out.AccountID == "" {
		out.AccountID = sess.ClientReferenceID
	}
	out.Tier = sess.Metadata[MetaTier]
	out.OrderID = sess.Metadata[MetaOrderID]
	return out, nil
}
