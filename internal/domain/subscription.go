package domain

import "time"

// Sources of subscription changes.
const (
	SourceUpdate   = "update"
	SourceCancel   = "cancel"
	SourceCheckout = "checkout"
	SourceAdmin    = "admin"
	SourceExpiry   = "expiry"
)

// SubscriptionPeriod is how long a paid tier lasts once activated.
const SubscriptionPeriod = 30 * 24 * time.Hour

// SubscriptionEvent records one change of an account's subscription.
type SubscriptionEvent struct {
	ID        string     `json:"id"`
	AccountID string     `json:"userId"`
	Tier      string     `json:"tier"`
	Status    string     `json:"status"`
	Source    string     `json:"source"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// SubscriptionResponse is the subscription view of an account.
type SubscriptionResponse struct {
	Tier      string     `json:"tier"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Usage     Usage      `json:"usage"`
	Features  []string   `json:"features"`
}

// UpdateSubscriptionRequest is the validated input for changing tier.
type UpdateSubscriptionRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free pro enterprise"`
}

// CheckoutRequest is the validated input for starting a paid checkout.
type CheckoutRequest struct {
	Tier string `json:"tier" validate:"required,oneof=pro enterprise"`
}

// SimulateUpgradeRequest is the admin input for changing any account's tier.
type SimulateUpgradeRequest struct {
	AccountID string `json:"userId" validate:"required"`
	Tier      string `json:"tier" validate:"required,oneof=free pro enterprise"`
}

// PaymentLinkResponse returns the URL to redirect the user to for payment.
type PaymentLinkResponse struct {
	PaymentURL string `json:"paymentUrl"`
	OrderID    string `json:"orderId"`
}
