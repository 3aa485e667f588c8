package handler

import (
	"io"
	"net/http"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/service"
)

// maxWebhookBytes bounds webhook payloads, matching the provider's limit.
const maxWebhookBytes = 64 << 10

// SubscriptionHandler handles subscription and payment endpoints.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Get handles GET /api/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	sub, err := h.svc.Get(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, sub)
}

// Update handles PUT /api/subscription.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req domain.UpdateSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	sub, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, sub)
}

// Cancel handles POST /api/subscription/cancel.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	sub, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, sub)
}

// Checkout handles POST /api/subscription/checkout.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.Checkout(r.Context(), id, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// History handles GET /api/subscription/history.
func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	events, err := h.svc.History(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// Simulate handles POST /api/admin/simulate-upgrade (admin only, gated in router).
func (h *SubscriptionHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulateUpgradeRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	sub, err := h.svc.SimulateUpgrade(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": sub,
	})
}

// Webhook handles POST /api/payment/webhook.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read webhook body"))
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
