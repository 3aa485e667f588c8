package handler

import (
	"net/http"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/service"
)

const defaultLeaderboardSize = 10

// ReferralHandler handles referral endpoints.
type ReferralHandler struct {
	svc *service.ReferralService
}

// NewReferralHandler creates a new ReferralHandler.
func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// Apply handles POST /api/referrals/apply.
func (h *ReferralHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req domain.ApplyReferralRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.Apply(r.Context(), id, req.ReferralCode)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"referral":       resp.Referral,
		"referrerName":   resp.ReferrerName,
		"creditsAwarded": resp.CreditsAwarded,
	})
}

// Generate handles POST /api/referrals/generate.
func (h *ReferralHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	code, err := h.svc.GenerateCode(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"referralCode": code})
}

// Stats handles GET /api/referrals/stats.
func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	stats, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, stats)
}

// Leaderboard handles GET /api/referrals/leaderboard?limit=.
func (h *ReferralHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Leaderboard(r.Context(), queryInt(r, "limit", defaultLeaderboardSize))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}
