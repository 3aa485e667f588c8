package handler

import (
	"net/http"

	"github.com/planix/backend/internal/domain"
)

// TiersHandler lists subscription tiers.
type TiersHandler struct {
	tiers *domain.TierTable
}

// NewTiersHandler creates a new TiersHandler.
func NewTiersHandler(tiers *domain.TierTable) *TiersHandler {
	return &TiersHandler{tiers: tiers}
}

// List handles GET /api/tiers.
func (h *TiersHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.tiers.All())
}
