package handler

import (
	"net/http"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/service"
)

// DemoHandler serves the unauthenticated demo generator.
type DemoHandler struct {
	svc *service.DemoService
}

// NewDemoHandler creates a new DemoHandler.
func NewDemoHandler(svc *service.DemoService) *DemoHandler {
	return &DemoHandler{svc: svc}
}

// Generate handles POST /api/generate-floor-plan.
func (h *DemoHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFloorPlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.Generate(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}
