package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/export"
	"github.com/planix/backend/internal/service"
)

// FloorPlanHandler handles floor plan HTTP endpoints.
type FloorPlanHandler struct {
	svc *service.FloorPlanService
}

// NewFloorPlanHandler creates a new FloorPlanHandler.
func NewFloorPlanHandler(svc *service.FloorPlanService) *FloorPlanHandler {
	return &FloorPlanHandler{svc: svc}
}

// Create handles POST /api/floor-plans.
func (h *FloorPlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req domain.CreateFloorPlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	plan, err := h.svc.Create(r.Context(), ownerID, &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusAccepted, map[string]interface{}{
		"success":   true,
		"floorPlan": plan,
	})
}

// List handles GET /api/floor-plans?page=&limit=&status=.
func (h *FloorPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	status := domain.PlanStatus(r.URL.Query().Get("status"))
	page, err := h.svc.List(r.Context(), ownerID, status,
		queryInt(r, "page", 1), queryInt(r, "limit", domain.DefaultPageLimit))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, page)
}

// Get handles GET /api/floor-plans/{id}.
func (h *FloorPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	plan, err := h.svc.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, plan)
}

// Delete handles DELETE /api/floor-plans/{id}.
func (h *FloorPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	if err := h.svc.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Export handles POST /api/floor-plans/{id}/export. With ?download=1 the
// workbook itself is streamed back instead of the JSON summary.
func (h *FloorPlanHandler) Export(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	resp, data, err := h.svc.Export(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Export-Count", strconv.Itoa(resp.ExportCount))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"exportCount": resp.ExportCount,
		"fileName":    resp.FileName,
		"downloadUrl": resp.DownloadURL,
	})
}

// Share handles POST /api/floor-plans/{id}/share.
func (h *FloorPlanHandler) Share(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := accountID(r)
	if !ok {
		unauthorized(w)
		return
	}

	resp, err := h.svc.Share(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Shared handles GET /api/shared/{token}. No authentication is required.
func (h *FloorPlanHandler) Shared(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, plan)
}
