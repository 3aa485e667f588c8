package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/service"
)

// AdminHandler serves the admin-only endpoints.
type AdminHandler struct {
	admin   *service.AdminService
	authSvc *service.AuthService
}

func NewAdminHandler(admin *service.AdminService, authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{admin: admin, authSvc: authSvc}
}

// GetStats returns system-wide aggregates.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ListAccounts returns a page of accounts.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page, err := h.authSvc.ListAccounts(r.Context(), queryInt(r, "page", 1), queryInt(r, "limit", domain.DefaultPageLimit))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, page)
}

// DeleteAccount handles DELETE /api/admin/accounts/{id}.
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.authSvc.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ResetUsage handles POST /api/admin/accounts/{id}/reset-usage.
func (h *AdminHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	account, err := h.authSvc.ResetUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, account)
}

// Reconcile runs one stale-plan sweep immediately.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Reconcile(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
