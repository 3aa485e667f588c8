// Package ws streams floor plan status to browsers over websockets.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/planix/backend/internal/domain"
)

const (
	defaultPollInterval = time.Second
	writeWait           = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// TokenVerifier validates the session token passed as a query parameter.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// StatusSource returns the current status of an owner's plan.
type StatusSource interface {
	StatusOf(ctx context.Context, ownerID, id string) (*domain.PlanStatusUpdate, error)
}

// PlanStatusHandler pushes a plan's status every poll interval until the
// plan reaches a terminal state, then closes the connection.
type PlanStatusHandler struct {
	auth     TokenVerifier
	plans    StatusSource
	interval time.Duration
	logger   *slog.Logger
}

// NewPlanStatusHandler creates a new PlanStatusHandler.
func NewPlanStatusHandler(auth TokenVerifier, plans StatusSource, logger *slog.Logger) *PlanStatusHandler {
	return &PlanStatusHandler{auth: auth, plans: plans, interval: defaultPollInterval, logger: logger}
}

// SetInterval overrides the poll interval.
func (h *PlanStatusHandler) SetInterval(d time.Duration) {
	h.interval = d
}

// Handle serves /ws/floor-plans/{id}?token=JWT_TOKEN.
func (h *PlanStatusHandler) Handle(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Ownership is checked before upgrading so a foreign id gets a plain 404.
	first, err := h.plans.StatusOf(r.Context(), claims.Sub, planID)
	if err != nil {
		if appErr, ok := domain.AsAppError(err); ok {
			http.Error(w, appErr.Message, appErr.Code)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "plan_id", planID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data; reading detects when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.stream(ctx, conn, claims.Sub, first)
}

func (h *PlanStatusHandler) stream(ctx context.Context, conn *websocket.Conn, ownerID string, update *domain.PlanStatusUpdate) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Debug("status stream write failed", "plan_id", update.ID, "error", err)
			return
		}
		if update.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(update.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := h.plans.StatusOf(ctx, ownerID, update.ID)
		if err != nil {
			// Deleted mid-stream, or the store is unavailable.
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "floor plan unavailable")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
		update = next
	}
}
