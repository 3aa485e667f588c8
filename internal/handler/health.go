package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const pingTimeout = 2 * time.Second

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	db                 Pinger
	queue              Pinger
	providerConfigured bool
}

// NewHealthHandler creates a new HealthHandler. A nil queue pinger reports
// the in-process queue, which is always available.
func NewHealthHandler(db, queue Pinger, providerConfigured bool) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, providerConfigured: providerConfigured}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}

	if err := h.db.Ping(ctx); err != nil {
		status["database"] = "error"
		status["status"] = "degraded"
	} else {
		status["database"] = "ok"
	}

	status["queue"] = "ok"
	if h.queue != nil {
		if err := h.queue.Ping(ctx); err != nil {
			status["queue"] = "error"
			status["status"] = "degraded"
		}
	}

	if h.providerConfigured {
		status["provider"] = "configured"
	} else {
		status["provider"] = "fallback"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, status)
}
