package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/planix/backend/internal/config"
	"github.com/planix/backend/internal/handler"
	"github.com/planix/backend/internal/metrics"
	appMiddleware "github.com/planix/backend/internal/middleware"
	"github.com/planix/backend/internal/ws"
)

type routes struct {
	auth         *handler.AuthHandler
	plans        *handler.FloorPlanHandler
	demo         *handler.DemoHandler
	subscription *handler.SubscriptionHandler
	referrals    *handler.ReferralHandler
	admin        *handler.AdminHandler
	health       *handler.HealthHandler
	tiers        *handler.TiersHandler
	status       *ws.PlanStatusHandler
	verifier     appMiddleware.TokenVerifier
}

func newRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, h routes) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery(logger))
	r.Use(appMiddleware.Logger(logger))
	r.Use(appMiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Export-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(ctx, 20, 40)
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", h.health.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/api/tiers", h.tiers.List)
	r.Get("/api/shared/{token}", h.plans.Shared)
	r.Post("/api/payment/webhook", h.subscription.Webhook)

	// Credential and generation endpoints share the strict limiter.
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx))
		r.Post("/api/auth/register", h.auth.Register)
		r.Post("/api/auth/login", h.auth.Login)
		r.Post("/api/generate-floor-plan", h.demo.Generate)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(h.verifier))

		r.Get("/api/auth/me", h.auth.Me)

		// Floor plans
		r.Get("/api/floor-plans", h.plans.List)
		r.Post("/api/floor-plans", h.plans.Create)
		r.Post("/api/floor-plans/{id}/export", h.plans.Export)
		r.Post("/api/floor-plans/{id}/share", h.plans.Share)
		r.Get("/api/floor-plans/{id}", h.plans.Get)
		r.Delete("/api/floor-plans/{id}", h.plans.Delete)

		// Subscription
		r.Get("/api/subscription", h.subscription.Get)
		r.Put("/api/subscription", h.subscription.Update)
		r.Post("/api/subscription/cancel", h.subscription.Cancel)
		r.Post("/api/subscription/checkout", h.subscription.Checkout)
		r.Get("/api/subscription/history", h.subscription.History)

		// Referrals
		r.Post("/api/referrals/apply", h.referrals.Apply)
		r.Post("/api/referrals/generate", h.referrals.Generate)
		r.Get("/api/referrals/stats", h.referrals.Stats)
		r.Get("/api/referrals/leaderboard", h.referrals.Leaderboard)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/stats", h.admin.GetStats)
			r.Get("/api/admin/accounts", h.admin.ListAccounts)
			r.Delete("/api/admin/accounts/{id}", h.admin.DeleteAccount)
			r.Post("/api/admin/accounts/{id}/reset-usage", h.admin.ResetUsage)
			r.Post("/api/admin/simulate-upgrade", h.subscription.Simulate)
			r.Post("/api/admin/reconcile", h.admin.Reconcile)
		})
	})

	// Plan status stream (auth via query param)
	r.Get("/ws/floor-plans/{id}", h.status.Handle)

	return r
}
