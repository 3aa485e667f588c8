package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/planix/backend/internal/domain"
)

// Reconciler fails plans that have been generating for too long, so a
// crashed or lost job never leaves a plan pending forever.
type Reconciler struct {
	plans      *FloorPlanService
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(plans *FloorPlanService, interval, staleAfter time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Reconciler{plans: plans, interval: interval, staleAfter: staleAfter, logger: logger}
}

// Start begins the sweep loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		r.sweep(ctx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

func (r *Reconciler) sweep(ctx context.Context) {
	res, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("reconcile sweep failed", "error", err)
		return
	}
	if res.Failed > 0 {
		r.logger.Warn("reconciled stale floor plans", "failed", res.Failed)
	}
}

// RunOnce fails every plan created more than staleAfter ago that is still
// generating.
func (r *Reconciler) RunOnce(ctx context.Context) (domain.ReconcileResult, error) {
	cutoff := r.plans.Now().Add(-r.staleAfter)
	stale, err := r.plans.ListStale(ctx, cutoff)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	var res domain.ReconcileResult
	for _, p := range stale {
		if r.plans.FailPlan(ctx, p, domain.GenerationTimedOut, OutcomeTimedOut) {
			res.Failed++
			r.logger.Info("stale floor plan failed", "plan_id", p.ID, "age", r.plans.Now().Sub(p.CreatedAt))
		}
	}
	return res, nil
}
