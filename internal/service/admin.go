package service

import (
	"context"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/repository"
)

// AdminService aggregates system-wide figures for administrators.
type AdminService struct {
	accounts     repository.AccountRepository
	plans        repository.FloorPlanRepository
	reconciler   *Reconciler
	queueBackend string
	provider     string
}

// NewAdminService creates an AdminService.
func NewAdminService(accounts repository.AccountRepository, plans repository.FloorPlanRepository, reconciler *Reconciler, queueBackend, provider string) *AdminService {
	return &AdminService{
		accounts:     accounts,
		plans:        plans,
		reconciler:   reconciler,
		queueBackend: queueBackend,
		provider:     provider,
	}
}

// Stats returns account and plan counts.
func (s *AdminService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	byTier, err := s.accounts.CountAccountsByTier(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to count accounts", err)
	}
	byStatus, err := s.plans.CountPlansByStatus(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to count floor plans", err)
	}

	stats := &domain.AdminStats{
		AccountsByTier: byTier,
		PlansByStatus:  byStatus,
		QueueBackend:   s.queueBackend,
		Provider:       s.provider,
	}
	for _, n := range byTier {
		stats.TotalAccounts += n
	}
	for _, n := range byStatus {
		stats.TotalPlans += n
	}
	return stats, nil
}

// Reconcile runs one stale-plan sweep immediately.
func (s *AdminService) Reconcile(ctx context.Context) (*domain.ReconcileResult, error) {
	res, err := s.reconciler.RunOnce(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to reconcile floor plans", err)
	}
	return &res, nil
}
