package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/estimate"
	"github.com/planix/backend/internal/export"
	"github.com/planix/backend/internal/generation"
	"github.com/planix/backend/internal/metrics"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository"
)

const defaultPlanTitle = "Untitled Floor Plan"

// Job outcomes reported to metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// Generator produces plan text and compliance reports.
type Generator interface {
	Generate(ctx context.Context, spec domain.PlanSpec, policy generation.Policy) (string, error)
	CheckCompliance(ctx context.Context, text string, spec domain.PlanSpec) domain.ComplianceReport
}

// Enqueuer schedules plan jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, planID string) error
}

// FloorPlanService runs the create, generate, export lifecycle of floor plans.
type FloorPlanService struct {
	plans     repository.FloorPlanRepository
	ledger    *quota.Ledger
	generator Generator
	queue     Enqueuer
	artifacts export.ArtifactStore
	appURL    string
	timeout   time.Duration
	validate  *validator.Validate
	logger    *slog.Logger
	now       Clock
}

// NewFloorPlanService creates a FloorPlanService. artifacts may be nil, in
// which case exports are only returned inline.
func NewFloorPlanService(
	plans repository.FloorPlanRepository,
	ledger *quota.Ledger,
	generator Generator,
	artifacts export.ArtifactStore,
	appURL string,
	timeout time.Duration,
	logger *slog.Logger,
) *FloorPlanService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FloorPlanService{
		plans:     plans,
		ledger:    ledger,
		generator: generator,
		artifacts: artifacts,
		appURL:    strings.TrimRight(appURL, "/"),
		timeout:   timeout,
		validate:  newValidator(),
		logger:    logger,
		now:       ledger.Now,
	}
}

// SetQueue attaches the job queue. It must be called before Create.
func (s *FloorPlanService) SetQueue(q Enqueuer) {
	s.queue = q
}

// Create validates the request, reserves plan quota, stores the plan in
// generating state and schedules generation. It returns without waiting.
func (s *FloorPlanService) Create(ctx context.Context, ownerID string, req *domain.CreateFloorPlanRequest) (*domain.CreateFloorPlanResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	res, err := s.ledger.CheckAndReserve(ctx, ownerID, domain.ResourcePlan)
	if err != nil {
		return nil, quotaError(err)
	}

	now := s.now()
	title := req.Title
	if title == "" {
		title = defaultPlanTitle
	}
	plan := &domain.FloorPlan{
		ID:               domain.NewID(),
		OwnerID:          ownerID,
		Title:            title,
		Spec:             req.Spec(),
		Status:           domain.PlanGenerating,
		GeneratedText:    domain.PlaceholderText,
		QuotaPeriodStart: res.PeriodStart,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		s.release(ctx, res)
		return nil, domain.ErrInternal("failed to save floor plan", err)
	}

	if err := s.queue.Enqueue(ctx, plan.ID); err != nil {
		s.logger.Error("failed to enqueue plan", "plan_id", plan.ID, "error", err)
		s.finishFailed(context.WithoutCancel(ctx), plan, domain.GenerationFailedMsg, OutcomeFailed)
		return nil, domain.ErrInternal("failed to schedule generation", err)
	}

	s.logger.Info("floor plan accepted", "plan_id", plan.ID, "owner_id", ownerID)
	return &domain.CreateFloorPlanResponse{ID: plan.ID, Status: plan.Status, CreatedAt: plan.CreatedAt}, nil
}

// Process generates one plan. It is the job queue handler and never returns
// an error: every failure ends in the failed state with the reservation released.
func (s *FloorPlanService) Process(ctx context.Context, planID string) {
	started := time.Now()
	plan, err := s.plans.FindPlan(ctx, planID, "")
	if err != nil {
		s.logger.Error("failed to load plan for generation", "plan_id", planID, "error", err)
		return
	}
	if plan == nil || plan.Status != domain.PlanGenerating {
		s.logger.Debug("plan no longer pending, skipping", "plan_id", planID)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	persistCtx := context.WithoutCancel(ctx)

	text, err := s.generator.Generate(jobCtx, plan.Spec, generation.Strict)
	if err != nil {
		msg, outcome := domain.GenerationFailedMsg, OutcomeFailed
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			msg, outcome = domain.GenerationTimedOut, OutcomeTimedOut
		}
		s.logger.Warn("floor plan generation failed", "plan_id", planID, "error", err)
		s.finishFailed(persistCtx, plan, msg, outcome)
		metrics.PlanGenerationDuration.Observe(time.Since(started).Seconds())
		return
	}

	est := estimate.Estimate(plan.Spec)

	// the review gets its own budget; generation may have used most of jobCtx
	reviewCtx, cancelReview := context.WithTimeout(persistCtx, s.timeout)
	defer cancelReview()
	report := s.generator.CheckCompliance(reviewCtx, text, plan.Spec)
	if err := plan.Complete(text, est, report, s.now()); err != nil {
		s.logger.Error("invalid plan transition", "plan_id", planID, "error", err)
		return
	}

	ok, err := s.plans.FinishPlan(persistCtx, plan)
	switch {
	case err != nil:
		// the reconciler fails the plan and releases quota later
		s.logger.Error("failed to save completed plan", "plan_id", planID, "error", err)
		return
	case !ok:
		s.logger.Warn("plan finished elsewhere, result dropped", "plan_id", planID)
		return
	}

	metrics.PlanJobsTotal.WithLabelValues(OutcomeCompleted).Inc()
	metrics.PlanGenerationDuration.Observe(time.Since(started).Seconds())
	s.logger.Info("floor plan completed", "plan_id", planID, "duration", time.Since(started))
}

// FailPlan moves a generating plan to failed and releases its reservation.
// It reports whether this call made the transition.
func (s *FloorPlanService) FailPlan(ctx context.Context, plan *domain.FloorPlan, msg, outcome string) bool {
	return s.finishFailed(ctx, plan, msg, outcome)
}

func (s *FloorPlanService) finishFailed(ctx context.Context, plan *domain.FloorPlan, msg, outcome string) bool {
	if err := plan.Fail(msg, s.now()); err != nil {
		s.logger.Error("invalid plan transition", "plan_id", plan.ID, "error", err)
		return false
	}
	ok, err := s.plans.FinishPlan(ctx, plan)
	if err != nil {
		s.logger.Error("failed to save failed plan", "plan_id", plan.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	s.release(ctx, planReservation(plan))
	metrics.PlanJobsTotal.WithLabelValues(outcome).Inc()
	return true
}

func planReservation(p *domain.FloorPlan) quota.Reservation {
	return quota.Reservation{AccountID: p.OwnerID, Resource: domain.ResourcePlan, PeriodStart: p.QuotaPeriodStart}
}

func (s *FloorPlanService) release(ctx context.Context, res quota.Reservation) {
	if err := s.ledger.Release(ctx, res); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("failed to release quota", "account_id", res.AccountID, "resource", res.Resource, "error", err)
	}
}

// Get returns one of the owner's plans.
func (s *FloorPlanService) Get(ctx context.Context, ownerID, id string) (*domain.FloorPlan, error) {
	plan, err := s.plans.FindPlan(ctx, id, ownerID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find floor plan", err)
	}
	if plan == nil {
		return nil, domain.ErrNotFound("floor plan not found")
	}
	return plan, nil
}

// List returns a page of the owner's plans, newest first.
func (s *FloorPlanService) List(ctx context.Context, ownerID string, status domain.PlanStatus, page, limit int) (domain.Page[*domain.FloorPlan], error) {
	switch status {
	case "", domain.PlanGenerating, domain.PlanCompleted, domain.PlanFailed:
	default:
		return domain.Page[*domain.FloorPlan]{}, domain.ErrValidation("status must be one of generating, completed, failed")
	}
	page, limit = domain.ClampPage(page, limit)
	plans, total, err := s.plans.ListPlans(ctx, domain.PlanFilter{OwnerID: ownerID, Status: status, Page: page, Limit: limit})
	if err != nil {
		return domain.Page[*domain.FloorPlan]{}, domain.ErrInternal("failed to list floor plans", err)
	}
	return domain.NewPage(plans, page, limit, total), nil
}

// Delete removes one of the owner's plans. A plan still generating gives
// its reservation back.
func (s *FloorPlanService) Delete(ctx context.Context, ownerID, id string) error {
	plan, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.plans.DeletePlan(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNotFound("floor plan not found")
		}
		return domain.ErrInternal("failed to delete floor plan", err)
	}
	if plan.Status == domain.PlanGenerating {
		s.release(ctx, planReservation(plan))
	}
	return nil
}

// Export renders a completed plan to a workbook, charging one export. When
// an artifact store is configured the workbook is uploaded and a download
// link returned. The workbook bytes are always returned as well.
func (s *FloorPlanService) Export(ctx context.Context, ownerID, id string) (*domain.ExportResponse, []byte, error) {
	plan, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if plan.Status != domain.PlanCompleted {
		return nil, nil, domain.ErrConflict("floor plan is not ready for export")
	}

	res, err := s.ledger.CheckAndReserve(ctx, ownerID, domain.ResourceExport)
	if err != nil {
		return nil, nil, quotaError(err)
	}

	data, err := export.RenderWorkbook(plan)
	if err != nil {
		s.release(ctx, res)
		return nil, nil, domain.ErrInternal("failed to render export", err)
	}

	resp := &domain.ExportResponse{FileName: export.FileName(plan)}
	if s.artifacts != nil {
		key := export.ObjectKey(ownerID, plan.ID, plan.ExportCount+1, resp.FileName)
		url, err := s.artifacts.Put(ctx, key, export.ContentType, data)
		if err != nil {
			s.release(ctx, res)
			return nil, nil, domain.ErrInternal("failed to store export", err)
		}
		resp.DownloadURL = url
	}

	count, err := s.plans.IncrementExportCount(ctx, plan.ID, s.now())
	if err != nil {
		s.release(ctx, res)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.ErrNotFound("floor plan not found")
		}
		return nil, nil, domain.ErrInternal("failed to record export", err)
	}
	resp.ExportCount = count

	s.logger.Info("floor plan exported", "plan_id", plan.ID, "export_count", count)
	return resp, data, nil
}

// Share makes a completed plan publicly readable by token. Sharing twice
// returns the same link.
func (s *FloorPlanService) Share(ctx context.Context, ownerID, id string) (*domain.ShareResponse, error) {
	plan, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanCompleted {
		return nil, domain.ErrConflict("only completed floor plans can be shared")
	}

	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	if plan.ShareToken != nil {
		token = *plan.ShareToken
	}
	if err := s.plans.SharePlan(ctx, plan.ID, token); err != nil {
		return nil, domain.ErrInternal("failed to share floor plan", err)
	}
	return &domain.ShareResponse{ShareToken: token, ShareURL: s.appURL + "/share/" + token}, nil
}

// GetShared returns a public plan by share token without owner details.
func (s *FloorPlanService) GetShared(ctx context.Context, token string) (*domain.FloorPlan, error) {
	plan, err := s.plans.FindPlanByShareToken(ctx, token)
	if err != nil {
		return nil, domain.ErrInternal("failed to find shared floor plan", err)
	}
	if plan == nil || !plan.IsPublic || plan.Status != domain.PlanCompleted {
		return nil, domain.ErrNotFound("shared floor plan not found")
	}
	plan.OwnerID = ""
	plan.ShareToken = nil
	return plan, nil
}

// StatusOf returns the status snapshot pushed to live subscribers.
func (s *FloorPlanService) StatusOf(ctx context.Context, ownerID, id string) (*domain.PlanStatusUpdate, error) {
	plan, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &domain.PlanStatusUpdate{
		ID:           plan.ID,
		Status:       plan.Status,
		ErrorMessage: plan.ErrorMessage,
		UpdatedAt:    plan.UpdatedAt,
	}, nil
}

// ListStale returns generating plans created before cutoff.
func (s *FloorPlanService) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.FloorPlan, error) {
	return s.plans.ListStalePlans(ctx, cutoff)
}

// Now returns the service clock's current time.
func (s *FloorPlanService) Now() time.Time {
	return s.now()
}
