package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/planix/backend/internal/compliance"
	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/estimate"
	"github.com/planix/backend/internal/generation"
)

// DemoService generates unsaved plans for anonymous visitors. It never
// fails on provider errors and consumes no quota.
type DemoService struct {
	generator Generator
	timeout   time.Duration
	validate  *validator.Validate
	now       Clock
}

// NewDemoService creates a DemoService.
func NewDemoService(generator Generator, timeout time.Duration) *DemoService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DemoService{generator: generator, timeout: timeout, validate: newValidator(), now: time.Now}
}

// Generate returns a plan with the offline compliance report.
func (s *DemoService) Generate(ctx context.Context, req *domain.CreateFloorPlanRequest) (*domain.DemoResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	spec := req.Spec()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.generator.Generate(ctx, spec, generation.Fallback)
	if err != nil {
		text = generation.CannedPlan(spec)
	}

	return &domain.DemoResponse{
		Success: true,
		FloorPlan: &domain.DemoPlan{
			Description:      text,
			MaterialEstimate: estimate.Estimate(spec),
			ComplianceReport: compliance.Offline(),
			GeneratedAt:      s.now(),
		},
	}, nil
}
