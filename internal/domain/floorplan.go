package domain

import (
	"fmt"
	"time"
)

// PlanStatus is the lifecycle state of a floor plan generation job.
type PlanStatus string

const (
	PlanGenerating PlanStatus = "generating"
	PlanCompleted  PlanStatus = "completed"
	PlanFailed     PlanStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s PlanStatus) Terminal() bool {
	return s == PlanCompleted || s == PlanFailed
}

// User-facing texts stored on a plan.
const (
	PlaceholderText     = "Generating floor plan..."
	GenerationFailedMsg = "Floor plan generation failed. Please try again."
	GenerationTimedOut  = "Floor plan generation timed out. Please try again."
)

// PlanSpec is the building description a floor plan is generated from.
// Zero values mean "not provided".
type PlanSpec struct {
	Description string   `json:"description"`
	Area        float64  `json:"area,omitempty"`
	Rooms       int      `json:"rooms,omitempty"`
	Bathrooms   int      `json:"bathrooms,omitempty"`
	Location    string   `json:"location,omitempty"`
	Budget      float64  `json:"budget,omitempty"`
	Style       string   `json:"style,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// Material is one line of a material estimate.
type Material struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// MaterialEstimate holds the quantities of the five bulk materials.
type MaterialEstimate struct {
	Bricks    Material `json:"bricks"`
	Cement    Material `json:"cement"`
	Steel     Material `json:"steel"`
	Sand      Material `json:"sand"`
	Aggregate Material `json:"aggregate"`
}

// CheckStatus is the outcome of a single compliance check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
)

// ComplianceCheck is one named building-code check.
type ComplianceCheck struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// ComplianceReport is the structured result of a compliance evaluation.
type ComplianceReport struct {
	OverallCompliance bool                       `json:"overallCompliance"`
	Checks            map[string]ComplianceCheck `json:"checks"`
	Recommendations   []string                   `json:"recommendations"`
	CriticalIssues    []string                   `json:"criticalIssues"`
	ComplianceScore   int                        `json:"complianceScore"`
}

// FloorPlan is a generation request and, once finished, its result.
type FloorPlan struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"userId"`
	Title            string            `json:"title"`
	Spec             PlanSpec          `json:"specification"`
	Status           PlanStatus        `json:"status"`
	GeneratedText    string            `json:"generatedPlan"`
	MaterialEstimate *MaterialEstimate `json:"materialEstimate,omitempty"`
	ComplianceReport *ComplianceReport `json:"complianceReport,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	ExportCount      int               `json:"exportCount"`
	IsPublic         bool              `json:"isPublic"`
	ShareToken       *string           `json:"shareToken,omitempty"`
	QuotaPeriodStart time.Time         `json:"-"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

// Transition moves the plan to status to. Only generating may change.
func (p *FloorPlan) Transition(to PlanStatus, now time.Time) error {
	if p.Status != PlanGenerating || !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = now
	p.CompletedAt = &now
	return nil
}

// Complete records a successful generation.
func (p *FloorPlan) Complete(text string, est MaterialEstimate, report ComplianceReport, now time.Time) error {
	if err := p.Transition(PlanCompleted, now); err != nil {
		return err
	}
	p.GeneratedText = text
	p.MaterialEstimate = &est
	p.ComplianceReport = &report
	return nil
}

// Fail records a failed generation with a user-safe message.
func (p *FloorPlan) Fail(msg string, now time.Time) error {
	if err := p.Transition(PlanFailed, now); err != nil {
		return err
	}
	p.GeneratedText = msg
	p.ErrorMessage = msg
	return nil
}

// CreateFloorPlanRequest is the validated input for creating a floor plan.
type CreateFloorPlanRequest struct {
	Title       string   `json:"title" validate:"omitempty,max=200"`
	Description string   `json:"description" validate:"required,min=10,max=1000"`
	Area        float64  `json:"area" validate:"omitempty,min=100,max=10000"`
	Rooms       int      `json:"rooms" validate:"omitempty,min=1,max=20"`
	Bathrooms   int      `json:"bathrooms" validate:"omitempty,min=1,max=10"`
	Location    string   `json:"location" validate:"omitempty,max=200"`
	Budget      float64  `json:"budget" validate:"omitempty,min=0"`
	Style       string   `json:"style" validate:"omitempty,max=50"`
	Features    []string `json:"features" validate:"omitempty,max=20,dive,max=50"`
}

// Spec converts the request to a PlanSpec.
func (r *CreateFloorPlanRequest) Spec() PlanSpec {
	return PlanSpec{
		Description: r.Description,
		Area:        r.Area,
		Rooms:       r.Rooms,
		Bathrooms:   r.Bathrooms,
		Location:    r.Location,
		Budget:      r.Budget,
		Style:       r.Style,
		Features:    r.Features,
	}
}

// CreateFloorPlanResponse is returned immediately after a plan is accepted.
type CreateFloorPlanResponse struct {
	ID        string     `json:"id"`
	Status    PlanStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ExportResponse is returned after a successful export.
type ExportResponse struct {
	ExportCount int    `json:"exportCount"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	FileName    string `json:"fileName"`
}

// PlanFilter selects a page of an owner's plans.
type PlanFilter struct {
	OwnerID string
	Status  PlanStatus
	Page    int
	Limit   int
}

// Offset returns the row offset of the page.
func (f PlanFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ShareResponse is returned after a plan is made public.
type ShareResponse struct {
	ShareToken string `json:"shareToken"`
	ShareURL   string `json:"shareUrl"`
}

// DemoPlan is an unsaved plan produced by the public demo endpoint.
type DemoPlan struct {
	Description      string           `json:"description"`
	MaterialEstimate MaterialEstimate `json:"materialEstimate"`
	ComplianceReport ComplianceReport `json:"complianceReport"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// DemoResponse wraps a demo plan.
type DemoResponse struct {
	Success   bool      `json:"success"`
	FloorPlan *DemoPlan `json:"floorPlan"`
}

// PlanStatusUpdate is pushed to status stream subscribers.
type PlanStatusUpdate struct {
	ID           string     `json:"id"`
	Status       PlanStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
