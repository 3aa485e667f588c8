package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planix/backend/internal/domain"
)

// FloorPlanRepo handles database operations for floor plans.
type FloorPlanRepo struct {
	db *pgxpool.Pool
}

// NewFloorPlanRepo creates a new FloorPlanRepo.
func NewFloorPlanRepo(db *pgxpool.Pool) *FloorPlanRepo {
	return &FloorPlanRepo{db: db}
}

const planColumns = `id, owner_id, title, spec, status, generated_text,
	material_estimate, compliance_report, error_message, export_count,
	is_public, share_token, quota_period_start, created_at, updated_at, completed_at`

func scanPlan(row pgx.Row) (*domain.FloorPlan, error) {
	var p domain.FloorPlan
	var spec, est, report []byte
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &spec, &p.Status, &p.GeneratedText,
		&est, &report, &p.ErrorMessage, &p.ExportCount,
		&p.IsPublic, &p.ShareToken, &p.QuotaPeriodStart, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(spec, &p.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec: %w", err)
	}
	if est != nil {
		p.MaterialEstimate = new(domain.MaterialEstimate)
		if err := json.Unmarshal(est, p.MaterialEstimate); err != nil {
			return nil, fmt.Errorf("failed to decode material estimate: %w", err)
		}
	}
	if report != nil {
		p.ComplianceReport = new(domain.ComplianceReport)
		if err := json.Unmarshal(report, p.ComplianceReport); err != nil {
			return nil, fmt.Errorf("failed to decode compliance report: %w", err)
		}
	}
	return &p, nil
}

// jsonOrNil encodes v, returning nil for nil pointers so the column stays NULL.
func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// CreatePlan inserts a new floor plan.
func (r *FloorPlanRepo) CreatePlan(ctx context.Context, p *domain.FloorPlan) error {
	spec, err := json.Marshal(p.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}
	query := `
		INSERT INTO floor_plans (id, owner_id, title, spec, status, generated_text, quota_period_start, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		p.ID, p.OwnerID, p.Title, spec, p.Status, p.GeneratedText, p.QuotaPeriodStart, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create floor plan: %w", err)
	}
	return nil
}

// FindPlan returns a plan by ID, optionally scoped to its owner.
func (r *FloorPlanRepo) FindPlan(ctx context.Context, id, ownerID string) (*domain.FloorPlan, error) {
	query := `SELECT ` + planColumns + ` FROM floor_plans WHERE id = $1 AND ($2 = '' OR owner_id = $2)`
	p, err := scanPlan(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find floor plan: %w", err)
	}
	return p, nil
}

// FindPlanByShareToken returns a public plan by its share token.
func (r *FloorPlanRepo) FindPlanByShareToken(ctx context.Context, token string) (*domain.FloorPlan, error) {
	query := `SELECT ` + planColumns + ` FROM floor_plans WHERE share_token = $1 AND is_public`
	p, err := scanPlan(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find shared floor plan: %w", err)
	}
	return p, nil
}

// ListPlans returns a page of an owner's plans, newest first, and the total count.
func (r *FloorPlanRepo) ListPlans(ctx context.Context, f domain.PlanFilter) ([]*domain.FloorPlan, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM floor_plans WHERE owner_id = $1 AND ($2 = '' OR status = $2)`,
		f.OwnerID, string(f.Status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count floor plans: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM floor_plans
		WHERE owner_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		f.OwnerID, string(f.Status), f.Limit, f.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list floor plans: %w", err)
	}
	defer rows.Close()

	plans, err := collectPlans(rows)
	if err != nil {
		return nil, 0, err
	}
	return plans, total, nil
}

func collectPlans(rows pgx.Rows) ([]*domain.FloorPlan, error) {
	var plans []*domain.FloorPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan floor plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// FinishPlan writes the terminal state of a plan that is still generating.
func (r *FloorPlanRepo) FinishPlan(ctx context.Context, p *domain.FloorPlan) (bool, error) {
	est, err := jsonOrNil(p.MaterialEstimate)
	if err != nil {
		return false, fmt.Errorf("failed to encode material estimate: %w", err)
	}
	report, err := jsonOrNil(p.ComplianceReport)
	if err != nil {
		return false, fmt.Errorf("failed to encode compliance report: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE floor_plans SET
			status = $2, generated_text = $3, material_estimate = $4, compliance_report = $5,
			error_message = $6, updated_at = $7, completed_at = $8
		WHERE id = $1 AND status = 'generating'`,
		p.ID, p.Status, p.GeneratedText, est, report, p.ErrorMessage, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish floor plan: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementExportCount bumps the export counter and returns the new value.
func (r *FloorPlanRepo) IncrementExportCount(ctx context.Context, id string, updatedAt time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`UPDATE floor_plans SET export_count = export_count + 1, updated_at = $2 WHERE id = $1 RETURNING export_count`,
		id, updatedAt,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment export count: %w", err)
	}
	return n, nil
}

// SharePlan makes a plan public under token.
func (r *FloorPlanRepo) SharePlan(ctx context.Context, id, token string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE floor_plans SET is_public = TRUE, share_token = $2, updated_at = NOW() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to share floor plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlan removes an owner's plan.
func (r *FloorPlanRepo) DeletePlan(ctx context.Context, id, ownerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM floor_plans WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete floor plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStalePlans returns plans stuck in generating since before cutoff.
func (r *FloorPlanRepo) ListStalePlans(ctx context.Context, cutoff time.Time) ([]*domain.FloorPlan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM floor_plans
		WHERE status = 'generating' AND created_at < $1
		ORDER BY created_at ASC LIMIT 500`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale floor plans: %w", err)
	}
	defer rows.Close()
	return collectPlans(rows)
}

// CountPlansByStatus returns the number of plans in each status.
func (r *FloorPlanRepo) CountPlansByStatus(ctx context.Context) (map[domain.PlanStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM floor_plans GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count floor plans: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PlanStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.PlanStatus(status)] = n
	}
	return counts, rows.Err()
}
