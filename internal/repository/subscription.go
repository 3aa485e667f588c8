package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planix/backend/internal/domain"
)

type SubscriptionRepo struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepo(db *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) CreateEvent(ctx context.Context, e *domain.SubscriptionEvent) error {
	query := `
		INSERT INTO subscription_events (id, account_id, tier, status, source, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, e.ID, e.AccountID, e.Tier, e.Status, e.Source, e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription event: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) ListEvents(ctx context.Context, accountID string, limit int) ([]*domain.SubscriptionEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, tier, status, source, expires_at, created_at
		FROM subscription_events WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription events: %w", err)
	}
	defer rows.Close()

	var events []*domain.SubscriptionEvent
	for rows.Next() {
		var e domain.SubscriptionEvent
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Tier, &e.Status, &e.Source, &e.ExpiresAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
