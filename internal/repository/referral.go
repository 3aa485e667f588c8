package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planix/backend/internal/domain"
)

// ReferralRepo handles database operations for referrals.
type ReferralRepo struct {
	db *pgxpool.Pool
}

// NewReferralRepo creates a new ReferralRepo.
func NewReferralRepo(db *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{db: db}
}

// ApplyReferral links the referred account, credits the referrer and records
// the referral in one transaction.
func (r *ReferralRepo) ApplyReferral(ctx context.Context, ref *domain.Referral) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// First write wins: a concurrent application loses here.
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET referred_by = $2, updated_at = $3 WHERE id = $1 AND referred_by IS NULL`,
		ref.ReferredID, ref.ReferrerID, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyReferred
	}

	tag, err = tx.Exec(ctx, `
		UPDATE accounts SET
			total_referrals = total_referrals + 1,
			referral_credits = referral_credits + $2,
			updated_at = $3
		WHERE id = $1`,
		ref.ReferrerID, ref.CreditsAwarded, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to credit referrer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_id, referral_code, status,
			credits_earned, credits_awarded, activated_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ref.ID, ref.ReferrerID, ref.ReferredID, ref.ReferralCode, ref.Status,
		ref.CreditsEarned, ref.CreditsAwarded, ref.ActivatedAt, ref.CompletedAt, ref.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyReferred
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit referral: %w", err)
	}
	return nil
}

// ListReferrals returns a referrer's referrals, newest first.
func (r *ReferralRepo) ListReferrals(ctx context.Context, referrerID string) ([]domain.ReferralView, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.referrer_id, r.referred_id, r.referral_code, r.status,
			r.credits_earned, r.credits_awarded, r.activated_at, r.completed_at, r.created_at,
			a.name, a.email
		FROM referrals r JOIN accounts a ON a.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	var out []domain.ReferralView
	for rows.Next() {
		var v domain.ReferralView
		err := rows.Scan(
			&v.ID, &v.ReferrerID, &v.ReferredID, &v.ReferralCode, &v.Status,
			&v.CreditsEarned, &v.CreditsAwarded, &v.ActivatedAt, &v.CompletedAt, &v.CreatedAt,
			&v.ReferredName, &v.ReferredEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
