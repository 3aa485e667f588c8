package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planix/backend/internal/domain"
)

// AccountRepo handles database operations for accounts.
type AccountRepo struct {
	db *pgxpool.Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(db *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, email, name, password_hash, role,
	subscription_tier, subscription_status, subscription_expires_at,
	plans_used, exports_used, last_plan_reset_at, last_export_reset_at,
	referral_code, referred_by, total_referrals, referral_credits,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var code *string
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role,
		&a.SubscriptionTier, &a.SubscriptionStatus, &a.SubscriptionExpiresAt,
		&a.PlansUsed, &a.ExportsUsed, &a.LastPlanResetAt, &a.LastExportResetAt,
		&code, &a.ReferredBy, &a.TotalReferrals, &a.ReferralCredits,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if code != nil {
		a.ReferralCode = *code
	}
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateAccount inserts a new account.
func (r *AccountRepo) CreateAccount(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role,
		a.SubscriptionTier, a.SubscriptionStatus, a.SubscriptionExpiresAt,
		a.PlansUsed, a.ExportsUsed, a.LastPlanResetAt, a.LastExportResetAt,
		nullable(a.ReferralCode), a.ReferredBy, a.TotalReferrals, a.ReferralCredits,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) findOne(ctx context.Context, where string, arg interface{}) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// FindAccountByID returns an account by ID.
func (r *AccountRepo) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindAccountByEmail returns an account by (normalized) email.
func (r *AccountRepo) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, "email = $1", email)
}

// FindAccountByReferralCode returns the account owning a referral code.
func (r *AccountRepo) FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.findOne(ctx, "referral_code = $1", code)
}

// MutateAccount locks the account row for the duration of fn.
func (r *AccountRepo) MutateAccount(ctx context.Context, id string, fn func(a *domain.Account) error) (*domain.Account, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			name = $2, password_hash = $3, role = $4,
			subscription_tier = $5, subscription_status = $6, subscription_expires_at = $7,
			plans_used = $8, exports_used = $9, last_plan_reset_at = $10, last_export_reset_at = $11,
			referral_code = $12, updated_at = $13
		WHERE id = $1`,
		a.ID, a.Name, a.PasswordHash, a.Role,
		a.SubscriptionTier, a.SubscriptionStatus, a.SubscriptionExpiresAt,
		a.PlansUsed, a.ExportsUsed, a.LastPlanResetAt, a.LastExportResetAt,
		nullable(a.ReferralCode), a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit account update: %w", err)
	}
	return a, nil
}

// ListAccounts returns a page of accounts, newest first, and the total count.
func (r *AccountRepo) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	accounts, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// TopReferrers returns the accounts with the most referrals.
func (r *AccountRepo) TopReferrers(ctx context.Context, limit int) ([]*domain.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE total_referrals > 0
		ORDER BY total_referrals DESC, referral_credits DESC, created_at ASC
		LIMIT $1`, limit)
}

func (r *AccountRepo) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CountAccountsByTier returns the number of accounts per subscription tier.
func (r *AccountRepo) CountAccountsByTier(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT subscription_tier, COUNT(*) FROM accounts GROUP BY subscription_tier`)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}

// DeleteAccount removes an account and, by cascade, its plans and referrals.
func (r *AccountRepo) DeleteAccount(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
