// Package quota enforces the monthly plan and export limits of each tier.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/metrics"
	"github.com/planix/backend/internal/repository"
)

// ErrLimitExceeded matches every *DeniedError.
var ErrLimitExceeded = errors.New("quota limit exceeded")

// DeniedError reports which limit blocked a reservation.
type DeniedError struct {
	Resource domain.Resource
	Limit    int
	Used     int
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s quota exhausted (%d/%d)", e.Resource, e.Used, e.Limit)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Reservation is one unit of usage taken from an account's current window.
type Reservation struct {
	AccountID   string
	Resource    domain.Resource
	PeriodStart time.Time
}

// Ledger reserves, releases and resets usage counters. Every operation is a
// single atomic account mutation, so concurrent reservations never exceed a limit.
type Ledger struct {
	accounts repository.AccountRepository
	tiers    *domain.TierTable
	now      func() time.Time
}

// NewLedger creates a Ledger over accounts using the limits in tiers.
func NewLedger(accounts repository.AccountRepository, tiers *domain.TierTable) *Ledger {
	return &Ledger{accounts: accounts, tiers: tiers, now: time.Now}
}

// SetClock replaces the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// CheckAndReserve applies the lazy window reset and takes one unit of r if the
// account is under its limit. On denial nothing is written and the returned
// error matches ErrLimitExceeded.
func (l *Ledger) CheckAndReserve(ctx context.Context, accountID string, r domain.Resource) (Reservation, error) {
	now := l.now()
	res := Reservation{AccountID: accountID, Resource: r}

	_, err := l.accounts.MutateAccount(ctx, accountID, func(a *domain.Account) error {
		a.ExpireIfLapsed(now)
		limit := l.tiers.Limit(a.SubscriptionTier, r)
		start, ok := a.Reserve(r, limit, now)
		if !ok {
			return &DeniedError{Resource: r, Limit: limit, Used: a.Used(r)}
		}
		res.PeriodStart = start
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			metrics.QuotaDeniedTotal.WithLabelValues(string(r)).Inc()
		}
		return Reservation{}, err
	}
	return res, nil
}

// Release returns a reservation. Reservations from a window that has since
// been reset are not refunded.
func (l *Ledger) Release(ctx context.Context, res Reservation) error {
	_, err := l.accounts.MutateAccount(ctx, res.AccountID, func(a *domain.Account) error {
		if a.Release(res.Resource, res.PeriodStart) {
			a.UpdatedAt = l.now()
		}
		return nil
	})
	return err
}

// ResetAll zeroes both counters and starts new windows.
func (l *Ledger) ResetAll(ctx context.Context, accountID string) error {
	_, err := l.accounts.MutateAccount(ctx, accountID, func(a *domain.Account) error {
		now := l.now()
		a.ResetUsage(now)
		a.UpdatedAt = now
		return nil
	})
	return err
}

// Usage returns the account's quota view without modifying it.
func (l *Ledger) Usage(a *domain.Account) domain.Usage {
	return a.UsageAt(l.tiers, l.now())
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.now()
}
