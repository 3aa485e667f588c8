// Package jobqueue runs floor plan generation jobs on a bounded worker pool.
// Jobs carry only a plan ID; the plan row is the source of truth for state.
package jobqueue

import (
	"context"
	"errors"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("job queue stopped")

// ErrQueueFull is returned by Enqueue when no buffer slot is free.
var ErrQueueFull = errors.New("job queue full")

// Handler processes one plan. It owns all error handling for the job.
type Handler func(ctx context.Context, planID string)

// Queue accepts plan IDs and hands them to a Handler.
type Queue interface {
	Enqueue(ctx context.Context, planID string) error
	Start(ctx context.Context)
	Stop()
}
