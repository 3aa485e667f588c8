package jobqueue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/planix/backend/internal/metrics"
)

// Local is an in-process queue backed by a buffered channel.
type Local struct {
	handler Handler
	workers int
	logger  *slog.Logger

	jobs    chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewLocal creates a queue with the given worker count and buffer size.
func NewLocal(handler Handler, workers, buffer int, logger *slog.Logger) *Local {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Local{
		handler: handler,
		workers: workers,
		logger:  logger,
		jobs:    make(chan string, buffer),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the workers. Jobs run with a context derived from ctx.
func (q *Local) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.stopped {
		return
	}
	q.running = true
	q.logger.Info("job queue starting", "backend", "local", "workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop waits for in-flight jobs to finish. Queued jobs that were never
// picked up are left to the reconciler.
func (q *Local) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("job queue stopped", "backend", "local", "dropped", len(q.jobs))
}

// Enqueue buffers the job without waiting. A full buffer yields ErrQueueFull
// so the caller can fail the plan instead of holding the request open.
func (q *Local) Enqueue(ctx context.Context, planID string) error {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.jobs <- planID:
		metrics.QueueDepth.Inc()
		return nil
	case <-q.stopCh:
		return ErrStopped
	default:
		metrics.QueueRejected.Inc()
		return ErrQueueFull
	}
}

func (q *Local) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case planID := <-q.jobs:
			metrics.QueueDepth.Dec()
			q.logger.Debug("processing plan", "worker", id, "plan_id", planID)
			q.handler(ctx, planID)
		}
	}
}
