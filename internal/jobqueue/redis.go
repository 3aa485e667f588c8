package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planix/backend/internal/metrics"
)

// Redis keys.
const (
	PendingKey    = "planix:jobs:pending"
	ProcessingKey = "planix:jobs:processing"
	StartedKey    = "planix:jobs:started"
)

// RedisOptions tunes the Redis queue.
type RedisOptions struct {
	Workers       int
	StuckAfter    time.Duration
	SweepInterval time.Duration
	PollTimeout   time.Duration
}

// Redis is a durable queue on Redis lists. A job moves atomically from the
// pending list to the processing list when picked up and is removed when the
// handler returns, so jobs of a crashed process are requeued by the sweeper.
type Redis struct {
	client  *redis.Client
	handler Handler
	opts    RedisOptions
	logger  *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewRedis creates a Redis-backed queue.
func NewRedis(client *redis.Client, handler Handler, opts RedisOptions, logger *slog.Logger) *Redis {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	return &Redis{
		client:  client,
		handler: handler,
		opts:    opts,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the workers and the stuck-job sweeper.
func (q *Redis) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.stopped {
		return
	}
	q.running = true
	q.logger.Info("job queue starting", "backend", "redis", "workers", q.opts.Workers)

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.stuckSweeper(ctx)
}

// Stop signals the workers and waits for in-flight jobs.
func (q *Redis) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("job queue stopped", "backend", "redis")
}

// Enqueue pushes planID onto the pending list.
func (q *Redis) Enqueue(ctx context.Context, planID string) error {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if err := q.client.LPush(ctx, PendingKey, planID).Err(); err != nil {
		return err
	}
	metrics.QueueDepth.Inc()
	return nil
}

func (q *Redis) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		planID, err := q.dequeue(ctx)
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				q.logger.Error("dequeue failed", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}

		q.logger.Debug("processing plan", "worker", id, "plan_id", planID)
		q.handler(ctx, planID)
		q.finish(context.WithoutCancel(ctx), planID)
	}
}

func (q *Redis) dequeue(ctx context.Context) (string, error) {
	planID, err := q.client.BRPopLPush(ctx, PendingKey, ProcessingKey, q.opts.PollTimeout).Result()
	if err != nil {
		return "", err
	}
	metrics.QueueDepth.Dec()
	if err := q.client.HSet(ctx, StartedKey, planID, time.Now().Unix()).Err(); err != nil {
		q.logger.Warn("failed to record job start", "plan_id", planID, "error", err)
	}
	return planID, nil
}

func (q *Redis) finish(ctx context.Context, planID string) {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, ProcessingKey, 1, planID)
	pipe.HDel(ctx, StartedKey, planID)
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("failed to clear processing entry", "plan_id", planID, "error", err)
	}
}

// stuckSweeper requeues jobs whose worker stopped before finishing them.
func (q *Redis) stuckSweeper(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.Sweep(ctx, time.Now()); err != nil {
				q.logger.Error("stuck sweep failed", "error", err)
			} else if n > 0 {
				q.logger.Warn("requeued stuck jobs", "count", n)
			}
		}
	}
}

// Sweep requeues processing entries started more than StuckAfter before now.
func (q *Redis) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.LRange(ctx, ProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, id := range ids {
		var started time.Time
		raw, err := q.client.HGet(ctx, StartedKey, id).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// unmarked entries get a mark now and are judged on a later sweep
			q.client.HSetNX(ctx, StartedKey, id, now.Unix())
			continue
		case err != nil:
			return requeued, err
		default:
			sec, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				continue
			}
			started = time.Unix(sec, 0)
		}
		if now.Sub(started) <= q.opts.StuckAfter {
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, ProcessingKey, 1, id)
		pipe.HDel(ctx, StartedKey, id)
		pipe.RPush(ctx, PendingKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, err
		}
		metrics.QueueDepth.Inc()
		requeued++
	}
	return requeued, nil
}
