package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LocalQueue is an in-process queue with a fixed number of workers. Failed
// tasks are re-enqueued after the retry policy's delay.
type LocalQueue struct {
	handler HandlerFunc
	logger  *zap.Logger
	workers int
	timeout time.Duration
	policy  RetryPolicy

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	// tasks queued, running or waiting for a retry
	inflight sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// ErrQueueClosed is returned by Enqueue after Shutdown
var ErrQueueClosed = errors.New("queue is shut down")

type Option func(*LocalQueue)

func WithWorkers(n int) Option {
	return func(q *LocalQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *LocalQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *LocalQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(q *LocalQueue) {
		q.policy = p
	}
}

// NewLocalQueue creates the queue and starts its workers
func NewLocalQueue(handler HandlerFunc, logger *zap.Logger, opts ...Option) *LocalQueue {
	q := &LocalQueue{
		handler: handler,
		logger:  logger.Named("local_queue"),
		workers: 3,
		timeout: 30 * time.Minute,
		policy:  DefaultRetryPolicy,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *LocalQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", zap.Int("worker_id", workerID))

				for task := range q.ch {
					q.run(workerID, task)
					q.inflight.Done()
				}

				q.logger.Debug("worker stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (q *LocalQueue) run(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	err := q.handler(ctx, task)
	cancel()

	if err == nil {
		return
	}

	log := q.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", task.JobID),
		zap.Int("attempt", task.Attempt),
		zap.Error(err),
	)

	if errors.Is(err, ErrSkipRetry) || task.IsFinalAttempt() {
		log.Error("job failed, not retrying")
		return
	}

	delay := q.policy.Delay(task.Attempt)
	log.Warn("job failed, scheduling retry", zap.Duration("delay", delay))

	next := task
	next.Attempt++
	q.inflight.Add(1)
	time.AfterFunc(delay, func() {
		q.push(next)
	})
}

// Enqueue submits a job for its first attempt
func (q *LocalQueue) Enqueue(_ context.Context, jobID string, payload []byte) error {
	q.inflight.Add(1)
	ok := q.push(Task{
		JobID:       jobID,
		Payload:     payload,
		Attempt:     1,
		MaxAttempts: q.policy.Attempts(),
	})
	if !ok {
		return ErrQueueClosed
	}
	return nil
}

func (q *LocalQueue) push(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", zap.String("job_id", task.JobID))
		q.inflight.Done()
		return false
	}
	select {
	case q.ch <- task:
		q.logger.Debug("queued job", zap.String("job_id", task.JobID), zap.Int("attempt", task.Attempt))
	default:
		q.logger.Warn("queue full, applying backpressure", zap.String("job_id", task.JobID))
		q.ch <- task
	}
	return true
}

// Run blocks until ctx is done, then drains the queue
func (q *LocalQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)
	return nil
}

// Shutdown stops accepting work and waits for running jobs to finish
func (q *LocalQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

// Wait blocks until every enqueued task, including scheduled retries, has run.
// It closes the queue.
func (q *LocalQueue) Wait(ctx context.Context) {
	q.inflight.Wait()
	q.Shutdown(ctx)
}
