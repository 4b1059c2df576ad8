// Package queue runs search jobs on a bounded pool of workers with retries.
package queue

import (
	"context"
	"errors"
	"math"
	"time"
)

// TaskTypeSearch is the asynq task type of a search job
const TaskTypeSearch = "search:process"

// ErrSkipRetry marks a failure that must not be retried.
var ErrSkipRetry = errors.New("skip retry")

// Task is one execution attempt of a queued job.
type Task struct {
	JobID       string
	Payload     []byte
	Attempt     int
	MaxAttempts int
}

// IsFinalAttempt reports whether no retry will follow a failure of this attempt.
func (t Task) IsFinalAttempt() bool {
	return t.Attempt >= t.MaxAttempts
}

// HandlerFunc executes a task. A non-nil error is retried per the RetryPolicy
// unless it wraps ErrSkipRetry.
type HandlerFunc func(ctx context.Context, t Task) error

// Enqueuer submits jobs for execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, payload []byte) error
}

// RetryPolicy bounds attempts and spaces them with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy is 3 attempts with 2s, 4s backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}

// Delay returns the wait before the next attempt after failedAttempts failures.
func (p RetryPolicy) Delay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		failedAttempts = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(failedAttempts-1)))
}

// Attempts returns the total number of attempts, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
