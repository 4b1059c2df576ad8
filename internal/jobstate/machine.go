package jobstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/placescout/api/internal/model"
)

var (
	// ErrTerminal is returned when an execution is started for a finished job.
	ErrTerminal = errors.New("job is already in a terminal state")
	// ErrInvalidTransition is returned for any move the status graph does not allow.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobStore persists job records.
type JobStore interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Save(ctx context.Context, job *model.Job) error
}

// Machine is the only writer of job status, progress and execution history.
type Machine struct {
	store JobStore
	now   func() time.Time
}

// NewMachine creates a new Machine
func NewMachine(store JobStore) *Machine {
	return &Machine{store: store, now: time.Now}
}

// Create stores a new pending job.
func (m *Machine) Create(ctx context.Context, job *model.Job) error {
	now := m.now()
	job.Status = model.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	return m.store.Save(ctx, job)
}

// Begin opens a new execution for attempt. The first execution moves the job
// from pending to processing; a retry of a job left processing by a failed
// attempt only records the new execution.
func (m *Machine) Begin(ctx context.Context, id string, attempt, maxAttempts int) (*model.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return job, fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Status)
	}

	now := m.now()
	if job.Status == model.JobStatusPending {
		if err := transition(job, model.JobStatusProcessing); err != nil {
			return nil, err
		}
		job.StartedAt = &now
	}

	closeOpenExecution(job, model.OutcomeFailed, "superseded by a new attempt", now)
	job.Attempt = attempt
	job.MaxAttempts = maxAttempts
	job.Executions = append(job.Executions, model.Execution{
		Attempt:   attempt,
		Outcome:   model.OutcomeRunning,
		StartedAt: now,
	})
	job.UpdatedAt = now

	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	return job, nil
}

// Progress records the latest progress event. It is not a transition.
func (m *Machine) Progress(ctx context.Context, id string, ev model.ProgressEvent) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusProcessing {
		return fmt.Errorf("%w: progress on %s job", ErrInvalidTransition, job.Status)
	}

	job.Progress = &ev
	job.TotalResults = ev.TotalResults
	job.UpdatedAt = m.now()
	return m.store.Save(ctx, job)
}

// Complete moves the job to completed with its final totals.
func (m *Machine) Complete(ctx context.Context, id string, totalResults, failedQueries int) (*model.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(job, model.JobStatusCompleted); err != nil {
		return nil, err
	}

	now := m.now()
	job.TotalResults = totalResults
	job.FailedQueries = failedQueries
	job.CompletedAt = &now
	job.UpdatedAt = now
	closeOpenExecution(job, model.OutcomeSucceeded, "", now)

	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	return job, nil
}

// Fail closes the current execution as failed. When final is set no retry
// will follow and the job moves to failed; otherwise it stays processing.
func (m *Machine) Fail(ctx context.Context, id string, cause error, final bool) (*model.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	now := m.now()
	if final {
		if err := transition(job, model.JobStatusFailed); err != nil {
			return nil, err
		}
		job.Error = &msg
		job.CompletedAt = &now
	} else if job.Status != model.JobStatusProcessing {
		return nil, fmt.Errorf("%w: cannot fail %s job", ErrInvalidTransition, job.Status)
	}

	job.UpdatedAt = now
	closeOpenExecution(job, model.OutcomeFailed, msg, now)

	if err := m.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	return job, nil
}

func transition(job *model.Job, to model.JobStatus) error {
	if !IsTransitionAllowed(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}
	job.Status = to
	return nil
}

func closeOpenExecution(job *model.Job, outcome model.ExecutionOutcome, msg string, at time.Time) {
	if n := len(job.Executions); n > 0 && job.Executions[n-1].Outcome == model.OutcomeRunning {
		ex := &job.Executions[n-1]
		ex.Outcome = outcome
		ex.Error = msg
		ex.FinishedAt = &at
	}
}
