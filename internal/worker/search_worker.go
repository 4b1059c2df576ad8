package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/placescout/api/internal/events"
	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/queue"
	"github.com/placescout/api/internal/search"
	"github.com/placescout/api/internal/store"
)

// ProgressBroadcaster pushes job updates to live subscribers
type ProgressBroadcaster interface {
	BroadcastProgress(jobID string, ev model.ProgressEvent)
	BroadcastComplete(jobID string, totalResults, failedQueries int)
	BroadcastError(jobID string, code, message string)
}

// JobRunner executes the queries of a job
type JobRunner interface {
	Run(ctx context.Context, job *model.Job, onProgress search.ProgressFunc) (search.Outcome, error)
}

// SearchWorker processes search jobs
type SearchWorker struct {
	machine *jobstate.Machine
	runner  JobRunner
	hub     ProgressBroadcaster
	events  events.Publisher
	logger  *zap.Logger
}

// NewSearchWorker creates a new search worker
func NewSearchWorker(machine *jobstate.Machine, runner JobRunner, hub ProgressBroadcaster, publisher events.Publisher, logger *zap.Logger) *SearchWorker {
	return &SearchWorker{
		machine: machine,
		runner:  runner,
		hub:     hub,
		events:  publisher,
		logger:  logger.Named("worker"),
	}
}

// ProcessTask runs one execution attempt of a search job
func (w *SearchWorker) ProcessTask(ctx context.Context, t queue.Task) error {
	log := w.logger.With(zap.String("job_id", t.JobID), zap.Int("attempt", t.Attempt))
	log.Info("starting search job")

	job, err := w.begin(ctx, t)
	if err != nil {
		if errors.Is(err, jobstate.ErrTerminal) || errors.Is(err, store.ErrJobNotFound) {
			log.Warn("not running job", zap.Error(err))
			return errors.Join(err, queue.ErrSkipRetry)
		}
		return fmt.Errorf("failed to begin job: %w", err)
	}

	w.events.Publish(ctx, model.LifecycleEvent{
		Event: model.EventSearchStarted,
		JobID: job.ID,
		Metadata: map[string]interface{}{
			"queries":   job.Queries,
			"radius":    job.Radius,
			"providers": job.Providers,
			"attempt":   t.Attempt,
		},
	})

	outcome, err := w.runner.Run(ctx, job, func(ev model.ProgressEvent) {
		if err := w.machine.Progress(ctx, job.ID, ev); err != nil {
			log.Warn("failed to update progress", zap.Error(err))
		}
		w.hub.BroadcastProgress(job.ID, ev)
	})
	if err != nil {
		return w.failJob(ctx, t, err)
	}

	if _, err := w.machine.Complete(ctx, job.ID, outcome.TotalResults, outcome.FailedQueries); err != nil {
		return w.failJob(ctx, t, fmt.Errorf("failed to complete job: %w", err))
	}

	w.hub.BroadcastComplete(job.ID, outcome.TotalResults, outcome.FailedQueries)
	w.events.Publish(ctx, model.LifecycleEvent{
		Event: model.EventSearchCompleted,
		JobID: job.ID,
		Metadata: map[string]interface{}{
			"totalResults":  outcome.TotalResults,
			"failedQueries": outcome.FailedQueries,
			"queryCount":    len(job.Queries),
			"attempt":       t.Attempt,
		},
	})

	log.Info("search job completed",
		zap.Int("total_results", outcome.TotalResults),
		zap.Int("failed_queries", outcome.FailedQueries),
	)
	return nil
}

// begin opens the execution, rebuilding the job record from the task payload
// if it is no longer in the job store.
func (w *SearchWorker) begin(ctx context.Context, t queue.Task) (*model.Job, error) {
	job, err := w.machine.Begin(ctx, t.JobID, t.Attempt, t.MaxAttempts)
	if err == nil || !errors.Is(err, store.ErrJobNotFound) || len(t.Payload) == 0 {
		return job, err
	}

	var payload model.SearchJobPayload
	if jerr := json.Unmarshal(t.Payload, &payload); jerr != nil || len(payload.Queries) == 0 {
		return nil, err
	}

	w.logger.Warn("job record missing, restoring from task payload", zap.String("job_id", t.JobID))
	restored := &model.Job{
		ID:        t.JobID,
		Queries:   payload.Queries,
		Radius:    payload.Radius,
		Providers: payload.Providers,
	}
	if err := w.machine.Create(ctx, restored); err != nil {
		return nil, err
	}
	return w.machine.Begin(ctx, t.JobID, t.Attempt, t.MaxAttempts)
}

// failJob records the failed execution and returns cause to the queue.
func (w *SearchWorker) failJob(ctx context.Context, t queue.Task, cause error) error {
	final := t.IsFinalAttempt()
	log := w.logger.With(zap.String("job_id", t.JobID), zap.Int("attempt", t.Attempt), zap.Bool("final", final))
	log.Error("search job failed", zap.Error(cause))

	// the failure must be recorded even when the job context was cancelled
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := w.machine.Fail(saveCtx, t.JobID, cause, final); err != nil {
		log.Error("failed to mark job as failed", zap.Error(err))
	}

	if final {
		w.hub.BroadcastError(t.JobID, "SEARCH_FAILED", cause.Error())
		w.events.Publish(saveCtx, model.LifecycleEvent{
			Event: model.EventSearchFailed,
			JobID: t.JobID,
			Metadata: map[string]interface{}{
				"error":   cause.Error(),
				"attempt": t.Attempt,
			},
		})
	}

	return cause
}
