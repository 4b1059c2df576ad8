package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/queue"
	"github.com/placescout/api/internal/store"
)

// ErrJobNotFound is returned when a status is requested for an unknown job
var ErrJobNotFound = errors.New("job not found")

// JobRepository reads job records and removes ones that never reached the queue
type JobRepository interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Delete(ctx context.Context, id string) error
}

// SearchService handles search job submission and status lookups
type SearchService struct {
	machine *jobstate.Machine
	jobs    JobRepository
	queue   queue.Enqueuer
	logger  *zap.Logger
}

func NewSearchService(machine *jobstate.Machine, jobs JobRepository, q queue.Enqueuer, logger *zap.Logger) *SearchService {
	return &SearchService{
		machine: machine,
		jobs:    jobs,
		queue:   q,
		logger:  logger.Named("search_service"),
	}
}

// StartSearch creates a pending job and hands it to the queue
func (s *SearchService) StartSearch(ctx context.Context, req *model.SearchStartRequest) (*model.SearchStartResponse, error) {
	radius := req.Radius
	if radius == 0 {
		radius = model.DefaultRadius
	}

	providers := req.Providers
	if len(providers) == 0 {
		providers = []model.Provider{model.ProviderGoogle}
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Queries:   req.Queries,
		Radius:    radius,
		Providers: providers,
	}

	if err := s.machine.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	payload, err := json.Marshal(model.SearchJobPayload{
		Queries:   job.Queries,
		Radius:    job.Radius,
		Providers: job.Providers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID, payload); err != nil {
		s.logger.Error("failed to enqueue job, discarding record", zap.String("job_id", job.ID), zap.Error(err))
		if derr := s.jobs.Delete(context.WithoutCancel(ctx), job.ID); derr != nil {
			s.logger.Error("failed to discard job record", zap.String("job_id", job.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &model.SearchStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// GetStatus returns the current state of a search job
func (s *SearchService) GetStatus(ctx context.Context, jobID string) (*model.SearchStatusResponse, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &model.SearchStatusResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Queries:       job.Queries,
		Radius:        job.Radius,
		Providers:     job.Providers,
		TotalResults:  job.TotalResults,
		FailedQueries: job.FailedQueries,
		Progress:      job.Progress,
		Error:         job.Error,
		Attempt:       job.Attempt,
		Executions:    job.Executions,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}, nil
}
