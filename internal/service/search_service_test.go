package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/store"
)

type recordingEnqueuer struct {
	jobIDs   []string
	payloads [][]byte
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobID string, payload []byte) error {
	if e.err != nil {
		return e.err
	}
	e.jobIDs = append(e.jobIDs, jobID)
	e.payloads = append(e.payloads, payload)
	return nil
}

func newTestService(q *recordingEnqueuer) (*SearchService, *store.MemoryJobStore) {
	jobs := store.NewMemoryJobStore()
	return NewSearchService(jobstate.NewMachine(jobs), jobs, q, zap.NewNop()), jobs
}

func TestStartSearch_AppliesDefaults(t *testing.T) {
	q := &recordingEnqueuer{}
	svc, jobs := newTestService(q)

	res, err := svc.StartSearch(context.Background(), &model.SearchStartRequest{Queries: []string{"coffee in Austin"}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, model.JobStatusPending, res.Status)

	job, err := jobs.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRadius, job.Radius)
	assert.Equal(t, []model.Provider{model.ProviderGoogle}, job.Providers)

	require.Equal(t, []string{res.JobID}, q.jobIDs)
	var payload model.SearchJobPayload
	require.NoError(t, json.Unmarshal(q.payloads[0], &payload))
	assert.Equal(t, []string{"coffee in Austin"}, payload.Queries)
	assert.Equal(t, model.DefaultRadius, payload.Radius)
}

type recordingJobs struct {
	*store.MemoryJobStore
	saved []string
}

func (r *recordingJobs) Save(ctx context.Context, job *model.Job) error {
	r.saved = append(r.saved, job.ID)
	return r.MemoryJobStore.Save(ctx, job)
}

func TestStartSearch_EnqueueFailureDiscardsJob(t *testing.T) {
	jobs := &recordingJobs{MemoryJobStore: store.NewMemoryJobStore()}
	svc := NewSearchService(jobstate.NewMachine(jobs), jobs, &recordingEnqueuer{err: errors.New("redis down")}, zap.NewNop())

	_, err := svc.StartSearch(context.Background(), &model.SearchStartRequest{Queries: []string{"tea"}, Radius: 800})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	require.Len(t, jobs.saved, 1)
	_, err = svc.GetStatus(context.Background(), jobs.saved[0])
	assert.ErrorIs(t, err, ErrJobNotFound, "a job that never reached the queue is not reported")
}

func TestGetStatus(t *testing.T) {
	svc, _ := newTestService(&recordingEnqueuer{})

	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	res, err := svc.StartSearch(context.Background(), &model.SearchStartRequest{
		Queries:   []string{"tea in Paris"},
		Radius:    800,
		Providers: []model.Provider{model.ProviderGoogle, model.ProviderYelp},
	})
	require.NoError(t, err)

	status, err := svc.GetStatus(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, status.Status)
	assert.Equal(t, 800, status.Radius)
	assert.Len(t, status.Providers, 2)
	assert.Nil(t, status.StartedAt)
}
