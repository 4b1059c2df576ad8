package jobstate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/store"
)

func newMachine(t *testing.T) (*jobstate.Machine, *store.MemoryJobStore) {
	t.Helper()
	s := store.NewMemoryJobStore()
	m := jobstate.NewMachine(s)
	require.NoError(t, m.Create(context.Background(), &model.Job{ID: "job-1", Queries: []string{"a", "b"}}))
	return m, s
}

func TestMachine_HappyPath(t *testing.T) {
	m, s := newMachine(t)
	ctx := context.Background()

	job, err := m.Begin(ctx, "job-1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.NotNil(t, job.StartedAt)

	require.NoError(t, m.Progress(ctx, "job-1", model.ProgressEvent{Completed: 1, Total: 2, CurrentQuery: "a", TotalResults: 4}))

	job, err = m.Complete(ctx, "job-1", 9, 1)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)

	stored, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 9, stored.TotalResults)
	assert.Equal(t, 1, stored.FailedQueries)
	assert.NotNil(t, stored.CompletedAt)
	require.Len(t, stored.Executions, 1)
	assert.Equal(t, model.OutcomeSucceeded, stored.Executions[0].Outcome)
	require.NotNil(t, stored.Progress)
	assert.Equal(t, "a", stored.Progress.CurrentQuery)
}

func TestMachine_RetryKeepsJobProcessing(t *testing.T) {
	m, s := newMachine(t)
	ctx := context.Background()

	_, err := m.Begin(ctx, "job-1", 1, 3)
	require.NoError(t, err)

	job, err := m.Fail(ctx, "job-1", errors.New("db down"), false)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Nil(t, job.Error)

	_, err = m.Begin(ctx, "job-1", 2, 3)
	require.NoError(t, err)

	job, err = m.Fail(ctx, "job-1", errors.New("db still down"), true)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "db still down", *job.Error)

	stored, _ := s.Get(ctx, "job-1")
	require.Len(t, stored.Executions, 2)
	assert.Equal(t, "db down", stored.Executions[0].Error)
	assert.Equal(t, model.OutcomeFailed, stored.Executions[1].Outcome)
	assert.Equal(t, 2, stored.Attempt)
}

func TestMachine_TerminalIsImmutable(t *testing.T) {
	m, _ := newMachine(t)
	ctx := context.Background()

	_, err := m.Begin(ctx, "job-1", 1, 3)
	require.NoError(t, err)
	_, err = m.Complete(ctx, "job-1", 0, 0)
	require.NoError(t, err)

	_, err = m.Begin(ctx, "job-1", 2, 3)
	assert.ErrorIs(t, err, jobstate.ErrTerminal)

	_, err = m.Fail(ctx, "job-1", errors.New("late"), true)
	assert.ErrorIs(t, err, jobstate.ErrInvalidTransition)

	_, err = m.Complete(ctx, "job-1", 1, 0)
	assert.ErrorIs(t, err, jobstate.ErrInvalidTransition)

	err = m.Progress(ctx, "job-1", model.ProgressEvent{})
	assert.ErrorIs(t, err, jobstate.ErrInvalidTransition)
}

func TestMachine_CannotCompletePending(t *testing.T) {
	m, _ := newMachine(t)

	_, err := m.Complete(context.Background(), "job-1", 0, 0)
	assert.ErrorIs(t, err, jobstate.ErrInvalidTransition)
}

func TestMachine_UnknownJob(t *testing.T) {
	m, _ := newMachine(t)

	_, err := m.Begin(context.Background(), "nope", 1, 3)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}
