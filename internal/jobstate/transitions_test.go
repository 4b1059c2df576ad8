package jobstate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/model"
)

func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to model.JobStatus
		want     bool
	}{
		{model.JobStatusPending, model.JobStatusProcessing, true},
		{model.JobStatusProcessing, model.JobStatusCompleted, true},
		{model.JobStatusProcessing, model.JobStatusFailed, true},
		{model.JobStatusPending, model.JobStatusCompleted, false},
		{model.JobStatusPending, model.JobStatusFailed, false},
		{model.JobStatusProcessing, model.JobStatusPending, false},
		{model.JobStatusCompleted, model.JobStatusProcessing, false},
		{model.JobStatusCompleted, model.JobStatusPending, false},
		{model.JobStatusFailed, model.JobStatusProcessing, false},
		{model.JobStatusFailed, model.JobStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, jobstate.IsTransitionAllowed(tt.from, tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := jobstate.ParseStatus("processing")
	assert.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, st)

	_, err = jobstate.ParseStatus("running")
	assert.Error(t, err)
}
