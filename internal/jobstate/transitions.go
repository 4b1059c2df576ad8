// Package jobstate drives a search job through its lifecycle.
//
// Valid status graph:
//
//	pending ──► processing ──► completed
//	                 │
//	                 └───────► failed
//
// completed and failed are terminal states.
package jobstate

import (
	"fmt"

	"github.com/placescout/api/internal/model"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.JobStatus][]model.JobStatus{
	model.JobStatusPending:    {model.JobStatusProcessing},
	model.JobStatusProcessing: {model.JobStatusCompleted, model.JobStatusFailed},
	// completed and failed are terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a JobStatus, returning an error for
// unknown values.
func ParseStatus(s string) (model.JobStatus, error) {
	st := model.JobStatus(s)
	switch st {
	case model.JobStatusPending, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to model.JobStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
