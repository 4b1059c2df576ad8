package model

import "time"

// SearchStartRequest represents the request to submit a search job
type SearchStartRequest struct {
	Queries   []string   `json:"queries" validate:"required,min=1,max=10,dive,min=1,max=200"`
	Radius    int        `json:"radius" validate:"omitempty,radius"`
	Providers []Provider `json:"providers" validate:"omitempty,dive,provider"`
}

// SearchStartResponse represents the response after submitting a search job
type SearchStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchStatusResponse represents the status of a search job
type SearchStatusResponse struct {
	JobID         string         `json:"jobId"`
	Status        JobStatus      `json:"status"`
	Queries       []string       `json:"queries"`
	Radius        int            `json:"radius"`
	Providers     []Provider     `json:"providers"`
	TotalResults  int            `json:"totalResults"`
	FailedQueries int            `json:"failedQueries"`
	Progress      *ProgressEvent `json:"progress,omitempty"`
	Error         *string        `json:"error,omitempty"`
	Attempt       int            `json:"attempt"`
	Executions    []Execution    `json:"executions,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}
