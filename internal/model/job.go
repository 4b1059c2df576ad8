package model

import "time"

// Job represents a submitted multi-query search
type Job struct {
	ID            string         `json:"id"`
	Queries       []string       `json:"queries"`
	Radius        int            `json:"radius"`
	Providers     []Provider     `json:"providers"`
	Status        JobStatus      `json:"status"`
	TotalResults  int            `json:"totalResults"`
	FailedQueries int            `json:"failedQueries"`
	Progress      *ProgressEvent `json:"progress,omitempty"`
	Error         *string        `json:"error,omitempty"`
	Attempt       int            `json:"attempt"`
	MaxAttempts   int            `json:"maxAttempts"`
	Executions    []Execution    `json:"executions,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// Execution records a single attempt at running a job. Closed executions are never modified.
type Execution struct {
	Attempt    int              `json:"attempt"`
	Outcome    ExecutionOutcome `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// ProgressEvent is emitted after each query of a job has been processed
type ProgressEvent struct {
	Completed    int    `json:"completed"`
	Total        int    `json:"total"`
	CurrentQuery string `json:"currentQuery"`
	TotalResults int    `json:"totalResults"`
}

// SearchJobPayload is the queue payload for a search job
type SearchJobPayload struct {
	Queries   []string   `json:"queries"`
	Radius    int        `json:"radius"`
	Providers []Provider `json:"providers"`
}

// LifecycleEvent is published for external analytics consumers
type LifecycleEvent struct {
	Event    string                 `json:"event"`
	JobID    string                 `json:"jobId"`
	At       time.Time              `json:"at"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
