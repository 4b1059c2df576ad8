package model

// JobStatus is the lifecycle state of a search job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Provider identifies a places data source
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderBing   Provider = "bing"
	ProviderYelp   Provider = "yelp"
	ProviderOSM    Provider = "osm"
)

var ValidProviders = []Provider{
	ProviderGoogle, ProviderBing, ProviderYelp, ProviderOSM,
}

// IsValid reports whether p is a known provider
func (p Provider) IsValid() bool {
	for _, v := range ValidProviders {
		if p == v {
			return true
		}
	}
	return false
}

// ExecutionOutcome is the result of one attempt at running a job
type ExecutionOutcome string

const (
	OutcomeRunning   ExecutionOutcome = "running"
	OutcomeSucceeded ExecutionOutcome = "succeeded"
	OutcomeFailed    ExecutionOutcome = "failed"
)

// Lifecycle event names
const (
	EventSearchStarted   = "search_started"
	EventSearchCompleted = "search_completed"
	EventSearchFailed    = "search_failed"
)

// Default submission values
const (
	DefaultRadius = 5000
	MinRadius     = 100
	MaxRadius     = 50000
)
