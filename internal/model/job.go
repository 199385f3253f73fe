package model

import "time"

// JobStatus is the closed set of states a summarization job can be in.
// Transitions are monotone and terminal: started → completed or started → failed.
type JobStatus string

const (
	JobStatusStarted   JobStatus = "started"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one end-to-end submission of a transcript through the agent pipeline.
// Records live in memory for the process lifetime and are never deleted.
type Job struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
