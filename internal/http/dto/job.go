package dto

// SummarizeRequest is the body of POST /summarize. Transcript is a pointer
// so a present-but-empty string binds cleanly; only an absent field fails
// validation.
type SummarizeRequest struct {
	Transcript *string `json:"transcript" binding:"required"`
}

// SummarizeResponse acknowledges a queued job.
type SummarizeResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the polled job record. Error is present only for failed jobs.
type JobResponse struct {
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`
}
