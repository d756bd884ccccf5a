package model

import "time"

// JobStatus is the lifecycle state of a search job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions or polling are expected.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a job in status s may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusProcessing:
		return next != JobStatusProcessing
	case JobStatusCancelling:
		return next == JobStatusCancelled || next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// SearchJob is the server-side record of an in-flight or finished search
type SearchJob struct {
	ID              string     `json:"id"`
	Query           string     `json:"query"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStep     string     `json:"currentStep,omitempty"`
	Error           *string    `json:"error,omitempty"`
	CancelRequested bool       `json:"cancelRequested"`
	ResultID        string     `json:"resultId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// SearchTaskPayload is the asynq task body for a search job
type SearchTaskPayload struct {
	JobID string `json:"jobId"`
	Query string `json:"query"`
}

// SearchSubmitRequest is the body of POST /search
type SearchSubmitRequest struct {
	Query string `json:"query" query:"query" validate:"required,max=500"`
}

// SearchSubmitResponse is returned when a search is accepted
type SearchSubmitResponse struct {
	SearchID  string    `json:"searchId"`
	Query     string    `json:"query"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchRunResponse is returned by the synchronous search endpoint
type SearchRunResponse struct {
	Status   JobStatus `json:"status"`
	SearchID string    `json:"searchId"`
	Query    string    `json:"query,omitempty"`
	Sites    []string  `json:"sites,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// SearchStatusResponse is returned by GET /search/:id/status
type SearchStatusResponse struct {
	SearchID    string     `json:"searchId"`
	Query       string     `json:"query"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// SearchCancelResponse is returned by POST /cancel/:id
type SearchCancelResponse struct {
	SearchID string    `json:"searchId"`
	Status   JobStatus `json:"status"`
}

// NewStatusResponse projects a job onto the status wire shape.
func NewStatusResponse(job *SearchJob) *SearchStatusResponse {
	return &SearchStatusResponse{
		SearchID:    job.ID,
		Query:       job.Query,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
