package searchclient

import "time"

// Job statuses reported by the API
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelling = "cancelling"
	StatusCancelled  = "cancelled"
)

// Answer types returned by AskContext
const (
	TypeText     = "text"
	TypeMarkdown = "markdown"
	TypeTable    = "table"
	TypeGraph    = "graph"
)

type Submitted struct {
	SearchID  string    `json:"searchId"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunResult is returned by the synchronous search endpoint. Status stays
// "processing" when the server stopped waiting before the job finished.
type RunResult struct {
	Status   string   `json:"status"`
	SearchID string   `json:"searchId"`
	Query    string   `json:"query,omitempty"`
	Sites    []string `json:"sites,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type Status struct {
	SearchID    string     `json:"searchId"`
	Query       string     `json:"query"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Cancelled struct {
	SearchID string `json:"searchId"`
	Status   string `json:"status"`
}

// Result is one stored search as listed by GET /data/
type Result struct {
	ID        string    `json:"id"`
	SearchID  string    `json:"searchId"`
	Query     string    `json:"query"`
	Sites     []string  `json:"sites"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Deleted struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

type SourceDetail struct {
	URL        string `json:"url"`
	Content    string `json:"content"`
	ArchiveURL string `json:"archiveUrl,omitempty"`
}

// Answer is a contextual answer. Only the fields belonging to Type are set.
type Answer struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Headers   []string       `json:"headers,omitempty"`
	Rows      [][]string     `json:"rows,omitempty"`
	Data      *GraphData     `json:"data,omitempty"`
	GraphType string         `json:"graphType,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type GraphData struct {
	Labels   []string       `json:"labels"`
	Datasets []GraphDataset `json:"datasets"`
}

type GraphDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}
