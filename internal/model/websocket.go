package model

// Event and WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// JobEvent is published by the worker on every job state change and relayed
// to WebSocket subscribers of the job.
type JobEvent struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Result      any       `json:"result,omitempty"`
	Error       *WSError  `json:"error,omitempty"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
