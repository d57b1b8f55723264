package api

import (
	"encoding/json"
	"time"
)

// EnqueueRequest is the JSON body for POST /api/enqueue
type EnqueueRequest struct {
	Task       string          `json:"task"`
	InputPath  string          `json:"input_path"`
	OutputPath string          `json:"output_path"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// JobPayload echoes the accepted submission back to the caller.
type JobPayload struct {
	Task       string          `json:"task"`
	InputPath  string          `json:"input_path"`
	OutputPath string          `json:"output_path"`
	Params     json.RawMessage `json:"params"`
}

// EnqueueResponse is returned on successful job enqueue
type EnqueueResponse struct {
	JobID   string     `json:"job_id"`
	Status  string     `json:"status"`
	Payload JobPayload `json:"payload"`
}

// JobSummaryData is one entry in GET /api/jobs
type JobSummaryData struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ListJobsResponse is returned by GET /api/jobs
type ListJobsResponse struct {
	Jobs []JobSummaryData `json:"jobs"`
}

// JobErrorData is the structured error on a failed job.
type JobErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatusResponse is returned by GET /api/jobs/{jobID}
type JobStatusResponse struct {
	ID         string          `json:"id"`
	Task       string          `json:"task"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *JobErrorData   `json:"error,omitempty"`
}

// UploadResponse is returned by POST /api/upload
type UploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// ProcessResponse is returned by POST /api/process
type ProcessResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
}
