package queue

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of a job. Transitions only move forward:
// queued -> started -> {finished, failed}.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	// ErrorExecutorUnavailable means the worker binary could not be spawned
	// at all; no process ever ran for the job.
	ErrorExecutorUnavailable ErrorKind = "executor_unavailable"

	// ErrorTimedOut means the worker exceeded its time budget and was killed.
	ErrorTimedOut ErrorKind = "timed_out"

	// ErrorExecutionFailed means the worker ran and exited non-zero.
	ErrorExecutionFailed ErrorKind = "execution_failed"
)

// JobError is the structured failure recorded on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Job is the persisted state of one submitted job. Params and Result are
// opaque JSON; the queue never inspects their contents.
type Job struct {
	ID          string
	Task        string
	InputPath   string
	OutputPath  string
	Params      json.RawMessage
	Status      Status
	SubmittedBy string
	CreatedAt   time.Time
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	Result      json.RawMessage
	Error       *JobError
}

// EnqueueRequest carries a new job submission. Task semantics are not
// validated here; the task name is an opaque string.
type EnqueueRequest struct {
	Task        string
	InputPath   string
	OutputPath  string
	Params      json.RawMessage
	SubmittedBy string
}

// Summary is a lightweight projection for job listings.
type Summary struct {
	ID         string
	Status     Status
	CreatedAt  time.Time
	EnqueuedAt time.Time
}

var ErrJobNotFound = errors.New("job not found")
