package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"mediamill/internal/catalog"
	"mediamill/internal/events"
	"mediamill/internal/queue"
)

// maxUploadBytes bounds multipart parsing memory, not the upload size itself.
const maxUploadBytes = 64 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		s.logger.Error("failed to compute queue depth", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute queue depth")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    depth,
	})
}

// handleEnqueue handles POST /api/enqueue.
// Validates the submission and creates a queued job; it never waits for
// execution.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Task == "" {
		s.writeError(w, http.StatusBadRequest, "missing required field: task")
		return
	}
	if req.InputPath == "" {
		s.writeError(w, http.StatusBadRequest, "missing required field: input_path")
		return
	}
	if req.OutputPath == "" {
		s.writeError(w, http.StatusBadRequest, "missing required field: output_path")
		return
	}

	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}

	jobID, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		Task:        req.Task,
		InputPath:   req.InputPath,
		OutputPath:  req.OutputPath,
		Params:      params,
		SubmittedBy: "api",
	})
	if err != nil {
		s.logger.Error("failed to enqueue job", "task", req.Task, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.publishEvent(events.Event{Type: events.TypeJobEnqueued, JobID: jobID, Task: req.Task})

	s.logger.Info("job enqueued via API", "job_id", jobID, "task", req.Task)

	respondJSON(w, http.StatusAccepted, EnqueueResponse{
		JobID:  jobID,
		Status: string(queue.StatusQueued),
		Payload: JobPayload{
			Task:       req.Task,
			InputPath:  req.InputPath,
			OutputPath: req.OutputPath,
			Params:     params,
		},
	})
}

// handleListJobs handles GET /api/jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.queue.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	jobs := make([]JobSummaryData, 0, len(summaries))
	for _, sum := range summaries {
		jobs = append(jobs, JobSummaryData{
			ID:         sum.ID,
			Status:     string(sum.Status),
			CreatedAt:  sum.CreatedAt,
			EnqueuedAt: sum.EnqueuedAt,
		})
	}

	respondJSON(w, http.StatusOK, ListJobsResponse{Jobs: jobs})
}

// handleGetJob handles GET /api/jobs/{jobID}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.queue.Fetch(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("failed to fetch job", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}

	resp := JobStatusResponse{
		ID:         job.ID,
		Task:       job.Task,
		Status:     string(job.Status),
		CreatedAt:  job.CreatedAt,
		EnqueuedAt: job.EnqueuedAt,
		StartedAt:  job.StartedAt,
		EndedAt:    job.EndedAt,
		Result:     job.Result,
	}
	if job.Error != nil {
		resp.Error = &JobErrorData{
			Kind:    string(job.Error.Kind),
			Message: job.Error.Message,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListTasks handles GET /api/tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, catalog.Tasks())
}

// handleUpload handles POST /api/upload: persist a file into the input
// directory without enqueueing anything.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "empty filename")
		return
	}

	stored, err := s.uploads.SaveUpload(header.Filename, file)
	if err != nil {
		s.logger.Error("failed to store upload", "filename", header.Filename, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	s.logger.Info("file uploaded", "file_id", stored.FileID, "filename", stored.Filename)

	respondJSON(w, http.StatusOK, UploadResponse{
		FileID:   stored.FileID,
		Filename: stored.Filename,
		Path:     stored.Path,
		Checksum: stored.Checksum,
	})
}

// handleProcess handles POST /api/process: persist an upload and enqueue a
// job against it in one request.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "empty filename")
		return
	}

	task := r.FormValue("task")
	if task == "" {
		s.writeError(w, http.StatusBadRequest, "no task specified")
		return
	}

	// Malformed params degrade to an empty object rather than rejecting the
	// upload that already streamed in.
	params := json.RawMessage(r.FormValue("params"))
	if len(params) == 0 || !json.Valid(params) {
		params = json.RawMessage(`{}`)
	}

	stored, err := s.uploads.SaveUpload(header.Filename, file)
	if err != nil {
		s.logger.Error("failed to store upload", "filename", header.Filename, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	outputPath := s.uploads.OutputPathFor(stored.FileID, filepath.Ext(stored.Filename))

	jobID, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		Task:        task,
		InputPath:   stored.Path,
		OutputPath:  outputPath,
		Params:      params,
		SubmittedBy: "api",
	})
	if err != nil {
		s.logger.Error("failed to enqueue job", "task", task, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.publishEvent(events.Event{Type: events.TypeJobEnqueued, JobID: jobID, Task: task})

	s.logger.Info("file accepted for processing", "job_id", jobID, "task", task, "file_id", stored.FileID)

	respondJSON(w, http.StatusAccepted, ProcessResponse{
		JobID:      jobID,
		Status:     string(queue.StatusQueued),
		InputPath:  stored.Path,
		OutputPath: outputPath,
	})
}

func (s *Server) publishEvent(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
