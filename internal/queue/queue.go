package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const maxStderrBytes = 64 * 1024

// Queue is the durable job store. It owns JobRecord creation and the
// queued->started claim; the dispatcher owns the terminal write.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue persists a new job with status=queued and returns its id
// immediately, without waiting for execution.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Task == "" {
		return "", fmt.Errorf("task is empty")
	}
	if req.InputPath == "" {
		return "", fmt.Errorf("input_path is empty")
	}
	if req.OutputPath == "" {
		return "", fmt.Errorf("output_path is empty")
	}
	if req.SubmittedBy == "" {
		return "", fmt.Errorf("submitted_by is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	params := "{}"
	if len(req.Params) > 0 {
		if !json.Valid(req.Params) {
			return "", fmt.Errorf("params is not valid JSON")
		}
		params = string(req.Params)
	}

	_, err := q.db.ExecContext(ctx, `
INSERT INTO jobs(
  id, task, input_path, output_path, params, status, submitted_by,
  created_at, enqueued_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, req.Task, req.InputPath, req.OutputPath, params, StatusQueued, req.SubmittedBy, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// Claim takes the oldest queued job and marks it started. Returns (nil, nil)
// if the queue is empty. At-most-one active claim per job is delegated to
// SQLite; the UPDATE only matches rows still in queued.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM jobs
  WHERE status = ?
  ORDER BY enqueued_at ASC, rowid ASC
  LIMIT 1
)
UPDATE jobs
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING
  id, task, input_path, output_path, params, status, submitted_by,
  created_at, enqueued_at, started_at, ended_at, result, error_kind, error_message;
`, StatusQueued, StatusStarted, now)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// Finish records a successful outcome. The job must currently be started.
func (q *Queue) Finish(ctx context.Context, jobID string, result json.RawMessage, stderr *string) error {
	if len(result) == 0 || !json.Valid(result) {
		return fmt.Errorf("result is not valid JSON")
	}
	return q.complete(ctx, jobID, StatusFinished, result, nil, stderr)
}

// Fail records a failure outcome. The job must currently be started.
func (q *Queue) Fail(ctx context.Context, jobID string, jobErr JobError, stderr *string) error {
	if jobErr.Kind == "" {
		return fmt.Errorf("error kind is empty")
	}
	return q.complete(ctx, jobID, StatusFailed, nil, &jobErr, stderr)
}

// complete performs the started->terminal transition and appends a row to
// job_log in the same transaction. The guarded UPDATE is what enforces the
// state machine: a job that is not started cannot reach a terminal state,
// and a terminal job can never change again.
func (q *Queue) complete(ctx context.Context, jobID string, status Status, result json.RawMessage, jobErr *JobError, stderr *string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is empty")
	}
	if !status.Terminal() {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	endedAt := time.Now().UTC().Format(time.RFC3339Nano)

	var resultVal, errKindVal, errMsgVal any
	if result != nil {
		resultVal = string(result)
	}
	if jobErr != nil {
		errKindVal = string(jobErr.Kind)
		errMsgVal = jobErr.Message
	}

	res, err := tx.ExecContext(ctx, `
UPDATE jobs
SET status = ?, ended_at = ?, result = ?, error_kind = ?, error_message = ?
WHERE id = ? AND status = ?;
`, status, endedAt, resultVal, errKindVal, errMsgVal, jobID, StatusStarted)
	if err != nil {
		return fmt.Errorf("update job completion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?;`, jobID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("load job status: %w", err)
		}
		return fmt.Errorf("job %s is %s, not started", jobID, current)
	}

	var (
		task        string
		submittedBy string
		createdAt   string
	)
	if err := tx.QueryRowContext(ctx, `
SELECT task, submitted_by, created_at FROM jobs WHERE id = ?;
`, jobID).Scan(&task, &submittedBy, &createdAt); err != nil {
		return fmt.Errorf("load job for completion: %w", err)
	}

	var stderrVal any
	if stderr != nil {
		s := *stderr
		if len(s) > maxStderrBytes {
			s = s[:maxStderrBytes]
		}
		stderrVal = s
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO job_log(
  id, task, status, submitted_by, created_at, ended_at, error_kind, error_message, stderr
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, jobID, task, status, submittedBy, createdAt, endedAt, errKindVal, errMsgVal, stderrVal)
	if err != nil {
		return fmt.Errorf("insert job_log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Fetch returns the full record for jobID, or ErrJobNotFound.
func (q *Queue) Fetch(ctx context.Context, jobID string) (*Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is empty")
	}

	row := q.db.QueryRowContext(ctx, `
SELECT
  id, task, input_path, output_path, params, status, submitted_by,
  created_at, enqueued_at, started_at, ended_at, result, error_kind, error_message
FROM jobs
WHERE id = ?;
`, jobID)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	return j, nil
}

// List returns lightweight projections over all known jobs, oldest first.
// The result is a point-in-time snapshot; concurrent dispatcher writes are
// not reflected.
func (q *Queue) List(ctx context.Context) ([]Summary, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, status, created_at, enqueued_at
FROM jobs
ORDER BY enqueued_at ASC, rowid ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s           Summary
			statusS     string
			createdAtS  string
			enqueuedAtS string
		)
		if err := rows.Scan(&s.ID, &statusS, &createdAtS, &enqueuedAtS); err != nil {
			return nil, fmt.Errorf("scan job summary: %w", err)
		}
		s.Status = Status(statusS)
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			s.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, enqueuedAtS); err == nil {
			s.EnqueuedAt = t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

// Depth returns the number of jobs still waiting to be claimed.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM jobs WHERE status = ?;
`, StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j           Job
		params      sql.NullString
		statusS     string
		createdAtS  string
		enqueuedAtS string
		startedAtS  sql.NullString
		endedAtS    sql.NullString
		result      sql.NullString
		errKind     sql.NullString
		errMsg      sql.NullString
	)
	err := row.Scan(
		&j.ID, &j.Task, &j.InputPath, &j.OutputPath, &params, &statusS, &j.SubmittedBy,
		&createdAtS, &enqueuedAtS, &startedAtS, &endedAtS, &result, &errKind, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	j.Status = Status(statusS)
	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		j.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, enqueuedAtS); err == nil {
		j.EnqueuedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			j.StartedAt = &t
		}
	}
	if endedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, endedAtS.String); err == nil {
			j.EndedAt = &t
		}
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	if errKind.Valid {
		j.Error = &JobError{Kind: ErrorKind(errKind.String)}
		if errMsg.Valid {
			j.Error.Message = errMsg.String
		}
	}
	return &j, nil
}
