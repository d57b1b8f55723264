package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"mediamill/internal/storage"
)

func openTestQueue(t *testing.T) (*Queue, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "mediamill.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return New(db), db
}

func testRequest() EnqueueRequest {
	return EnqueueRequest{
		Task:        "resize_to_720p",
		InputPath:   "/data/input/a.mp4",
		OutputPath:  "/data/output/a_720p.mp4",
		Params:      json.RawMessage(`{"width":1280}`),
		SubmittedBy: "api",
	}
}

func TestQueueEnqueueClaimFIFO(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id1, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	id2, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("job ids must be unique, got %s twice", id1)
	}

	j1, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim 1: %v", err)
	}
	if j1 == nil || j1.ID != id1 || j1.Status != StatusStarted || j1.StartedAt == nil {
		t.Fatalf("unexpected job1: %#v", j1)
	}

	j2, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim 2: %v", err)
	}
	if j2 == nil || j2.ID != id2 {
		t.Fatalf("unexpected job2: %#v", j2)
	}

	j3, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim 3: %v", err)
	}
	if j3 != nil {
		t.Fatalf("expected empty queue, got %#v", j3)
	}
}

func TestQueueEnqueueValidation(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	tests := []struct {
		name   string
		mutate func(*EnqueueRequest)
	}{
		{"missing task", func(r *EnqueueRequest) { r.Task = "" }},
		{"missing input_path", func(r *EnqueueRequest) { r.InputPath = "" }},
		{"missing output_path", func(r *EnqueueRequest) { r.OutputPath = "" }},
		{"missing submitted_by", func(r *EnqueueRequest) { r.SubmittedBy = "" }},
		{"invalid params", func(r *EnqueueRequest) { r.Params = json.RawMessage(`{not json`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			if _, err := q.Enqueue(context.Background(), req); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}

	// No job may exist after rejected submissions.
	jobs, err := q.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestQueueFetchAfterEnqueue(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	j, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if j.Status != StatusQueued {
		t.Fatalf("expected status queued, got %s", j.Status)
	}
	if j.StartedAt != nil || j.EndedAt != nil {
		t.Fatal("started_at/ended_at must be unset while queued")
	}
	if j.Result != nil || j.Error != nil {
		t.Fatal("result and error must be absent while queued")
	}
	if j.CreatedAt.IsZero() || j.EnqueuedAt.IsZero() {
		t.Fatal("created_at and enqueued_at must be set")
	}
	if j.EnqueuedAt.Before(j.CreatedAt) {
		t.Fatal("enqueued_at must not precede created_at")
	}
	if string(j.Params) != `{"width":1280}` {
		t.Fatalf("params not round-tripped: %s", j.Params)
	}
}

func TestQueueFetchUnknownID(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	_, err := q.Fetch(context.Background(), "no-such-job")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestQueueFinishStoresResultVerbatim(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	result := json.RawMessage(`{"success":true,"hash":"abc"}`)
	if err := q.Finish(context.Background(), id, result, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	j, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if j.Status != StatusFinished {
		t.Fatalf("expected finished, got %s", j.Status)
	}
	if string(j.Result) != `{"success":true,"hash":"abc"}` {
		t.Fatalf("result not stored verbatim: %s", j.Result)
	}
	if j.Error != nil {
		t.Fatal("error must be absent on finished job")
	}
	if j.EndedAt == nil || j.StartedAt == nil {
		t.Fatal("started_at and ended_at must be set on finished job")
	}
	if j.EndedAt.Before(*j.StartedAt) {
		t.Fatal("ended_at must not precede started_at")
	}
}

func TestQueueFailStoresStructuredError(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	stderr := "worker stderr"
	jobErr := JobError{Kind: ErrorExecutionFailed, Message: "bad input"}
	if err := q.Fail(context.Background(), id, jobErr, &stderr); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	j, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if j.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", j.Status)
	}
	if j.Error == nil || j.Error.Kind != ErrorExecutionFailed || j.Error.Message != "bad input" {
		t.Fatalf("unexpected error: %#v", j.Error)
	}
	if j.Result != nil {
		t.Fatal("result must be absent on failed job")
	}
}

func TestQueueStatusNeverRegresses(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Terminal writes require a prior claim.
	if err := q.Finish(context.Background(), id, json.RawMessage(`{}`), nil); err == nil {
		t.Fatal("Finish on a queued job must fail")
	}

	if _, err := q.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := q.Finish(context.Background(), id, json.RawMessage(`{"ok":true}`), nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	// Finished jobs can never change again.
	if err := q.Fail(context.Background(), id, JobError{Kind: ErrorTimedOut, Message: "late"}, nil); err == nil {
		t.Fatal("Fail on a finished job must fail")
	}

	j, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if j.Status != StatusFinished || j.Error != nil {
		t.Fatalf("terminal state mutated: %#v", j)
	}
}

func TestQueueIdempotentRead(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	a, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch a: %v", err)
	}
	b, err := q.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch b: %v", err)
	}

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("reads differ with no state change:\n%s\n%s", aj, bj)
	}
}

func TestQueueList(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	id1, _ := q.Enqueue(context.Background(), testRequest())
	id2, _ := q.Enqueue(context.Background(), testRequest())

	jobs, err := q.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != id1 || jobs[1].ID != id2 {
		t.Fatalf("unexpected order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
	for _, s := range jobs {
		if s.Status != StatusQueued {
			t.Fatalf("expected queued, got %s", s.Status)
		}
		if s.CreatedAt.IsZero() || s.EnqueuedAt.IsZero() {
			t.Fatal("projection timestamps must be set")
		}
	}
}

func TestQueueCompleteWritesJobLog(t *testing.T) {
	t.Parallel()

	q, db := openTestQueue(t)

	id, err := q.Enqueue(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	stderr := "hello stderr"
	if err := q.Fail(context.Background(), id, JobError{Kind: ErrorExecutionFailed, Message: "boom"}, &stderr); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM job_log WHERE id=?;", id).Scan(&count); err != nil {
		t.Fatalf("count job_log: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job_log row, got %d", count)
	}
}

func TestQueueDepth(t *testing.T) {
	t.Parallel()

	q, _ := openTestQueue(t)

	for range 3 {
		if _, err := q.Enqueue(context.Background(), testRequest()); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if _, err := q.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	depth, err := q.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}
}
