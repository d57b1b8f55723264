package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediamill/internal/config"
	"mediamill/internal/events"
	"mediamill/internal/executor"
	"mediamill/internal/log"
	"mediamill/internal/protocol"
	"mediamill/internal/queue"
)

// Dispatcher claims queued jobs and executes them, one at a time, through the
// executor bridge. It owns the started->terminal transition.
type Dispatcher struct {
	queue  *queue.Queue
	bridge *executor.Bridge
	hub    *events.Hub
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new Dispatcher.
func New(q *queue.Queue, bridge *executor.Bridge, hub *events.Hub, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		queue:  q,
		bridge: bridge,
		hub:    hub,
		cfg:    cfg,
		logger: log.WithComponent("dispatch"),
	}
}

// Start runs the main dispatch loop. It claims jobs serially and executes
// them one at a time. This is a blocking call that runs until ctx is
// cancelled. A single job's failure never terminates the loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "poll_interval", d.cfg.Service.PollInterval)
	defer d.logger.Info("dispatch loop stopped")

	ticker := time.NewTicker(d.cfg.Service.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.processNextJob(ctx); err != nil {
				d.logger.Error("failed to process job", "error", err)
				// Keep serving subsequent jobs.
			}
		}
	}
}

// processNextJob claims the next queued job and executes it.
func (d *Dispatcher) processNextJob(ctx context.Context) error {
	job, err := d.queue.Claim(ctx)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if job == nil {
		// Queue is empty, nothing to do.
		return nil
	}

	d.executeJob(ctx, job)
	return nil
}

// executeJob runs one claimed job through the bridge and records the outcome.
func (d *Dispatcher) executeJob(ctx context.Context, job *queue.Job) {
	jobLogger := log.WithJob(job.ID).With("task", job.Task)
	jobLogger.Info("executing job")

	d.publish(events.Event{Type: events.TypeJobStarted, JobID: job.ID, Task: job.Task})

	req := &protocol.Request{
		Task:       job.Task,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Params:     job.Params,
	}

	out, err := d.bridge.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Shutting down mid-job. The record stays started; there is no
			// lease or recovery pass, so it will not be picked up again.
			jobLogger.Warn("dispatcher stopping mid-job, record stays started", "error", err)
			return
		}

		// Local bridge failure before or after the invocation itself. Scope
		// it to this job like any executor-side failure.
		jobErr := queue.JobError{
			Kind:    queue.ErrorExecutionFailed,
			Message: fmt.Sprintf("executor bridge: %v", err),
		}
		jobLogger.Error("bridge error", "error", err)
		d.failJob(ctx, job, jobErr, nil)
		return
	}

	if out.Failed() {
		jobLogger.Warn("job failed", "kind", out.Err.Kind, "error", out.Err.Message)
		d.failJob(ctx, job, *out.Err, &out.Stderr)
		return
	}

	if out.Degraded {
		jobLogger.Warn("worker output was not JSON, result recorded as raw text")
	}

	if err := d.queue.Finish(ctx, job.ID, out.Result, &out.Stderr); err != nil {
		jobLogger.Error("failed to record job result", "error", err)
		return
	}
	jobLogger.Info("job finished")
	d.publish(events.Event{Type: events.TypeJobFinished, JobID: job.ID, Task: job.Task})
}

// failJob records a failure outcome for the job.
func (d *Dispatcher) failJob(ctx context.Context, job *queue.Job, jobErr queue.JobError, stderr *string) {
	if err := d.queue.Fail(ctx, job.ID, jobErr, stderr); err != nil {
		d.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	d.publish(events.Event{
		Type:      events.TypeJobFailed,
		JobID:     job.ID,
		Task:      job.Task,
		ErrorKind: string(jobErr.Kind),
		Error:     jobErr.Message,
	})
}

func (d *Dispatcher) publish(ev events.Event) {
	if d.hub == nil {
		return
	}
	d.hub.Publish(ev)
}
