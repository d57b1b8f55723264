// Package executor bridges one claimed job to one bounded invocation of the
// external worker binary, translating the process outcome into a result or a
// structured error.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"mediamill/internal/log"
	"mediamill/internal/protocol"
	"mediamill/internal/queue"
)

// maxStderrBytes caps the amount of stderr captured from worker execution.
const maxStderrBytes = 64 * 1024

// Bridge invokes the worker binary synchronously, once per job, with a hard
// wall-clock budget shared across all tasks.
type Bridge struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Bridge for the given worker binary and time budget.
func New(binary string, timeout time.Duration) *Bridge {
	return &Bridge{
		binary:  binary,
		timeout: timeout,
		logger:  log.WithComponent("executor"),
	}
}

// Outcome is the translated result of one worker invocation. Exactly one of
// Result and Err is set. Degraded marks a zero-exit run whose stdout was not
// valid JSON and was wrapped in a raw-text success envelope.
type Outcome struct {
	Result   json.RawMessage
	Degraded bool
	Err      *queue.JobError
	Stderr   string
}

// Failed reports whether the invocation ended in a job failure.
func (o *Outcome) Failed() bool { return o.Err != nil }

// Run executes exactly one worker invocation for req and blocks until
// success, failure, or timeout. Executor-side failures are returned inside
// the Outcome; the error return covers only local problems before or after
// the invocation itself.
func (b *Bridge) Run(ctx context.Context, req *protocol.Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	logger := b.logger.With("task", req.Task)

	// The timeout clock must not start before the process does, so the timer
	// is armed only after a successful spawn. The worker runs in its own
	// process group so the kill on expiry reaches anything it forked; a
	// surviving grandchild would otherwise hold the output pipes open and
	// stall Wait past the budget.
	cmd := exec.Command(b.binary, string(payload))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning worker", "binary", b.binary, "timeout", b.timeout)

	if err := cmd.Start(); err != nil {
		// No process ever ran for this job.
		return &Outcome{
			Err: &queue.JobError{
				Kind:    queue.ErrorExecutorUnavailable,
				Message: fmt.Sprintf("cannot spawn worker %s: %v", b.binary, err),
			},
		}, nil
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		// Budget exhausted. Termination is forceful; the worker gets no
		// chance to flush partial state.
		logger.Warn("worker exceeded time budget, killing", "timeout", b.timeout)
		if cmd.Process != nil {
			// Negative pid targets the whole group.
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
				logger.Error("failed to kill worker group", "error", err)
				if err := cmd.Process.Kill(); err != nil {
					logger.Error("failed to kill worker", "error", err)
				}
			}
		}

		// Bound the reap as well; a group member that somehow survived the
		// kill must not stall the caller indefinitely. The buffers are only
		// safe to read once Wait has returned.
		var stderrStr string
		reap := time.NewTimer(5 * time.Second)
		defer reap.Stop()
		select {
		case <-waitErr:
			stderrStr = truncateStderr(stderr.String())
		case <-reap.C:
			logger.Error("worker did not exit after kill, abandoning wait")
		}

		return &Outcome{
			Stderr: stderrStr,
			Err: &queue.JobError{
				Kind:    queue.ErrorTimedOut,
				Message: fmt.Sprintf("worker timed out after %s", b.timeout),
			},
		}, nil

	case err := <-waitErr:
		out := stdout.Bytes()
		stderrStr := truncateStderr(stderr.String())

		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return nil, fmt.Errorf("wait for worker: %w", err)
			}

			code := exitErr.ExitCode()
			logger.Warn("worker exited with non-zero status", "exit_code", code)

			msg, ok := protocol.ExtractErrorMessage(out)
			if !ok {
				msg = protocol.SynthesizeErrorMessage(code, string(out), stderrStr)
			}
			return &Outcome{
				Stderr: stderrStr,
				Err: &queue.JobError{
					Kind:    queue.ErrorExecutionFailed,
					Message: msg,
				},
			}, nil
		}

		if result, ok := protocol.ParseResult(out); ok {
			return &Outcome{Result: result, Stderr: stderrStr}, nil
		}

		// Exit 0 but unparsable stdout. The observed contract treats this as
		// a success wrapping the raw text; keep that leniency, loudly.
		logger.Warn("worker stdout is not valid JSON, recording degraded success")
		return &Outcome{
			Result:   protocol.DegradedResult(string(out), stderrStr),
			Degraded: true,
			Stderr:   stderrStr,
		}, nil
	}
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
