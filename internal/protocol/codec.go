package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeRequest serializes a Request to the canonical JSON document the
// worker expects. Params defaults to an empty object when unset.
func EncodeRequest(req *Request) ([]byte, error) {
	if req.Task == "" {
		return nil, fmt.Errorf("request missing required field: task")
	}
	if req.InputPath == "" {
		return nil, fmt.Errorf("request missing required field: input_path")
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("request missing required field: output_path")
	}

	out := *req
	if len(out.Params) == 0 {
		out.Params = json.RawMessage(`{}`)
	} else if !json.Valid(out.Params) {
		return nil, fmt.Errorf("request params is not valid JSON")
	}

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return data, nil
}

// ParseResult interprets stdout from a zero-exit worker. If stdout is a valid
// JSON document the parsed bytes are the job result, verbatim and opaque.
// The second return value reports whether parsing succeeded.
func ParseResult(stdout []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, false
	}
	return json.RawMessage(trimmed), true
}

// DegradedResult builds the leniency envelope for a zero-exit worker whose
// stdout is not valid JSON. The raw text is preserved as a success payload.
func DegradedResult(stdout, stderr string) json.RawMessage {
	env := DegradedEnvelope{
		Success: true,
		Message: "Job completed",
		Output:  stdout,
		Stderr:  stderr,
	}
	data, err := json.Marshal(env)
	if err != nil {
		// Marshal of a struct of strings cannot fail; keep the contract anyway.
		return json.RawMessage(`{"success":true,"message":"Job completed"}`)
	}
	return data
}

// ExtractErrorMessage pulls the human-readable message field out of a failing
// worker's stdout. Returns false when stdout is not JSON or carries no message.
func ExtractErrorMessage(stdout []byte) (string, bool) {
	var we workerError
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &we); err != nil {
		return "", false
	}
	if we.Message == "" {
		return "", false
	}
	return we.Message, true
}

// SynthesizeErrorMessage builds a best-effort error text from the exit code
// and raw process output, used when the worker wrote no parsable message.
func SynthesizeErrorMessage(exitCode int, stdout, stderr string) string {
	return fmt.Sprintf("worker failed with exit code %d\nstdout: %s\nstderr: %s", exitCode, stdout, stderr)
}
