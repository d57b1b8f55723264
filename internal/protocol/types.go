package protocol

import "encoding/json"

// Request is the invocation envelope handed to the worker binary as its
// single process argument, UTF-8 JSON encoded.
type Request struct {
	Task       string          `json:"task"`
	InputPath  string          `json:"input_path"`
	OutputPath string          `json:"output_path"`
	Params     json.RawMessage `json:"params"`
}

// workerError is the optional JSON shape a failing worker may write to
// stdout. Only the message field is interpreted.
type workerError struct {
	Message string `json:"message"`
}

// DegradedEnvelope wraps raw worker output when a zero-exit worker produced
// stdout that is not valid JSON. It is recorded as a success, preserving the
// raw text for the caller.
type DegradedEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Output  string `json:"output"`
	Stderr  string `json:"stderr"`
}
