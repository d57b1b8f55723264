// Package doctor validates mediamill configuration and worker setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediamill/internal/config"
	"mediamill/internal/lock"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration against the host environment.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateStateDir(r)
	d.validateStorageDirs(r)
	d.validateWorkerBinary(r)
	d.validateAPIConfig(r)
	d.checkRunningInstance(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
	if d.cfg.Service.PollInterval <= 0 {
		d.addError(r, "service", "service.poll_interval", "poll_interval must be positive")
	}
	if d.cfg.Worker.TimeoutSeconds <= 0 {
		d.addError(r, "service", "worker.timeout_seconds", "timeout_seconds must be positive")
	}
}

// validateStateDir checks the job database directory can be created and written.
func (d *Doctor) validateStateDir(r *Result) {
	if d.cfg.State.Path == "" {
		return
	}
	dir := filepath.Dir(d.cfg.State.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "state", "state.path",
			fmt.Sprintf("cannot create state directory %s: %v", dir, err))
		return
	}
	marker := filepath.Join(dir, ".doctor-write-check")
	if err := os.WriteFile(marker, []byte("ok"), 0o644); err != nil {
		d.addError(r, "state", "state.path",
			fmt.Sprintf("state directory %s is not writable: %v", dir, err))
		return
	}
	_ = os.Remove(marker)
}

func (d *Doctor) validateStorageDirs(r *Result) {
	if d.cfg.Storage.InputPath == "" {
		d.addError(r, "storage", "storage.input_path", "input_path is required")
	}
	if d.cfg.Storage.OutputPath == "" {
		d.addError(r, "storage", "storage.output_path", "output_path is required")
	}
	if d.cfg.Storage.InputPath != "" && d.cfg.Storage.InputPath == d.cfg.Storage.OutputPath {
		d.addError(r, "storage", "storage", "input_path and output_path must differ")
	}

	for field, dir := range map[string]string{
		"storage.input_path":  d.cfg.Storage.InputPath,
		"storage.output_path": d.cfg.Storage.OutputPath,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			d.addError(r, "storage", field,
				fmt.Sprintf("cannot create directory %s: %v", dir, err))
		}
	}
}

// validateWorkerBinary checks the executor binary exists and is executable.
// A missing binary means every claimed job would fail with executor_unavailable.
func (d *Doctor) validateWorkerBinary(r *Result) {
	binary := d.cfg.Worker.Binary
	if binary == "" {
		d.addError(r, "worker", "worker.binary", "worker.binary is required")
		return
	}

	info, err := os.Stat(binary)
	if err != nil {
		if os.IsNotExist(err) {
			d.addError(r, "worker", "worker.binary",
				fmt.Sprintf("worker binary %s does not exist", binary))
		} else {
			d.addError(r, "worker", "worker.binary",
				fmt.Sprintf("cannot stat worker binary %s: %v", binary, err))
		}
		return
	}
	if info.IsDir() {
		d.addError(r, "worker", "worker.binary",
			fmt.Sprintf("worker binary %s is a directory", binary))
		return
	}
	if info.Mode().Perm()&0o111 == 0 {
		d.addError(r, "worker", "worker.binary",
			fmt.Sprintf("worker binary %s is not executable", binary))
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.auth.api_key", "API enabled but no API key configured")
	}
	if !strings.HasPrefix(d.cfg.API.Listen, "127.0.0.1") &&
		!strings.HasPrefix(d.cfg.API.Listen, "localhost") &&
		d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.listen",
			fmt.Sprintf("API listens on %s without authentication", d.cfg.API.Listen))
	}
}

// checkRunningInstance warns when a lock file points at another process.
func (d *Doctor) checkRunningInstance(r *Result) {
	if d.cfg.State.Path == "" {
		return
	}
	lockPath := lock.PathFor(d.cfg.State.Path)
	pid, err := lock.ReadOwnerPID(lockPath)
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return
	}
	if _, err := os.Stat(filepath.Join("/proc", fmt.Sprint(pid))); err == nil {
		d.addWarning(r, "instance", "",
			fmt.Sprintf("another instance may be running (pid %d from %s)", pid, lockPath))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
