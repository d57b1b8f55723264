package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "full config",
			yaml: `
service:
  name: mediamill
  log_level: debug
  poll_interval: 2s
state:
  path: ./test.db
storage:
  input_path: ./in
  output_path: ./out
worker:
  binary: ./bin/taskworker
  timeout_seconds: 120
api:
  enabled: true
  listen: 127.0.0.1:6000
  auth:
    api_key: secret
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.PollInterval != 2*time.Second {
					t.Error("poll_interval not parsed")
				}
				if cfg.State.Path != "./test.db" {
					t.Error("state.path not parsed")
				}
				if cfg.Worker.Binary != "./bin/taskworker" {
					t.Error("worker.binary not parsed")
				}
				if cfg.Worker.Timeout() != 120*time.Second {
					t.Error("timeout_seconds not parsed")
				}
				if cfg.API.Auth.APIKey != "secret" {
					t.Error("api_key not parsed")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
worker:
  binary: ./bin/taskworker
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.Name != "mediamill" {
					t.Error("default service.name not applied")
				}
				if cfg.Service.PollInterval != 1*time.Second {
					t.Error("default poll_interval not applied")
				}
				if cfg.Worker.TimeoutSeconds != 300 {
					t.Error("default timeout_seconds not applied")
				}
				if cfg.Storage.InputPath != "./data/input" {
					t.Error("default storage.input_path not applied")
				}
			},
		},
		{
			name: "env var expansion",
			yaml: `
worker:
  binary: ${MEDIAMILL_TEST_WORKER}
`,
			env: map[string]string{"MEDIAMILL_TEST_WORKER": "/opt/worker"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Worker.Binary != "/opt/worker" {
					t.Errorf("env var not expanded, got %q", cfg.Worker.Binary)
				}
			},
		},
		{
			name: "missing worker binary",
			yaml: `
worker:
  binary: ""
`,
			wantErr: true,
		},
		{
			name: "input and output paths collide",
			yaml: `
storage:
  input_path: ./data/files
  output_path: ./data/files
worker:
  binary: ./bin/taskworker
`,
			wantErr: true,
		},
		{
			name: "negative timeout",
			yaml: `
worker:
  binary: ./bin/taskworker
  timeout_seconds: -5
`,
			checkFn: func(t *testing.T, cfg *Config) {
				// Zero/negative timeouts fall back to the default budget.
				if cfg.Worker.TimeoutSeconds != 300 {
					t.Errorf("expected default timeout, got %d", cfg.Worker.TimeoutSeconds)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := writeConfig(t, tt.yaml)
			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	yaml := "worker:\n  binary: ./bin/taskworker\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load dir: %v", err)
	}
	if cfg.Worker.Binary != "./bin/taskworker" {
		t.Errorf("unexpected worker binary: %q", cfg.Worker.Binary)
	}
}
