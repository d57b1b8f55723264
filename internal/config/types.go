package config

import "time"

// Config represents the complete mediamill configuration. It is constructed
// once at process start and passed by reference; nothing mutates it afterwards.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Storage StorageConfig `yaml:"storage"`
	Worker  WorkerConfig  `yaml:"worker"`
	API     APIConfig     `yaml:"api,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	LogLevel     string        `yaml:"log_level"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StateConfig defines where the job database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig defines the upload/output directories handed to workers.
type StorageConfig struct {
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
}

// WorkerConfig defines the external worker binary and its time budget.
// TimeoutSeconds is a single wall-clock budget shared across all tasks.
type WorkerConfig struct {
	Binary         string `yaml:"binary"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the worker time budget as a duration.
func (w WorkerConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings. An empty APIKey leaves
// the API unauthenticated.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "mediamill",
			LogLevel:     "info",
			PollInterval: 1 * time.Second,
		},
		State: StateConfig{
			Path: "./data/mediamill.db",
		},
		Storage: StorageConfig{
			InputPath:  "./data/input",
			OutputPath: "./data/output",
		},
		Worker: WorkerConfig{
			Binary:         "./worker/bin/taskworker",
			TimeoutSeconds: 300,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:5000",
		},
	}
}
