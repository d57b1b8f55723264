package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Unset fields fall
// back to Defaults(). ${VAR} references are expanded from the environment
// before parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $MEDIAMILL_CONFIG, ./config.yaml, ~/.config/mediamill/config.yaml,
// /etc/mediamill/config.yaml.
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("MEDIAMILL_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "mediamill", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	systemConfig := "/etc/mediamill/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	return "", fmt.Errorf("no config file found (checked $MEDIAMILL_CONFIG, ./config.yaml, ~/.config/mediamill, /etc/mediamill)")
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// applyDefaults fills fields the YAML left zero-valued.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = def.Service.Name
	}
	if strings.TrimSpace(cfg.Service.LogLevel) == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.PollInterval <= 0 {
		cfg.Service.PollInterval = def.Service.PollInterval
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		cfg.State.Path = def.State.Path
	}
	if strings.TrimSpace(cfg.Storage.InputPath) == "" {
		cfg.Storage.InputPath = def.Storage.InputPath
	}
	if strings.TrimSpace(cfg.Storage.OutputPath) == "" {
		cfg.Storage.OutputPath = def.Storage.OutputPath
	}
	if cfg.Worker.TimeoutSeconds <= 0 {
		cfg.Worker.TimeoutSeconds = def.Worker.TimeoutSeconds
	}
	if strings.TrimSpace(cfg.API.Listen) == "" {
		cfg.API.Listen = def.API.Listen
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Worker.Binary) == "" {
		return fmt.Errorf("worker.binary must be set")
	}
	if cfg.Storage.InputPath == cfg.Storage.OutputPath {
		return fmt.Errorf("storage.input_path and storage.output_path must differ")
	}
	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		return fmt.Errorf("api.listen must be set when the API is enabled")
	}
	return nil
}
