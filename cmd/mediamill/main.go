package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"mediamill/internal/api"
	"mediamill/internal/config"
	"mediamill/internal/dispatch"
	"mediamill/internal/doctor"
	"mediamill/internal/events"
	"mediamill/internal/executor"
	"mediamill/internal/lock"
	"mediamill/internal/log"
	"mediamill/internal/queue"
	"mediamill/internal/storage"
	"mediamill/internal/tui/watch"
	"mediamill/internal/workspace"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("mediamill version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`mediamill - Media processing job gateway

Usage:
  mediamill <command> [flags]

Commands:
  start     Start the gateway service in foreground
  doctor    Validate configuration and worker setup
  watch     Real-time job monitoring TUI
  version   Show version information
  help      Show this help message

Use 'mediamill <command> --help' for command-specific flags.
`)
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("discover config: %w", err)
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("mediamill starting", "version", version, "config", resolvedPath)

	lockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", lockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database ready", "path", cfg.State.Path)

	ws, err := workspace.NewManager(cfg.Storage.InputPath, cfg.Storage.OutputPath)
	if err != nil {
		logger.Error("invalid storage configuration", "error", err)
		return 1
	}
	if err := ws.EnsureDirs(); err != nil {
		logger.Error("failed to create storage directories", "error", err)
		return 1
	}

	q := queue.New(db)
	hub := events.NewHub(256)
	bridge := executor.New(cfg.Worker.Binary, cfg.Worker.Timeout())
	disp := dispatch.New(q, bridge, hub, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, q, ws, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("mediamill running (press Ctrl+C to stop)",
		"worker", cfg.Worker.Binary,
		"poll_interval", cfg.Service.PollInterval)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("mediamill stopped")
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output report in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to format report: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:5000", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("MEDIAMILL_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
