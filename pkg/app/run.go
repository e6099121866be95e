// Package app provides the shared entry point for the flowsmith binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flowsmith/flowsmith/internal/config"
	"github.com/flowsmith/flowsmith/internal/core"
	"github.com/flowsmith/flowsmith/internal/redact"
	"github.com/flowsmith/flowsmith/internal/reload"
	"github.com/flowsmith/flowsmith/internal/tracing"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string
}

// Run loads configuration, wires all components, and blocks until a
// shutdown signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, level := BuildLogger(cfg.Logging)

	// The configured API key must never reach log output, even through
	// wrapped errors.
	redactor := redact.NewRedactor()
	redactor.AddLiteral(cfg.Provider.APIKey)
	logger = slog.New(redact.NewHandler(logger.Handler(), redactor))

	logger.Info("flowsmith starting",
		"version", params.Version,
		"config", cfgPath,
	)

	shutdownTracing, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
	}, logger)
	if err != nil {
		return err
	}

	components, err := wire(cfg, logger)
	if err != nil {
		return err
	}

	application := core.NewApp(logger)
	for _, c := range components {
		application.Append(c.name, c.component)
	}
	application.Append("reload", reload.New(reload.Config{ConfigPath: cfgPath}, cfg, level, logger))
	application.Append("tracing", stopperFunc(shutdownTracing))

	return application.Run()
}

// BuildLogger constructs the root slog logger from the logging config.
// The returned LevelVar allows the level to change at runtime.
func BuildLogger(cfg config.LoggingConfig) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	switch cfg.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), level
}

// stopperFunc adapts a shutdown function to core.Stopper.
type stopperFunc func(ctx context.Context) error

func (f stopperFunc) Stop(ctx context.Context) error { return f(ctx) }

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/flowsmith/flowsmith.yaml →
// ~/.config/flowsmith/flowsmith.yaml → ./flowsmith.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "flowsmith", "flowsmith.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "flowsmith", "flowsmith.yaml"))
	}

	candidates = append(candidates, "flowsmith.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/flowsmith if set, otherwise ~/.local/share/flowsmith.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "flowsmith")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "flowsmith")
}
