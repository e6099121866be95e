// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for flowsmith.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "300s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Server       ServerConfig       `yaml:"server"`
	Provider     ProviderConfig     `yaml:"provider"`
	Conversation ConversationConfig `yaml:"conversation"`
	Storage      StorageConfig      `yaml:"storage"`
	Memory       MemoryConfig       `yaml:"memory"`
	Estimator    EstimatorConfig    `yaml:"estimator"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	// Listen is the address the gateway binds, e.g. ":8080".
	Listen string `yaml:"listen"`
}

// ProviderConfig selects the language model backend.
type ProviderConfig struct {
	// Kind names the provider implementation. "mock" runs without an
	// external model.
	Kind string `yaml:"kind"`

	// Model is the model identifier passed to the provider.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider, typically injected
	// via ${PROVIDER_API_KEY}.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// ContextWindow overrides the provider's context window size.
	ContextWindow int `yaml:"context_window"`
}

// ConversationConfig tunes turn retention and summarization.
type ConversationConfig struct {
	MaxLength        int      `yaml:"max_length"`
	SummaryThreshold float64  `yaml:"summary_threshold"`
	PreserveRecent   int      `yaml:"preserve_recent"`
	PreserveEarly    int      `yaml:"preserve_early"`
	CacheTTL         Duration `yaml:"cache_ttl"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "file", "sqlite", or "none".
	Backend string `yaml:"backend"`

	// Dir is the document directory for the file backend.
	Dir string `yaml:"dir"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// MemoryConfig bounds the workflow reference index.
type MemoryConfig struct {
	MaxReferences int `yaml:"max_references"`
}

// EstimatorConfig selects the token estimator.
type EstimatorConfig struct {
	// Kind is "chars" (ratio approximation) or "tiktoken" (exact BPE).
	Kind string `yaml:"kind"`

	// CharsPerToken tunes the chars estimator. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

// TelemetryConfig bounds the usage sample buffer.
type TelemetryConfig struct {
	HistorySize int `yaml:"history_size"`
}

// BridgeConfig points at the workflow-storage MCP service. An empty URL
// disables the bridge.
type BridgeConfig struct {
	URL string `yaml:"url"`
}

// JobsConfig holds the cron expressions for periodic maintenance.
type JobsConfig struct {
	// CacheSweep evicts idle cache entries. "off" disables the job.
	CacheSweep string `yaml:"cache_sweep"`

	// IdlePrune evicts idle in-memory conversations. "off" disables.
	IdlePrune string `yaml:"idle_prune"`

	// IdleAfter is how long a conversation may sit untouched before
	// the prune job evicts it from memory.
	IdleAfter Duration `yaml:"idle_after"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// withDefaults returns a copy of cfg with zero-valued fields replaced
// by sensible defaults.
func (cfg Config) withDefaults() Config {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Provider.Kind == "" {
		cfg.Provider.Kind = "mock"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data/conversations"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/conversations.db"
	}
	if cfg.Estimator.Kind == "" {
		cfg.Estimator.Kind = "chars"
	}
	if cfg.Jobs.CacheSweep == "" {
		cfg.Jobs.CacheSweep = "*/5 * * * *"
	}
	if cfg.Jobs.IdlePrune == "" {
		cfg.Jobs.IdlePrune = "0 * * * *"
	}
	if cfg.Jobs.IdleAfter == 0 {
		cfg.Jobs.IdleAfter = Duration(24 * time.Hour)
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = "localhost:4318"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg
}
