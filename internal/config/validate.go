package config

import (
	"errors"
	"fmt"
)

var (
	validProviders  = map[string]struct{}{"mock": {}, "openai": {}, "openrouter": {}, "openai-compatible": {}}
	validBackends   = map[string]struct{}{"file": {}, "sqlite": {}, "none": {}}
	validEstimators = map[string]struct{}{"chars": {}, "tiktoken": {}}
	validLevels     = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
	validFormats    = map[string]struct{}{"text": {}, "json": {}}
)

// Validate checks the structural validity of a Config. All problems are
// reported at once rather than one per run.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if _, ok := validProviders[cfg.Provider.Kind]; !ok {
		errs = append(errs, fmt.Errorf("config: provider.kind %q (supported: mock, openai, openrouter, openai-compatible)", cfg.Provider.Kind))
	}
	if cfg.Provider.Kind != "mock" && cfg.Provider.Kind != "" {
		if cfg.Provider.APIKey == "" {
			errs = append(errs, errors.New("config: provider.api_key is required for non-mock providers"))
		}
		if cfg.Provider.Model == "" {
			errs = append(errs, errors.New("config: provider.model is required for non-mock providers"))
		}
	}

	if _, ok := validBackends[cfg.Storage.Backend]; !ok {
		errs = append(errs, fmt.Errorf("config: storage.backend %q (supported: file, sqlite, none)", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "file" && cfg.Storage.Dir == "" {
		errs = append(errs, errors.New("config: storage.dir is required for the file backend"))
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		errs = append(errs, errors.New("config: storage.path is required for the sqlite backend"))
	}

	errs = append(errs, validateConversation(cfg.Conversation)...)

	if _, ok := validEstimators[cfg.Estimator.Kind]; !ok {
		errs = append(errs, fmt.Errorf("config: estimator.kind %q (supported: chars, tiktoken)", cfg.Estimator.Kind))
	}
	if cfg.Estimator.CharsPerToken < 0 {
		errs = append(errs, fmt.Errorf("config: estimator.chars_per_token must be >= 0, got %v", cfg.Estimator.CharsPerToken))
	}

	if cfg.Memory.MaxReferences < 0 {
		errs = append(errs, fmt.Errorf("config: memory.max_references must be >= 0, got %d", cfg.Memory.MaxReferences))
	}
	if cfg.Telemetry.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("config: telemetry.history_size must be >= 0, got %d", cfg.Telemetry.HistorySize))
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("config: tracing.endpoint is required when tracing is enabled"))
	}

	if _, ok := validLevels[cfg.Logging.Level]; !ok {
		errs = append(errs, fmt.Errorf("config: logging.level %q (supported: debug, info, warn, error)", cfg.Logging.Level))
	}
	if _, ok := validFormats[cfg.Logging.Format]; !ok {
		errs = append(errs, fmt.Errorf("config: logging.format %q (supported: text, json)", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateConversation(c ConversationConfig) []error {
	var errs []error

	if c.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("config: conversation.max_length must be >= 0, got %d", c.MaxLength))
	}
	if c.SummaryThreshold < 0 || c.SummaryThreshold > 1 {
		errs = append(errs, fmt.Errorf("config: conversation.summary_threshold must be in [0, 1], got %v", c.SummaryThreshold))
	}
	if c.PreserveRecent < 0 || c.PreserveEarly < 0 {
		errs = append(errs, errors.New("config: conversation preserve windows must be >= 0"))
	}
	if c.MaxLength > 0 && c.PreserveEarly+c.PreserveRecent >= c.MaxLength {
		errs = append(errs, fmt.Errorf(
			"config: conversation preserve windows (%d early + %d recent) must leave room under max_length %d",
			c.PreserveEarly, c.PreserveRecent, c.MaxLength))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("config: conversation.cache_ttl must be >= 0"))
	}

	return errs
}
